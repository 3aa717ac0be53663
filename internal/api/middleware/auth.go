package middleware

import (
	"context"
	"net/http"

	"github.com/rohits-web03/fileinpic/internal/services"
	"github.com/rohits-web03/fileinpic/internal/utils"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionCookie names the cookie that carries the owner session.
const SessionCookie = "token"

// RequireSecret rejects requests whose header does not carry the guard's
// secret.
func RequireSecret(guard *services.AccessGuard, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := guard.Authorize(r.Header.Get(header)); err != nil {
				utils.Fail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects requests without a valid session cookie and stores
// the session claims in the request context.
func RequireSession(sessions *services.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				utils.Fail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			claims, err := sessions.Verify(r.Context(), cookie.Value)
			if err != nil {
				utils.Fail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the claims stored by RequireSession.
func SessionFromContext(ctx context.Context) (*services.SessionClaims, bool) {
	claims, ok := ctx.Value(sessionKey).(*services.SessionClaims)
	return claims, ok
}
