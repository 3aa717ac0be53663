package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rohits-web03/fileinpic/internal/logging"
	"github.com/rohits-web03/fileinpic/internal/metrics"
	"github.com/rohits-web03/fileinpic/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, "ok")
})

func TestRequireSecret(t *testing.T) {
	h := RequireSecret(services.NewAccessGuard("s3cret"), "Auth-Token")(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"ok":false,"message":"Unauthorized"}`, rec.Body.String())

	req.Header.Set("Auth-Token", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSession(t *testing.T) {
	sessions, err := services.NewSessionManager(services.SessionOptions{
		JWTSecret: "k", Password: "pw", BcryptCost: bcrypt.MinCost,
	}, nil)
	require.NoError(t, err)

	var seen string
	h := RequireSession(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		seen = claims.Subject
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := sessions.Issue("owner", "password")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner", seen)

	require.NoError(t, sessions.Revoke(context.Background(), token))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(2, nil)
	t.Cleanup(l.Stop)
	h := l.Limit(okHandler)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/share/download", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	rec := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code, "buckets are per client")
	l.Stop()
}

func TestClientIP_UntrustedPeerHeadersIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	req.Header.Set("X-Real-IP", "198.51.100.7")

	var none TrustedProxies
	assert.Equal(t, "192.0.2.1", none.ClientIP(req))

	other, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", other.ClientIP(req))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "127.0.0.1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	assert.Equal(t, "10.1.2.3", proxies.ClientIP(req), "no headers")

	req.Header.Set("X-Forwarded-For", "1.1.1.1, 203.0.113.5, 10.0.0.9")
	assert.Equal(t, "203.0.113.5", proxies.ClientIP(req), "rightmost untrusted hop")

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", proxies.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "10.0.0.4")
	assert.Equal(t, "10.0.0.4", proxies.ClientIP(req), "all hops trusted")

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestRateLimiter_SpoofedForwardingDoesNotEscape(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.1"})
	require.NoError(t, err)
	l := NewRateLimiter(1, proxies)
	t.Cleanup(l.Stop)
	h := l.Limit(okHandler)

	do := func(peer, fwd string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/share/download", nil)
		req.RemoteAddr = peer + ":5555"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("192.0.2.9", "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.9", "203.0.113.2"),
		"a direct client cannot rotate its identity through headers")

	assert.Equal(t, http.StatusOK, do("10.0.0.1", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1", "198.51.100.2"), "clients behind the proxy get their own bucket")
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1", "198.51.100.1"))
}

func TestRecover(t *testing.T) {
	h := Recover(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false,"message":"Internal server error"}`, rec.Body.String())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	lg := slog.New(slog.NewTextHandler(&buf, nil))
	m := metrics.New("test")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/download/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "missing")
	})
	h := Logger(lg, m, nil)(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "bytes=7")
	assert.Contains(t, out, "path=/api/download/7")

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `path="GET /api/download/{id}"`)
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler, mw("a"), mw("b")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}
