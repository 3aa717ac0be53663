package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rohits-web03/fileinpic/internal/api/middleware"
	"github.com/rohits-web03/fileinpic/internal/services"
	"github.com/rohits-web03/fileinpic/internal/utils"
)

const stateCookie = "oauth_state"

type LoginRequest struct {
	Password string `json:"password"`
}

// POST /api/login
// Login godoc
// @Summary Owner sign-in
// @Description Checks the owner password and sets the session cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Owner password"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if err := h.sessions.CheckPassword(input.Password); err != nil {
		h.logger.Warn("failed login", "remote", r.RemoteAddr)
		utils.Fail(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	if err := h.startSession(w, "owner", "password"); err != nil {
		utils.Fail(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{OK: true})
}

// POST /api/logout
// Logout godoc
// @Summary End the owner session
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.SessionCookie); err == nil {
		if err := h.sessions.Revoke(r.Context(), c.Value); err != nil {
			h.logger.Error("session revoke failed", "error", err)
			utils.Fail(w, http.StatusInternalServerError, "Failed to log out")
			return
		}
	}

	h.setCookie(w, middleware.SessionCookie, "", -1)
	utils.JSONResponse(w, http.StatusOK, utils.Payload{OK: true})
}

// GET /api/auth/google/login
// GoogleLogin godoc
// @Summary Start Google sign-in
// @Tags Auth
// @Param next query string false "Page to return to"
// @Success 307
// @Router /api/auth/google/login [get]
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	state, err := oauthState{Next: safeRedirect(r.URL.Query().Get("next"))}.encode()
	if err != nil {
		http.Error(w, "Failed to generate OAuth state", http.StatusInternalServerError)
		return
	}
	h.setCookie(w, stateCookie, state, int((10 * time.Minute).Seconds()))

	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GET /api/auth/google/callback
// GoogleCallback godoc
// @Summary Finish Google sign-in
// @Description Only accounts listed as owners receive a session.
// @Tags Auth
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 307
// @Failure 400 {string} string "Invalid OAuth state"
// @Failure 403 {string} string "Account is not an owner"
// @Router /api/auth/google/callback [get]
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	state := r.FormValue("state")
	c, err := r.Cookie(stateCookie)
	if err != nil || !services.SameSecret(c.Value, state) {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	h.setCookie(w, stateCookie, "", -1)

	st, err := decodeOAuthState(state)
	if err != nil {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	user, err := h.google.Authenticate(r.Context(), r.FormValue("code"))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnauthorized):
		h.logger.Warn("google sign-in refused", "remote", r.RemoteAddr)
		http.Error(w, "Account is not an owner", http.StatusForbidden)
		return
	case errors.Is(err, services.ErrInvalid):
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	default:
		h.logger.Error("google sign-in failed", "error", err)
		http.Error(w, "Google sign-in failed", http.StatusBadGateway)
		return
	}

	if err := h.startSession(w, user.Email, "google"); err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.logger.Info("google sign-in", "email", user.Email)
	http.Redirect(w, r, st.Next, http.StatusTemporaryRedirect)
}

func (h *Handler) startSession(w http.ResponseWriter, subject, method string) error {
	token, expires, err := h.sessions.Issue(subject, method)
	if err != nil {
		h.logger.Error("session issue failed", "error", err)
		return err
	}
	h.setCookie(w, middleware.SessionCookie, token, int(time.Until(expires).Seconds()))
	return nil
}

// setCookie writes an HttpOnly cookie. maxAge < 0 deletes it.
func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	isProd := h.cfg.IsProduction()

	sameSite := http.SameSiteLaxMode
	if isProd {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   isProd,
		HttpOnly: true,
		SameSite: sameSite,
	})
}
