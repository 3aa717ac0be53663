package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rohits-web03/fileinpic/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newFakeGoogle(t *testing.T, user GoogleUser) *GoogleAuth {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewGoogleAuth(config.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/api/auth/google/callback",
	}, []string{"Owner@Example.com"})
	g.oauth.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	g.userInfoURL = srv.URL + "/userinfo"
	return g
}

func TestGoogleAuth_AuthCodeURL(t *testing.T) {
	g := NewGoogleAuth(config.GoogleConfig{ClientID: "client", ClientSecret: "s", RedirectURL: "http://localhost/cb"}, nil)

	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
}

func TestGoogleAuth_OwnerAccepted(t *testing.T) {
	g := newFakeGoogle(t, GoogleUser{ID: "1", Email: "owner@example.com", VerifiedEmail: true})

	user, err := g.Authenticate(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
}

func TestGoogleAuth_StrangerRejected(t *testing.T) {
	g := newFakeGoogle(t, GoogleUser{ID: "2", Email: "someone@example.com", VerifiedEmail: true})

	_, err := g.Authenticate(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGoogleAuth_UnverifiedRejected(t *testing.T) {
	g := newFakeGoogle(t, GoogleUser{ID: "1", Email: "owner@example.com"})

	_, err := g.Authenticate(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGoogleAuth_BadCode(t *testing.T) {
	g := newFakeGoogle(t, GoogleUser{Email: "owner@example.com", VerifiedEmail: true})

	_, err := g.Authenticate(context.Background(), "bad-code")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	_, err = g.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalid)
}
