package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rohits-web03/fileinpic/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the part of the userinfo response we care about.
type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// GoogleAuth signs owners in with their Google account. Only addresses in
// the owner list get a session.
type GoogleAuth struct {
	oauth       *oauth2.Config
	userInfoURL string
	owners      map[string]struct{}
}

func NewGoogleAuth(cfg config.GoogleConfig, ownerEmails []string) *GoogleAuth {
	owners := make(map[string]struct{}, len(ownerEmails))
	for _, e := range ownerEmails {
		owners[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &GoogleAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		owners:      owners,
	}
}

func (g *GoogleAuth) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Authenticate exchanges code and returns the Google user when it is an owner.
func (g *GoogleAuth) Authenticate(ctx context.Context, code string) (GoogleUser, error) {
	if code == "" {
		return GoogleUser{}, fmt.Errorf("%w: missing authorization code", ErrInvalid)
	}
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return GoogleUser{}, fmt.Errorf("code exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return GoogleUser{}, err
	}
	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return GoogleUser{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return GoogleUser{}, fmt.Errorf("fetch user info: status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return GoogleUser{}, fmt.Errorf("parse user info: %w", err)
	}
	if !user.VerifiedEmail {
		return GoogleUser{}, ErrUnauthorized
	}
	if _, ok := g.owners[strings.ToLower(user.Email)]; !ok {
		return GoogleUser{}, ErrUnauthorized
	}
	return user, nil
}
