package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errBadState = errors.New("invalid oauth state")

// oauthState rides along the Google round trip. The nonce makes every state
// unguessable; the state cookie binds it to the browser that started sign-in.
type oauthState struct {
	Next string `json:"next"`
}

// encode renders "<nonce>.<payload>", both parts base64url without padding.
func (s oauthState) encode() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("oauth state nonce: %w", err)
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("oauth state payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(nonce) + "." + base64.RawURLEncoding.EncodeToString(payload), nil
}

func decodeOAuthState(raw string) (oauthState, error) {
	nonce, payload, ok := strings.Cut(raw, ".")
	if !ok || nonce == "" || strings.Contains(payload, ".") {
		return oauthState{}, errBadState
	}
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return oauthState{}, fmt.Errorf("%w: %v", errBadState, err)
	}
	var s oauthState
	if err := json.Unmarshal(b, &s); err != nil {
		return oauthState{}, fmt.Errorf("%w: %v", errBadState, err)
	}
	s.Next = safeRedirect(s.Next)
	return s, nil
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}
