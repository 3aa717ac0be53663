package services

import "crypto/subtle"

// AccessGuard checks a single shared secret.
type AccessGuard struct {
	secret []byte
}

func NewAccessGuard(secret string) *AccessGuard {
	return &AccessGuard{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured at all.
func (g *AccessGuard) Enabled() bool { return len(g.secret) > 0 }

// Authorize accepts supplied only when it equals the configured secret.
// With no secret configured nothing is accepted.
func (g *AccessGuard) Authorize(supplied string) error {
	if len(g.secret) == 0 || supplied == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(g.secret, []byte(supplied)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
