package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const DefaultSessionTTL = 24 * time.Hour

// SessionClaims is the payload of the login cookie.
type SessionClaims struct {
	Method string `json:"method"` // "password" or "google"
	jwt.RegisteredClaims
}

type SessionOptions struct {
	JWTSecret string
	// Password is hashed at startup unless PasswordHash already holds a
	// bcrypt hash.
	Password     string
	PasswordHash string
	TTL          time.Duration
	BcryptCost   int
}

// SessionManager signs and checks owner sessions.
type SessionManager struct {
	secret  []byte
	hash    []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

func NewSessionManager(opts SessionOptions, revoker Revoker) (*SessionManager, error) {
	if opts.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	hash := []byte(opts.PasswordHash)
	if len(hash) == 0 {
		if opts.Password == "" {
			return nil, errors.New("password or password hash is required")
		}
		cost := opts.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(opts.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &SessionManager{
		secret:  []byte(opts.JWTSecret),
		hash:    hash,
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}, nil
}

func (m *SessionManager) TTL() time.Duration { return m.ttl }

// CheckPassword compares password with the configured login password.
func (m *SessionManager) CheckPassword(password string) error {
	if password == "" {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(m.hash, []byte(password)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// Issue signs a new session for subject.
func (m *SessionManager) Issue(subject, method string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := &SessionClaims{
		Method: method,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

func (m *SessionManager) parse(token string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	claims := &SessionClaims{}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Verify accepts a signed, unexpired and unrevoked session.
func (m *SessionManager) Verify(ctx context.Context, token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Revoke invalidates token for the rest of its lifetime. Tokens that are
// already invalid are ignored.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// SameSecret reports whether a and b match, in constant time.
func SameSecret(a, b string) bool {
	return a != "" && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
