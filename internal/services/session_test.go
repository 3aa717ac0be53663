package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestSessions(t *testing.T, revoker Revoker) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(SessionOptions{
		JWTSecret:  "test-secret",
		Password:   "hunter2",
		BcryptCost: bcrypt.MinCost,
	}, revoker)
	require.NoError(t, err)
	return m
}

func TestSessionManager_CheckPassword(t *testing.T) {
	m := newTestSessions(t, nil)

	assert.NoError(t, m.CheckPassword("hunter2"))
	assert.ErrorIs(t, m.CheckPassword("hunter3"), ErrUnauthorized)
	assert.ErrorIs(t, m.CheckPassword(""), ErrUnauthorized)
}

func TestSessionManager_PrecomputedHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	m, err := NewSessionManager(SessionOptions{JWTSecret: "s", PasswordHash: string(hash)}, nil)
	require.NoError(t, err)
	assert.NoError(t, m.CheckPassword("pw"))

	_, err = NewSessionManager(SessionOptions{JWTSecret: "s", PasswordHash: "plain"}, nil)
	assert.Error(t, err)
}

func TestSessionManager_IssueVerify(t *testing.T) {
	m := newTestSessions(t, nil)
	ctx := context.Background()

	token, expires, err := m.Issue("owner", "password")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionTTL), expires, time.Minute)

	claims, err := m.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "owner", claims.Subject)
	assert.Equal(t, "password", claims.Method)
	assert.NotEmpty(t, claims.ID)

	_, err = m.Verify(ctx, token+"x")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionManager_RejectsOtherSecret(t *testing.T) {
	a := newTestSessions(t, nil)
	b, err := NewSessionManager(SessionOptions{JWTSecret: "other", Password: "x", BcryptCost: bcrypt.MinCost}, nil)
	require.NoError(t, err)

	token, _, err := a.Issue("owner", "password")
	require.NoError(t, err)
	_, err = b.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionManager_Expiry(t *testing.T) {
	m := newTestSessions(t, nil)
	token, _, err := m.Issue("owner", "password")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = m.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionManager_RevokeMemory(t *testing.T) {
	rev := NewMemoryRevoker()
	m := newTestSessions(t, rev)
	ctx := context.Background()

	token, _, err := m.Issue("owner", "password")
	require.NoError(t, err)
	other, _, err := m.Issue("owner", "password")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, token))
	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.Verify(ctx, other)
	assert.NoError(t, err, "other sessions stay valid")

	assert.NoError(t, m.Revoke(ctx, "garbage"))

	assert.Equal(t, 0, rev.Sweep(time.Now()))
	assert.Equal(t, 1, rev.Sweep(time.Now().Add(48*time.Hour)))
}

func TestSessionManager_RevokeRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := newTestSessions(t, NewRedisRevoker(client, "test:"))
	ctx := context.Background()

	token, _, err := m.Issue("owner", "password")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, token))

	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "test:")
	assert.Greater(t, mr.TTL(keys[0]), 23*time.Hour)

	mr.FastForward(25 * time.Hour)
	assert.Empty(t, mr.Keys(), "entries expire with the session")
}

func TestMemoryRevoker_Run(t *testing.T) {
	rev := NewMemoryRevoker()
	require.NoError(t, rev.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rev.Run(ctx, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		revoked, _ := rev.IsRevoked(context.Background(), "old")
		return !revoked
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSameSecret(t *testing.T) {
	assert.True(t, SameSecret("abc", "abc"))
	assert.False(t, SameSecret("abc", "abd"))
	assert.False(t, SameSecret("", ""))
}
