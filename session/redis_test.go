package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, NewRedisStore(client)
}

func TestRedisStore_RefreshLifecycle(t *testing.T) {
	mr, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefresh(ctx, "chef", "jti-1", time.Hour))
	require.NoError(t, s.SaveRefresh(ctx, "chef", "jti-2", time.Hour))

	ok, err := s.RefreshValid(ctx, "chef", "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RefreshValid(ctx, "waiter", "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.DropRefresh(ctx, "chef")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("refresh_user:chef"))

	ok, err = s.RefreshValid(ctx, "chef", "jti-2")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = s.DropRefresh(ctx, "chef")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_RefreshExpires(t *testing.T) {
	mr, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefresh(ctx, "chef", "jti-1", time.Minute))
	mr.FastForward(2 * time.Minute)

	ok, err := s.RefreshValid(ctx, "chef", "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Revoke(t *testing.T) {
	mr, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "access-1", 30*time.Second))
	revoked, err := s.Revoked(ctx, "access-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(time.Minute)
	revoked, err = s.Revoked(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "already-expired", 0))
	assert.False(t, mr.Exists("revoked:already-expired"))
}

func TestMemoryStore_MatchesRedisSemantics(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.SaveRefresh(ctx, "chef", "jti-1", time.Minute))
	ok, _ := s.RefreshValid(ctx, "chef", "jti-1")
	assert.True(t, ok)

	require.NoError(t, s.Revoke(ctx, "access-1", time.Minute))
	revoked, _ := s.Revoked(ctx, "access-1")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	ok, _ = s.RefreshValid(ctx, "chef", "jti-1")
	assert.False(t, ok)
	revoked, _ = s.Revoked(ctx, "access-1")
	assert.False(t, revoked)

	n, err := s.DropRefresh(ctx, "chef")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_RevokeUser(t *testing.T) {
	mr, s := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	cutoff, err := s.UserRevokedAt(ctx, "waiter")
	require.NoError(t, err)
	assert.True(t, cutoff.IsZero())

	require.NoError(t, s.RevokeUser(ctx, "waiter", at, time.Hour))
	cutoff, err = s.UserRevokedAt(ctx, "waiter")
	require.NoError(t, err)
	assert.True(t, at.Equal(cutoff))

	mr.FastForward(2 * time.Hour)
	cutoff, err = s.UserRevokedAt(ctx, "waiter")
	require.NoError(t, err)
	assert.True(t, cutoff.IsZero())
}

func TestMemoryStore_RevokeUser(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.RevokeUser(ctx, "waiter", now.Add(500*time.Millisecond), time.Hour))
	cutoff, err := s.UserRevokedAt(ctx, "waiter")
	require.NoError(t, err)
	assert.Equal(t, now, cutoff)

	cutoff, _ = s.UserRevokedAt(ctx, "chef")
	assert.True(t, cutoff.IsZero())

	now = now.Add(time.Hour)
	cutoff, _ = s.UserRevokedAt(ctx, "waiter")
	assert.True(t, cutoff.IsZero())
}
