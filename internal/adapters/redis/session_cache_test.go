package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSessionCache(client), mr
}

func TestSessionCache_SetAndGet(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "access:user-1", "token-abc", time.Minute))

	val, err := cache.Get(ctx, "access:user-1")
	require.NoError(t, err)
	assert.Equal(t, "token-abc", val)
}

func TestSessionCache_GetMissing(t *testing.T) {
	cache, _ := setupCache(t)

	_, err := cache.Get(context.Background(), "access:nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSessionCache_SetOverwrites(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "refresh:user-1", "old", time.Minute))
	require.NoError(t, cache.Set(ctx, "refresh:user-1", "new", time.Minute))

	val, err := cache.Get(ctx, "refresh:user-1")
	require.NoError(t, err)
	assert.Equal(t, "new", val)
}

func TestSessionCache_Delete(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "refresh:user-1", "token", time.Minute))
	require.NoError(t, cache.Delete(ctx, "refresh:user-1"))

	_, err := cache.Get(ctx, "refresh:user-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting again is a no-op, not an error.
	require.NoError(t, cache.Delete(ctx, "refresh:user-1"))
}

func TestSessionCache_TTLExpiry(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "reset:user-1", "token", time.Second))

	mr.FastForward(2 * time.Second)

	_, err := cache.Get(ctx, "reset:user-1")
	assert.ErrorIs(t, err, ErrCacheMiss, "expired key must read as a miss")
}

func TestSessionCache_EmptyKey(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, cache.Set(ctx, "", "v", time.Minute))
	assert.NoError(t, cache.Delete(ctx, ""))
}

func TestSessionCache_Prefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewSessionCacheWithPrefix(client, "tiwed:")
	require.NoError(t, cache.Set(context.Background(), "access:u", "tok", time.Minute))

	assert.True(t, mr.Exists("tiwed:access:u"))
}
