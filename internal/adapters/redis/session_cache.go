package redis

// Package redis provides the Redis-backed session cache. The cache holds
// the single currently-valid token per (subject, purpose) key; Redis TTL
// is the only expiry mechanism, never re-implemented here.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tiwed/auth-api/internal/ports"
)

// ErrCacheMiss mirrors ports.ErrCacheMiss for callers working directly
// with this package.
var ErrCacheMiss = ports.ErrCacheMiss

// SessionCache is a Redis-backed key/value store with per-key expiry.
type SessionCache struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionCache creates a session cache with the default key prefix.
func NewSessionCache(client redis.UniversalClient) *SessionCache {
	return &SessionCache{client: client, prefix: "auth:"}
}

// NewSessionCacheWithPrefix creates a session cache with a custom key prefix.
func NewSessionCacheWithPrefix(client redis.UniversalClient, prefix string) *SessionCache {
	return &SessionCache{client: client, prefix: prefix}
}

// Get returns the cached value for key, or ErrCacheMiss when the key is
// absent. A key past its TTL and an explicitly deleted key are
// indistinguishable: both report ErrCacheMiss.
func (c *SessionCache) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrCacheMiss
	}

	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores value under key with the given TTL, overwriting any prior
// value. The overwrite is what enforces single-active-session semantics.
func (c *SessionCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}

	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *SessionCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
