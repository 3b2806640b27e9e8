// Package cache keeps dashboard aggregates and the logout revocation list in Redis.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "desk:"
	statsVersion  = keyPrefix + "stats:version"
	revokedPrefix = keyPrefix + "revoked:"
)

// Cache is safe to use as a nil pointer; every call then becomes a miss or a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// New wraps a connected client. ttl bounds how long stats entries live.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl, now: time.Now}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// statsKey namespaces name under the current stats generation so a single
// INCR invalidates every cached aggregate.
func (c *Cache) statsKey(ctx context.Context, name string) (string, error) {
	version, err := c.client.Get(ctx, statsVersion).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return keyPrefix + "stats:v" + strconv.FormatInt(version, 10) + ":" + name, nil
}

// LoadStats decodes a cached aggregate into dst and reports whether it was present.
func (c *Cache) LoadStats(ctx context.Context, name string, dst any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	key, err := c.statsKey(ctx, name)
	if err != nil {
		return false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// StoreStats caches an aggregate for the configured TTL.
func (c *Cache) StoreStats(ctx context.Context, name string, value any) error {
	if !c.enabled() {
		return nil
	}
	key, err := c.statsKey(ctx, name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// InvalidateStats drops every cached aggregate after a ticket write.
func (c *Cache) InvalidateStats(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, statsVersion).Err()
}

// RevokeToken blocks a token id until it would have expired anyway.
func (c *Cache) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !c.enabled() || tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether RevokeToken was called for tokenID.
func (c *Cache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !c.enabled() || tokenID == "" {
		return false, nil
	}
	n, err := c.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
