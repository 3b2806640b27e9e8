package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counts struct {
	Total int `json:"total"`
	Open  int `json:"open"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute), srv
}

func TestStatsRoundTripAndInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got counts
	hit, err := c.LoadStats(ctx, "global", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.StoreStats(ctx, "global", counts{Total: 5, Open: 2}))
	hit, err = c.LoadStats(ctx, "global", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, counts{Total: 5, Open: 2}, got)

	require.NoError(t, c.InvalidateStats(ctx))
	hit, err = c.LoadStats(ctx, "global", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStatsExpire(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.StoreStats(ctx, "monthly:2024", []int{1, 2, 3}))
	srv.FastForward(2 * time.Minute)

	var got []int
	hit, err := c.LoadStats(ctx, "monthly:2024", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRevocation(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, c.RevokeToken(ctx, "jti-old", time.Now().Add(-time.Hour)))

	revoked, err := c.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = c.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	srv.FastForward(2 * time.Hour)
	revoked, err = c.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	hit, err := c.LoadStats(ctx, "x", &counts{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.StoreStats(ctx, "x", 1))
	assert.NoError(t, c.InvalidateStats(ctx))
	assert.NoError(t, c.RevokeToken(ctx, "a", time.Now().Add(time.Hour)))
	revoked, err := c.IsRevoked(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, revoked)
}
