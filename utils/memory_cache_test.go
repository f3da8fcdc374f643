package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", "v1", time.Minute))
	require.NoError(t, cache.Set(ctx, "k", "v2", time.Minute))

	val, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", val)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewMemoryCacheWithClock(clock.Now)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Hour))
	clock.Advance(59 * time.Minute)
	_, ok, _ := cache.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired key should be evicted on get")
}

func TestMemoryCacheSetResetsTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewMemoryCacheWithClock(clock.Now)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Hour))
	clock.Advance(50 * time.Minute)
	require.NoError(t, cache.Set(ctx, "k", "v", time.Hour))
	clock.Advance(50 * time.Minute)

	_, ok, _ := cache.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryCacheNoTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewMemoryCacheWithClock(clock.Now)

	require.NoError(t, cache.Set(ctx, "k", "v", 0))
	clock.Advance(365 * 24 * time.Hour)
	_, ok, _ := cache.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryCacheExpire(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewMemoryCacheWithClock(clock.Now)

	require.NoError(t, cache.Set(ctx, "k", "v", 0))
	require.NoError(t, cache.Expire(ctx, "k", time.Second))
	require.NoError(t, cache.Expire(ctx, "missing", time.Second))

	clock.Advance(2 * time.Second)
	_, ok, _ := cache.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryCacheDeleteFlushClose(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	require.NoError(t, cache.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, cache.Set(ctx, "b", "2", time.Minute))

	require.NoError(t, cache.Delete(ctx, "a"))
	require.NoError(t, cache.Delete(ctx, "a"))
	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, cache.Flush(ctx))
	assert.Equal(t, 0, cache.Len())

	assert.NoError(t, cache.Close())
	assert.NoError(t, cache.Close())
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	require.NoError(t, cache.Set(ctx, "ratelimit:1.2.3.4", "3", time.Minute))
	require.NoError(t, cache.Set(ctx, "ratelimit:5.6.7.8", "1", 0))
	require.NoError(t, cache.Set(ctx, "verdict:gmail.com", "allowed", 0))

	require.NoError(t, cache.DeletePrefix(ctx, "ratelimit:"))
	assert.Equal(t, 1, cache.Len())
	_, ok, _ := cache.Get(ctx, "verdict:gmail.com")
	assert.True(t, ok)
}
