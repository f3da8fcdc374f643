package utils

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mailkit/config"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	cache := NewRedisCache(redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	}))

	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return mr, cache
}

func TestRedisCacheSetGet(t *testing.T) {
	ctx := context.Background()
	mr, cache := setupTestRedis(t)

	_, ok, err := cache.Get(ctx, "verdict:gmail.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "verdict:gmail.com", "allowed", time.Hour))

	val, ok, err := cache.Get(ctx, "verdict:gmail.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "allowed", val)
	assert.Equal(t, time.Hour, mr.TTL("verdict:gmail.com"))
}

func TestRedisCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mr, cache := setupTestRedis(t)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheExpireAndPersist(t *testing.T) {
	ctx := context.Background()
	mr, cache := setupTestRedis(t)

	require.NoError(t, cache.Set(ctx, "k", "v", 0))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))

	require.NoError(t, cache.Expire(ctx, "k", 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL("k"))

	require.NoError(t, cache.Expire(ctx, "k", 0))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))
}

func TestRedisCacheDeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	mr, cache := setupTestRedis(t)

	require.NoError(t, cache.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, cache.Set(ctx, "b", "2", time.Minute))

	require.NoError(t, cache.Delete(ctx, "a"))
	assert.False(t, mr.Exists("a"))

	require.NoError(t, cache.Flush(ctx))
	assert.False(t, mr.Exists("b"))
}

func TestRedisCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	mr, cache := setupTestRedis(t)

	for i := 0; i < 250; i++ {
		require.NoError(t, cache.Set(ctx, "ratelimit:"+strconv.Itoa(i), "1", time.Minute))
	}
	require.NoError(t, cache.Set(ctx, "verdict:gmail.com", "allowed", 0))

	require.NoError(t, cache.DeletePrefix(ctx, "ratelimit:"))
	assert.Equal(t, []string{"verdict:gmail.com"}, mr.Keys())

	require.NoError(t, cache.DeletePrefix(ctx, "ratelimit:"))
}

func TestRedisCacheUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, cache := setupTestRedis(t)
	mr.Close()

	_, _, err := cache.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheUnavailable))

	err = cache.Set(ctx, "k", "v", time.Minute)
	assert.True(t, errors.Is(err, ErrCacheUnavailable))
}

func TestRedisCacheCloseIsIdempotent(t *testing.T) {
	_, cache := setupTestRedis(t)
	assert.NoError(t, cache.Close())
	assert.NoError(t, cache.Close())

	var never RedisCache
	assert.NoError(t, never.Close())
}

func TestNewCacheBackend(t *testing.T) {
	mem, err := NewCacheBackend(config.CheckerConfig{DBProvider: config.ProviderMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, mem)

	mr := miniredis.RunT(t)
	cfg := config.DefaultCheckerConfig()
	cfg.DBProvider = config.ProviderRedis
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = atoiPort(t, mr.Port())

	remote, err := NewCacheBackend(cfg)
	require.NoError(t, err)
	defer remote.Close()
	assert.IsType(t, &RedisCache{}, remote)
	require.NoError(t, remote.Set(context.Background(), "k", "v", time.Minute))
	assert.True(t, mr.Exists("k"))

	_, err = NewCacheBackend(config.CheckerConfig{DBProvider: "memcached"})
	assert.True(t, errors.Is(err, ErrDBProvider))
}

func atoiPort(t *testing.T, port string) int {
	t.Helper()
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return p
}
