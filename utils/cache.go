package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"mailkit/config"
)

// CacheBackend is the key-value store behind the checker. A ttl <= 0 stores
// the value without expiry. Remote implementations wrap connectivity errors
// in ErrCacheUnavailable.
type CacheBackend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Flush(ctx context.Context) error
	Close() error
}

// NewCacheBackend builds the backend named by cfg.DBProvider.
func NewCacheBackend(cfg config.CheckerConfig) (CacheBackend, error) {
	switch cfg.DBProvider {
	case "", config.ProviderMemory:
		return NewMemoryCache(), nil
	case config.ProviderRedis:
		return NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrDBProvider, cfg.DBProvider)
	}
}
