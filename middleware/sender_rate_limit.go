package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"mailkit/utils"
)

const rateLimitKeyPrefix = "ratelimit:"

// SendRateLimiter limits POST /email per client IP. When storage is nil the
// limiter keeps its counters in process memory.
func SendRateLimiter(max int, storage fiber.Storage) fiber.Handler {
	if max <= 0 {
		max = 30
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "send:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			utils.LogEvent("rate_limit_hit", map[string]interface{}{
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"user_agent": c.Get("User-Agent"),
			})

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many send requests. Please wait before sending again.",
				"retry_after": "1 minute",
			})
		},
		Storage: storage,
	})
}

// CacheStorage implements fiber.Storage on top of the checker's cache
// backend, so rate-limit counters live next to the cached verdicts.
type CacheStorage struct {
	backend utils.CacheBackend
}

func NewCacheStorage(backend utils.CacheBackend) *CacheStorage {
	return &CacheStorage{backend: backend}
}

// Get returns nil, nil for a missing key as fiber.Storage requires.
func (s *CacheStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, ok, err := s.backend.Get(context.Background(), rateLimitKeyPrefix+key)
	if err != nil || !ok {
		return nil, err
	}
	return []byte(val), nil
}

func (s *CacheStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.backend.Set(context.Background(), rateLimitKeyPrefix+key, string(val), exp)
}

func (s *CacheStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.backend.Delete(context.Background(), rateLimitKeyPrefix+key)
}

// Reset drops the limiter's counters only; verdicts sharing the backend stay.
func (s *CacheStorage) Reset() error {
	return s.backend.DeletePrefix(context.Background(), rateLimitKeyPrefix)
}

// Close is a no-op; the checker owns the backend.
func (s *CacheStorage) Close() error {
	return nil
}
