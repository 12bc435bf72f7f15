package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when a fixed-window budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport-level limiter failures.
	ErrRedisUnavailable = errors.New("rate limiter backend unavailable")
)

// Window is a Redis-backed fixed-window counter shared across instances.
// Expiry of the window is delegated to the key's TTL.
type Window struct {
	redis  redis.UniversalClient
	prefix string
	max    int
	ttl    time.Duration
}

// NewWindow creates a fixed-window counter allowing max hits per ttl under
// each key, namespaced by prefix.
func NewWindow(redisClient redis.UniversalClient, prefix string, max int, ttl time.Duration) *Window {
	return &Window{
		redis:  redisClient,
		prefix: prefix,
		max:    max,
		ttl:    ttl,
	}
}

// Check spends one hit under key. It returns ErrRateLimited once the budget
// for the current window is gone.
func (w *Window) Check(ctx context.Context, key string) error {
	full := w.prefix + ":" + key

	count, err := w.redis.Incr(ctx, full).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := w.redis.Expire(ctx, full, w.ttl).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(w.max) {
		return ErrRateLimited
	}

	return nil
}
