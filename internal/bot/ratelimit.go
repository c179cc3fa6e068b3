package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles per-user command traffic.
type RateLimiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

// RedisRateLimiter allows limit commands per window per user, counted
// with INCR on a key that expires with the window.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("ratelimit:user:%d", userID)

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return count <= int64(rl.limit), nil
}

// noopLimiter is used when Redis is not configured.
type noopLimiter struct{}

func (noopLimiter) Allow(ctx context.Context, userID int64) (bool, error) { return true, nil }
