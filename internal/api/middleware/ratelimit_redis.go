package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed one-second window counter shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *slog.Logger
}

func NewRedisLimiter(client *redis.Client, rps float64, logger *slog.Logger) *RedisLimiter {
	limit := int64(rps)
	if limit < 1 {
		limit = 1
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: time.Second,
		logger: logger.With("component", "RedisLimiter"),
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s", ip)

	pipe := rl.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis pipeline: %w", err)
	}

	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}

	ttl, err := ttlCmd.Result()
	if err != nil {
		rl.logger.ErrorContext(ctx, "Failed to read TTL of rate limit key", "error", err, "key", key)
	}
	if ttl < 0 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			rl.logger.ErrorContext(ctx, "Failed to set EXPIRE on rate limit key", "error", err, "key", key)
		}
	}

	return count <= rl.limit, nil
}
