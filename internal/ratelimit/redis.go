package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter is a fixed-window counter shared by every instance using the same Redis
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
}

func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.normalized(), logger: zap.NewNop()}
}

// WithLogger sets where window repair failures are reported
func (l *RedisLimiter) WithLogger(logger *zap.Logger) *RedisLimiter {
	if logger != nil {
		l.logger = logger
	}
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.cfg.key(key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// first hit opens the window
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.cfg.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	decision := Decision{
		Allowed:   count <= int64(l.cfg.Requests),
		Limit:     l.cfg.Requests,
		Remaining: max(l.cfg.Requests-int(count), 0),
	}
	if decision.Allowed {
		return decision, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// a counter without expiry would block the key forever
		if err := l.client.Expire(ctx, redisKey, l.cfg.Window).Err(); err != nil {
			l.logger.Warn("failed to repair rate limit window",
				zap.String("key", redisKey),
				zap.Duration("window", l.cfg.Window),
				zap.Error(err),
			)
		}
		ttl = l.cfg.Window
	}
	decision.RetryAfter = ttl

	return decision, nil
}
