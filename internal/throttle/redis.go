package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "authguard:throttle:"

// RedisLimiter is a fixed window counter shared by every instance using the same Redis.
// It fails open: when Redis is unreachable the attempt is allowed and the error logged.
type RedisLimiter struct {
	client   redis.Cmdable
	attempts int64
	window   time.Duration
	logger   *zap.Logger
}

// NewRedisLimiter allows attempts per window for each key.
func NewRedisLimiter(client redis.Cmdable, attempts int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{client: client, attempts: int64(attempts), window: window, logger: logger}
}

// Allow increments the counter for key in the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := redisKeyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("throttle backend unavailable, allowing attempt", zap.Error(err))
		return Decision{Allowed: true}, nil
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.Warn("throttle window expiry not set", zap.String("key", redisKey), zap.Error(err))
		}
	}
	if count <= l.attempts {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// A counter without expiry would block the key forever.
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}
