package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

const redisKeyPrefix = "ratelimit:referrals:"

// Trims the key's sorted set to the window, then adds the request only when
// the remaining count is under the ceiling. Runs atomically on the server.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
if count >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', key, ARGV[1], ARGV[5])
redis.call('PEXPIRE', key, ARGV[4])
return 1
`)

// RedisLimiter is a sliding-window limiter whose state lives in Redis, so all
// instances share one budget per key.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	max    int
	logger *logging.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, window time.Duration, max int, logger *logging.Logger) *RedisLimiter {
	if client == nil {
		panic("ratelimit: redis client required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLimiter{
		client: client,
		window: window,
		max:    max,
		logger: logger,
		now:    time.Now,
	}
}

// Allow admits key when its window has room. Redis errors admit the request.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	now := l.now()
	nowMs := now.UnixMilli()
	cutoffMs := now.Add(-l.window).UnixMilli()
	allowed, err := slidingWindowScript.Run(ctx, l.client,
		[]string{redisKeyPrefix + key},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(cutoffMs, 10),
		l.max,
		l.window.Milliseconds(),
		strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
	).Int()
	if err != nil {
		l.logger.Warn("redis rate limiter unavailable, admitting request", "error", err, "caller_key", key)
		return true
	}
	return allowed == 1
}
