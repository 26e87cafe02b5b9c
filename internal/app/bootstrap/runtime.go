package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/parcelis-referrals/internal/captcha"
	appconfig "github.com/wolfman30/parcelis-referrals/internal/config"
	"github.com/wolfman30/parcelis-referrals/internal/ratelimit"
	"github.com/wolfman30/parcelis-referrals/internal/referrals"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRateLimiter picks the limiter backend. The in-process window is also
// returned so the caller can run its sweeper; it is nil for Redis.
func BuildRateLimiter(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (referrals.RateLimiter, *ratelimit.SlidingWindow) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.RateLimitBackend == "redis" {
		if redisClient != nil {
			logger.Info("rate limiter using redis", "window", cfg.RateLimitWindow.String(), "max", cfg.RateLimitMax)
			return ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitWindow, cfg.RateLimitMax, logger), nil
		}
		logger.Warn("RATE_LIMIT_BACKEND=redis but redis unavailable; falling back to in-memory limiter")
	}
	window := ratelimit.NewSlidingWindow(cfg.RateLimitWindow, cfg.RateLimitMax)
	logger.Info("rate limiter using process memory", "window", cfg.RateLimitWindow.String(), "max", cfg.RateLimitMax)
	return window, window
}

// BuildDBPool opens the referral database pool, or returns nil when
// DATABASE_URL is unset.
func BuildDBPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildReferralRepository returns the Postgres store when a pool is present.
// Without one, production refuses to start and other environments keep
// referrals in memory.
func BuildReferralRepository(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (referrals.Repository, error) {
	if pool != nil {
		return referrals.NewPostgresRepository(pool), nil
	}
	if cfg.Env == "production" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required in production")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Warn("DATABASE_URL not set; referrals are kept in memory and lost on restart")
	return referrals.NewInMemoryRepository(), nil
}

// BuildVerifier returns the hCaptcha checker.
func BuildVerifier(cfg *appconfig.Config, logger *logging.Logger) (*captcha.Verifier, error) {
	v, err := captcha.NewVerifier(captcha.Config{
		Secret:    cfg.HCaptchaSecret,
		VerifyURL: cfg.HCaptchaVerifyURL,
		Timeout:   cfg.CaptchaTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return v, nil
}
