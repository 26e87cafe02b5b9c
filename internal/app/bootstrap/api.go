package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/parcelis-referrals/internal/api/router"
	appconfig "github.com/wolfman30/parcelis-referrals/internal/config"
	"github.com/wolfman30/parcelis-referrals/internal/observability/metrics"
	"github.com/wolfman30/parcelis-referrals/internal/ratelimit"
	"github.com/wolfman30/parcelis-referrals/internal/referrals"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

// APIDeps lets callers and tests substitute collaborators. Nil fields are
// built from config.
type APIDeps struct {
	Repository referrals.Repository
	Verifier   referrals.Verifier
	Notifier   referrals.Notifier
	Limiter    referrals.RateLimiter
	Registry   *prometheus.Registry
}

// API is the assembled referral service.
type API struct {
	Handler http.Handler
	// Sweeper is the in-process limiter, nil when Redis holds the windows.
	Sweeper *ratelimit.SlidingWindow

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Close releases the database pool and Redis client.
func (a *API) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// BuildAPI wires store, limiter, verifier and notifier into the referral
// gateway and returns the HTTP router.
func BuildAPI(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, deps APIDeps) (*API, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	api := &API{}

	healthCheck := func(context.Context) error { return nil }
	if deps.Repository == nil {
		pool, err := BuildDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		api.pool = pool
		if pool != nil {
			healthCheck = pool.Ping
		}
		repo, err := BuildReferralRepository(cfg, pool, logger)
		if err != nil {
			api.Close()
			return nil, err
		}
		deps.Repository = repo
	}

	if deps.Verifier == nil {
		v, err := BuildVerifier(cfg, logger)
		if err != nil {
			api.Close()
			return nil, err
		}
		deps.Verifier = v
	}

	if deps.Notifier == nil {
		sender, _, err := BuildEmailSender(ctx, cfg, logger)
		if err != nil {
			api.Close()
			return nil, err
		}
		deps.Notifier = BuildReferralNotifier(cfg, sender, logger)
	}

	if deps.Limiter == nil {
		if cfg.RateLimitBackend == "redis" {
			api.redis = BuildRedisClient(ctx, cfg, logger, true)
		}
		deps.Limiter, api.Sweeper = BuildRateLimiter(cfg, api.redis, logger)
	}

	var (
		referralMetrics *metrics.ReferralMetrics
		metricsHandler  http.Handler
	)
	if cfg.MetricsEnabled {
		reg := deps.Registry
		if reg == nil {
			reg = prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}
		referralMetrics = metrics.NewReferralMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	gateway, err := referrals.NewGateway(referrals.GatewayConfig{
		Repository:    deps.Repository,
		Limiter:       deps.Limiter,
		Verifier:      deps.Verifier,
		Notifier:      deps.Notifier,
		Metrics:       referralMetrics,
		Logger:        logger,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	if err != nil {
		api.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	api.Handler = router.New(&router.Config{
		Logger:             logger,
		ReferralsHandler:   referrals.NewHandler(gateway, referralMetrics, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthCheck:        healthCheck,
	})
	return api, nil
}
