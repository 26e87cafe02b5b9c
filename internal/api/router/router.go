package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/parcelis-referrals/internal/http/middleware"
	"github.com/wolfman30/parcelis-referrals/internal/referrals"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	ReferralsHandler *referrals.Handler
	MetricsHandler   http.Handler

	// CORSAllowedOrigins applies to the referral endpoint only. The first
	// entry is returned to callers whose origin is not listed.
	CORSAllowedOrigins []string

	// HealthCheck, when set, is consulted by /health (e.g. a database ping).
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ReferralsHandler != nil {
		r.Route("/api/referrals", func(ref chi.Router) {
			ref.Use(httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowedOrigins: cfg.CORSAllowedOrigins,
			}))
			// OPTIONS never reaches routing; the CORS middleware answers it.
			ref.Post("/", cfg.ReferralsHandler.Submit)
		})
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
