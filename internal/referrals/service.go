package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/parcelis-referrals/internal/observability/metrics"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

var gatewayTracer = otel.Tracer("parcelis.internal.referrals")

const defaultNotifyTimeout = 5 * time.Second

// RateLimiter admits or refuses a caller. Implementations must be safe for
// concurrent use.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// Verifier checks a human-verification token with the provider. It fails
// closed: any error is reported as false.
type Verifier interface {
	Verify(ctx context.Context, token string) bool
}

// Notifier sends the referrer a confirmation for a stored referral.
type Notifier interface {
	NotifyReferral(ctx context.Context, ref *Referral) error
}

// GatewayConfig wires the gateway's collaborators.
type GatewayConfig struct {
	Repository    Repository
	Limiter       RateLimiter
	Verifier      Verifier
	Notifier      Notifier
	Metrics       *metrics.ReferralMetrics
	Logger        *logging.Logger
	NotifyTimeout time.Duration
}

// Gateway orchestrates one referral submission: admission, validation,
// verification, persistence and a best-effort confirmation.
type Gateway struct {
	repo          Repository
	limiter       RateLimiter
	verifier      Verifier
	notifier      Notifier
	metrics       *metrics.ReferralMetrics
	logger        *logging.Logger
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewGateway validates the wiring and returns a gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Repository == nil {
		return nil, errors.New("referrals: repository required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("referrals: verifier required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("referrals: rate limiter required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &Gateway{
		repo:          cfg.Repository,
		limiter:       cfg.Limiter,
		verifier:      cfg.Verifier,
		notifier:      cfg.Notifier,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		notifyTimeout: cfg.NotifyTimeout,
		now:           time.Now,
	}, nil
}

// Admit consults the rate limiter for callerKey. It runs before the request
// body is read.
func (g *Gateway) Admit(ctx context.Context, callerKey string) error {
	if !g.limiter.Allow(ctx, callerKey) {
		g.logger.Info("referral rate limited", "caller_key", callerKey)
		return ErrRateLimited
	}
	return nil
}

// Submit validates, verifies and stores one referral, then attempts the
// confirmation email. The record is only written after the verification call
// for this request succeeded. Notification failures are logged and never
// returned.
func (g *Gateway) Submit(ctx context.Context, callerKey string, req SubmitRequest) (*Referral, error) {
	ctx, span := gatewayTracer.Start(ctx, "referrals.submit")
	defer span.End()

	req = req.Normalize()
	g.logger.Info("referral submission received",
		"referrer_name", req.ReferrerName,
		"referral_name", req.ReferralName,
		"has_captcha", req.CaptchaToken != "",
		"caller_key", callerKey,
	)

	if fields := Validate(req); len(fields) > 0 {
		span.SetStatus(codes.Error, "validation")
		return nil, &ValidationError{Fields: fields}
	}

	if !g.verify(ctx, req.CaptchaToken) {
		span.SetStatus(codes.Error, "captcha")
		return nil, ErrCaptcha
	}

	stored, err := g.persist(ctx, req.toReferral())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence")
		g.logger.Error("referral insert failed", "error", err, "caller_key", callerKey)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	span.SetAttributes(attribute.String("parcelis.referral_id", stored.ID))
	g.logger.Info("referral stored", "referral_id", stored.ID)

	g.notify(ctx, stored)
	return stored, nil
}

func (g *Gateway) verify(ctx context.Context, token string) bool {
	if token == "" {
		g.logger.Info("referral captcha missing")
		return false
	}
	start := g.now()
	ok := g.verifier.Verify(ctx, token)
	g.metrics.ObserveStage("captcha", g.now().Sub(start).Seconds())
	if !ok {
		g.logger.Info("referral captcha rejected")
	}
	return ok
}

func (g *Gateway) persist(ctx context.Context, ref *Referral) (*Referral, error) {
	start := g.now()
	defer func() { g.metrics.ObserveStage("persist", g.now().Sub(start).Seconds()) }()
	stored, err := g.repo.Insert(ctx, ref)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.ID == "" {
		return nil, errors.New("referrals: store returned no id")
	}
	return stored, nil
}

// notify runs after the record is committed. It detaches from the caller's
// cancellation so a dropped connection does not abort the send, but stays
// bounded by notifyTimeout.
func (g *Gateway) notify(ctx context.Context, ref *Referral) {
	if g.notifier == nil {
		g.metrics.ObserveNotification(metrics.NotificationSkipped)
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.notifyTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			g.metrics.ObserveNotification(metrics.NotificationFailed)
			g.logger.Error("referral confirmation email panicked", "panic", r, "referral_id", ref.ID)
		}
	}()

	start := g.now()
	err := g.notifier.NotifyReferral(notifyCtx, ref)
	g.metrics.ObserveStage("notify", g.now().Sub(start).Seconds())
	if err != nil {
		g.metrics.ObserveNotification(metrics.NotificationFailed)
		g.logger.Warn("referral confirmation email failed (non-critical)", "error", err, "referral_id", ref.ID)
		return
	}
	g.metrics.ObserveNotification(metrics.NotificationSent)
}
