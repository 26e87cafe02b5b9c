package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

var captchaTracer = otel.Tracer("parcelis.internal.captcha")

// DefaultVerifyURL is the hCaptcha siteverify endpoint.
const DefaultVerifyURL = "https://api.hcaptcha.com/siteverify"

// Config describes how to reach the verification provider.
type Config struct {
	Secret    string
	VerifyURL string
	Timeout   time.Duration
}

// Verifier checks tokens against an hCaptcha-compatible siteverify endpoint.
type Verifier struct {
	secret    string
	verifyURL string
	http      *http.Client
	logger    *logging.Logger
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewVerifier validates the configuration and returns a ready-to-use verifier.
func NewVerifier(cfg Config, logger *logging.Logger) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("captcha: secret required")
	}
	verifyURL := strings.TrimSpace(cfg.VerifyURL)
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Verifier{
		secret:    cfg.Secret,
		verifyURL: verifyURL,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// Verify makes exactly one provider call for token. Anything other than an
// explicit success, including transport errors and timeouts, returns false.
func (v *Verifier) Verify(ctx context.Context, token string) bool {
	ctx, span := captchaTracer.Start(ctx, "captcha.verify")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	form := url.Values{}
	form.Set("response", token)
	form.Set("secret", v.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		v.logger.Error("captcha request build failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.http.Do(req)
	if err != nil {
		span.RecordError(err)
		v.logger.Warn("captcha provider unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.Warn("captcha provider returned error status", "status", resp.StatusCode)
		return false
	}

	var result siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&result); err != nil {
		v.logger.Warn("captcha provider response unreadable", "error", err)
		return false
	}
	span.SetAttributes(attribute.Bool("captcha.success", result.Success))
	v.logger.Info("captcha verification result", "success", result.Success, "error_codes", result.ErrorCodes)
	return result.Success
}
