package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/parcelis-referrals/internal/app/bootstrap"
	appconfig "github.com/wolfman30/parcelis-referrals/internal/config"
	"github.com/wolfman30/parcelis-referrals/internal/referrals"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

type fixedVerifier bool

func (v fixedVerifier) Verify(context.Context, string) bool { return bool(v) }

func newTestAPI(t *testing.T, verified bool) http.Handler {
	t.Helper()
	cfg := &appconfig.Config{
		Env:                "test",
		EmailProvider:      "stub",
		NotifyTimeout:      time.Second,
		CORSAllowedOrigins: []string{"https://parcelis.com"},
		RateLimitWindow:    time.Minute,
		RateLimitMax:       5,
		RateLimitBackend:   "memory",
	}
	api, err := bootstrap.BuildAPI(context.Background(), cfg, logging.NewWithWriter("error", io.Discard), bootstrap.APIDeps{
		Verifier: fixedVerifier(verified),
	})
	if err != nil {
		t.Fatalf("build api: %v", err)
	}
	t.Cleanup(api.Close)
	return api.Handler
}

func event(method, path, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		Headers: map[string]string{"content-type": "application/json", "origin": "https://parcelis.com"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "api.parcelis.com",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "203.0.113.50",
			},
		},
	}
}

const validBody = `{"captchaToken":"tok","referrerName":"Ada Lovelace","referrerEmail":"ada@example.com",` +
	`"referralName":"Grace Hopper","referralEmail":"grace@example.com","referralPhone":"+14155550123"}`

func TestHandleHealth(t *testing.T) {
	resp, err := handle(context.Background(), newTestAPI(t, true), event(http.MethodGet, "/health", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestHandleSubmitReferral(t *testing.T) {
	resp, err := handle(context.Background(), newTestAPI(t, true), event(http.MethodPost, "/api/referrals", validBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, resp.Body)
	}
	if resp.Headers["access-control-allow-origin"] != "https://parcelis.com" {
		t.Fatalf("expected CORS header, got %v", resp.Headers)
	}
	var out referrals.SubmitResponse
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !out.Success || out.ReferralID == "" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestHandleBase64Body(t *testing.T) {
	evt := event(http.MethodPost, "/api/referrals", base64.StdEncoding.EncodeToString([]byte(validBody)))
	evt.IsBase64Encoded = true

	resp, err := handle(context.Background(), newTestAPI(t, false), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected captcha rejection %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandleInvalidBase64(t *testing.T) {
	evt := event(http.MethodPost, "/api/referrals", "%%%")
	evt.IsBase64Encoded = true

	resp, err := handle(context.Background(), newTestAPI(t, true), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandleRateLimitsBySourceIP(t *testing.T) {
	api := newTestAPI(t, true)
	for i := 0; i < 5; i++ {
		resp, _ := handle(context.Background(), api, event(http.MethodPost, "/api/referrals", validBody))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}
	resp, _ := handle(context.Background(), api, event(http.MethodPost, "/api/referrals", validBody))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, resp.StatusCode)
	}
}

func TestHandlePreflight(t *testing.T) {
	resp, err := handle(context.Background(), newTestAPI(t, true), event(http.MethodOptions, "/api/referrals", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
}
