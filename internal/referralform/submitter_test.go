package referralform

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/parcelis-referrals/internal/ratelimit"
	"github.com/wolfman30/parcelis-referrals/internal/referrals"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type tokenVerifier struct{ accept string }

func (v tokenVerifier) Verify(_ context.Context, token string) bool { return token == v.accept }

func newGatewayServer(t *testing.T, max int) (*httptest.Server, *referrals.InMemoryRepository) {
	t.Helper()
	h, repo := newGatewayHandler(t, max)
	srv := httptest.NewServer(http.HandlerFunc(h.Submit))
	t.Cleanup(srv.Close)
	return srv, repo
}

func newGatewayHandler(t *testing.T, max int) (*referrals.Handler, *referrals.InMemoryRepository) {
	t.Helper()
	logger := logging.NewWithWriter("error", io.Discard)
	repo := referrals.NewInMemoryRepository()
	gw, err := referrals.NewGateway(referrals.GatewayConfig{
		Repository: repo,
		Limiter:    ratelimit.NewSlidingWindow(time.Minute, max),
		Verifier:   tokenVerifier{accept: "widget-token"},
		Logger:     logger,
	})
	require.NoError(t, err)
	return referrals.NewHandler(gw, nil, logger), repo
}

func TestNewHTTPSubmitter_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPSubmitter(" ", nil)
	assert.Error(t, err)
}

func TestHTTPSubmitter_EndToEndSuccess(t *testing.T) {
	srv, repo := newGatewayServer(t, 5)
	sub, err := NewHTTPSubmitter(srv.URL, srv.Client())
	require.NoError(t, err)
	c, _ := newController(t, sub)
	fillValid(t, c)

	state := c.Submit(context.Background())

	require.Equal(t, StateSucceeded, state, c.Message())
	assert.NotEmpty(t, c.ReferralID())
	stored := repo.All()
	require.Len(t, stored, 1)
	assert.Equal(t, c.ReferralID(), stored[0].ID)
}

func TestHTTPSubmitter_CaptchaRejected(t *testing.T) {
	srv, repo := newGatewayServer(t, 5)
	sub, err := NewHTTPSubmitter(srv.URL, srv.Client())
	require.NoError(t, err)
	c, w := newController(t, sub)
	w.token = "forged"
	fillValid(t, c)

	assert.Equal(t, StateFailed, c.Submit(context.Background()))
	assert.Equal(t, ReasonCaptcha, c.Reason())
	assert.Equal(t, "CAPTCHA verification failed. Please try again.", c.Message())
	assert.Equal(t, 0, repo.Count())
}

func TestHTTPSubmitter_MalformedBodyIsNotCaptcha(t *testing.T) {
	h, repo := newGatewayHandler(t, 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = io.NopCloser(strings.NewReader(`{"referrerName":`))
		h.Submit(w, r)
	}))
	defer srv.Close()
	sub, err := NewHTTPSubmitter(srv.URL, srv.Client())
	require.NoError(t, err)
	c, w := newController(t, sub)
	fillValid(t, c)

	assert.Equal(t, StateFailed, c.Submit(context.Background()))
	assert.Equal(t, ReasonNetwork, c.Reason())
	assert.Equal(t, "Invalid request body", c.Message())
	assert.Equal(t, 1, w.resets)
	assert.Equal(t, 0, repo.Count())
}

func TestHTTPSubmitter_ServerValidationFields(t *testing.T) {
	srv, _ := newGatewayServer(t, 5)
	sub, err := NewHTTPSubmitter(srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = sub.Submit(context.Background(), referrals.SubmitRequest{
		CaptchaToken:  "widget-token",
		ReferrerName:  "Ada Lovelace",
		ReferrerEmail: "ada@example.com",
		ReferralName:  "Grace Hopper",
		ReferralEmail: "not-an-email",
		ReferralPhone: "+14155550123",
	})

	var verr *referrals.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, referrals.ErrValidation)
	assert.Contains(t, verr.Fields, referrals.FieldReferralEmail)
}

func TestHTTPSubmitter_RateLimited(t *testing.T) {
	srv, _ := newGatewayServer(t, 1)
	sub, err := NewHTTPSubmitter(srv.URL, srv.Client())
	require.NoError(t, err)
	req := referrals.SubmitRequest{CaptchaToken: "widget-token"}

	_, _ = sub.Submit(context.Background(), req)
	_, err = sub.Submit(context.Background(), req)

	assert.ErrorIs(t, err, referrals.ErrRateLimited)
}

func TestHTTPSubmitter_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"captcha rejected", http.StatusBadRequest, `{"error":"CAPTCHA verification failed. Please try again."}`, referrals.ErrCaptcha},
		{"bad request without fields", http.StatusBadRequest, `{"error":"Invalid request body"}`, ErrNetwork},
		{"bad request empty body", http.StatusBadRequest, ``, ErrNetwork},
		{"server error", http.StatusInternalServerError, `{"error":"Failed to submit referral. Please try again."}`, referrals.ErrPersistence},
		{"bad gateway html", http.StatusBadGateway, `<html>oops</html>`, referrals.ErrPersistence},
		{"not found", http.StatusNotFound, ``, ErrNetwork},
		{"ok without id", http.StatusOK, `{"success":true}`, ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			sub, err := NewHTTPSubmitter(srv.URL, srv.Client())
			require.NoError(t, err)

			_, err = sub.Submit(context.Background(), referrals.SubmitRequest{})

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPSubmitter_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	sub, err := NewHTTPSubmitter(url, nil)
	require.NoError(t, err)

	_, err = sub.Submit(context.Background(), referrals.SubmitRequest{})

	assert.ErrorIs(t, err, ErrNetwork)
}
