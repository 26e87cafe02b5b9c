package referralform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/parcelis-referrals/internal/referrals"
)

const defaultSubmitTimeout = 15 * time.Second

// ErrNetwork is returned when the gateway could not be reached or answered
// with something other than a referral response.
var ErrNetwork = errors.New("referralform: gateway unreachable")

// GatewayError is a failure reported by the gateway. It unwraps to the
// matching referrals sentinel (or ErrNetwork) so callers can use errors.Is.
type GatewayError struct {
	Status  int
	Message string
	Fields  referrals.FieldErrors
	err     error
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("referralform: gateway returned %d: %v", e.Status, e.err)
	}
	return fmt.Sprintf("referralform: gateway returned %d: %s", e.Status, e.Message)
}

func (e *GatewayError) Unwrap() []error {
	if len(e.Fields) > 0 {
		return []error{e.err, &referrals.ValidationError{Fields: e.Fields}}
	}
	return []error{e.err}
}

// HTTPSubmitter posts submissions to the referral endpoint as JSON.
type HTTPSubmitter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSubmitter returns a submitter for endpoint. A nil client gets a
// default one with a 15s timeout.
func NewHTTPSubmitter(endpoint string, client *http.Client) (*HTTPSubmitter, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("referralform: endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultSubmitTimeout}
	}
	return &HTTPSubmitter{endpoint: endpoint, client: client}, nil
}

// Submit sends req and returns the new referral id.
func (s *HTTPSubmitter) Submit(ctx context.Context, req referrals.SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("referralform: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("referralform: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}

	if resp.StatusCode == http.StatusOK {
		var ok referrals.SubmitResponse
		if err := json.Unmarshal(raw, &ok); err != nil || !ok.Success || ok.ReferralID == "" {
			return "", &GatewayError{Status: resp.StatusCode, err: ErrNetwork}
		}
		return ok.ReferralID, nil
	}

	var failure referrals.ErrorResponse
	_ = json.Unmarshal(raw, &failure)
	gwErr := &GatewayError{Status: resp.StatusCode, Message: failure.Error}
	switch {
	case resp.StatusCode == http.StatusBadRequest && len(failure.Fields) > 0:
		gwErr.Fields = failure.Fields
		gwErr.err = referrals.ErrValidation
	case resp.StatusCode == http.StatusBadRequest && failure.Error == referrals.MsgCaptchaFailed:
		gwErr.err = referrals.ErrCaptcha
	case resp.StatusCode == http.StatusTooManyRequests:
		gwErr.err = referrals.ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		gwErr.err = referrals.ErrPersistence
	default:
		gwErr.err = ErrNetwork
	}
	return "", gwErr
}
