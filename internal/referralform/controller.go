// Package referralform drives the referral form on the client side: local
// validation, the verification widget and the call to the submission gateway.
package referralform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wolfman30/parcelis-referrals/internal/referrals"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

// State is a step of the form's lifecycle.
type State int

const (
	StateEditing State = iota
	StateValidating
	StateAwaitingVerification
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateValidating:
		return "validating"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason explains a StateFailed.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonValidation     Reason = "validation"
	ReasonCaptchaMissing Reason = "captcha_missing"
	ReasonCaptcha        Reason = "captcha"
	ReasonRateLimited    Reason = "rate_limited"
	ReasonPersistence    Reason = "persistence"
	ReasonNetwork        Reason = "network"
)

const (
	msgFixFields      = "Please correct the highlighted fields."
	msgCaptchaMissing = "Please complete the CAPTCHA verification."
	msgCaptcha        = referrals.MsgCaptchaFailed
	msgRateLimited    = "Too many requests. Please try again later."
	msgSubmitFailed   = "Failed to submit referral. Please try again."
	msgNetwork        = "Could not reach the server. Please try again."
	msgSucceeded      = "Referral submitted successfully! We'll reach out soon."
)

// CaptchaWidget is the human-verification widget embedded in the form.
// Token returns "" until the user has solved the challenge.
type CaptchaWidget interface {
	Token() string
	Reset()
}

// Submitter sends a submission to the gateway and returns the referral id.
type Submitter interface {
	Submit(ctx context.Context, req referrals.SubmitRequest) (string, error)
}

var (
	// ErrUnknownField is returned by SetField for names outside the form.
	ErrUnknownField = errors.New("referralform: unknown field")
	// ErrFormLocked is returned by SetField while a submission is in flight
	// or after it succeeded. The edit is not recorded.
	ErrFormLocked = errors.New("referralform: form is locked")
)

// Controller holds the form fields and moves through
// Editing → Validating → AwaitingVerification → Submitting → Succeeded,
// or stops at Failed with a Reason. It is safe for concurrent use; a second
// Submit while one is in flight returns StateSubmitting without a call.
type Controller struct {
	mu        sync.Mutex
	values    map[string]string
	widget    CaptchaWidget
	submitter Submitter
	rules     referrals.Ruleset
	logger    *logging.Logger

	state      State
	reason     Reason
	errs       referrals.FieldErrors
	message    string
	referralID string
}

// NewController wires a form to its widget and gateway client.
func NewController(widget CaptchaWidget, submitter Submitter, logger *logging.Logger) (*Controller, error) {
	if widget == nil {
		return nil, errors.New("referralform: captcha widget required")
	}
	if submitter == nil {
		return nil, errors.New("referralform: submitter required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		values:    emptyValues(),
		widget:    widget,
		submitter: submitter,
		rules:     referrals.DefaultRules,
		logger:    logger,
	}, nil
}

func emptyValues() map[string]string {
	return map[string]string{
		referrals.FieldReferrerName:     "",
		referrals.FieldReferrerEmail:    "",
		referrals.FieldReferrerPhone:    "",
		referrals.FieldReferralName:     "",
		referrals.FieldReferralEmail:    "",
		referrals.FieldReferralPhone:    "",
		referrals.FieldReferralLinkedin: "",
	}
}

// SetField records an edit and clears that field's error. Editing a failed
// form returns it to StateEditing. While submitting, and after success until
// Reset, the edit is dropped and ErrFormLocked is returned.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if c.state == StateSucceeded || c.state == StateSubmitting {
		return fmt.Errorf("%w: %s", ErrFormLocked, c.state)
	}
	c.values[name] = value
	delete(c.errs, name)
	if c.state == StateFailed {
		c.state = StateEditing
		c.reason = ReasonNone
		c.message = ""
	}
	return nil
}

// Submit validates locally, requires a widget token, then calls the gateway.
// Local failures never reach the network. Any gateway failure discards the
// token by resetting the widget.
func (c *Controller) Submit(ctx context.Context) State {
	c.mu.Lock()
	if c.state == StateSubmitting || c.state == StateSucceeded {
		state := c.state
		c.mu.Unlock()
		return state
	}

	c.state = StateValidating
	if errs := c.rules.Validate(c.values); len(errs) > 0 {
		c.fail(ReasonValidation, msgFixFields)
		c.errs = errs
		c.mu.Unlock()
		return StateFailed
	}
	c.errs = nil

	c.state = StateAwaitingVerification
	token := strings.TrimSpace(c.widget.Token())
	if token == "" {
		c.fail(ReasonCaptchaMissing, msgCaptchaMissing)
		c.mu.Unlock()
		return StateFailed
	}

	c.state = StateSubmitting
	req := c.request(token)
	c.mu.Unlock()

	id, err := c.submitter.Submit(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.widget.Reset()
		c.applyError(err)
		c.logger.Info("referral submission failed", "reason", string(c.reason), "error", err)
		return StateFailed
	}
	c.state = StateSucceeded
	c.reason = ReasonNone
	c.message = msgSucceeded
	c.referralID = id
	return StateSucceeded
}

func (c *Controller) request(token string) referrals.SubmitRequest {
	return referrals.SubmitRequest{
		CaptchaToken:     token,
		ReferrerName:     c.values[referrals.FieldReferrerName],
		ReferrerEmail:    c.values[referrals.FieldReferrerEmail],
		ReferrerPhone:    c.values[referrals.FieldReferrerPhone],
		ReferralName:     c.values[referrals.FieldReferralName],
		ReferralEmail:    c.values[referrals.FieldReferralEmail],
		ReferralPhone:    c.values[referrals.FieldReferralPhone],
		ReferralLinkedin: c.values[referrals.FieldReferralLinkedin],
	}.Normalize()
}

func (c *Controller) applyError(err error) {
	msg := ""
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		msg = gwErr.Message
	}
	var verr *referrals.ValidationError
	switch {
	case errors.As(err, &verr):
		c.fail(ReasonValidation, orDefault(msg, msgFixFields))
		c.errs = verr.Fields
	case errors.Is(err, referrals.ErrCaptcha):
		c.fail(ReasonCaptcha, orDefault(msg, msgCaptcha))
	case errors.Is(err, referrals.ErrRateLimited):
		c.fail(ReasonRateLimited, orDefault(msg, msgRateLimited))
	case errors.Is(err, referrals.ErrPersistence):
		c.fail(ReasonPersistence, orDefault(msg, msgSubmitFailed))
	default:
		c.fail(ReasonNetwork, orDefault(msg, msgNetwork))
	}
}

func (c *Controller) fail(reason Reason, msg string) {
	c.state = StateFailed
	c.reason = reason
	c.message = msg
}

// Reset is the "submit another" action: fields, errors and the widget are cleared.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSubmitting {
		return
	}
	c.values = emptyValues()
	c.errs = nil
	c.state = StateEditing
	c.reason = ReasonNone
	c.message = ""
	c.referralID = ""
	c.widget.Reset()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Errors returns a copy of the current field errors.
func (c *Controller) Errors() referrals.FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	out := make(referrals.FieldErrors, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Message is the banner text for the current state.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// ReferralID is set once the form has succeeded.
func (c *Controller) ReferralID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.referralID
}

// Value returns the current value of a field.
func (c *Controller) Value(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
