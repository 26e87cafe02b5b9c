package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wolfman30/parcelis-referrals/internal/referrals"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

// ReferralSubject is the subject line of the referrer confirmation.
const ReferralSubject = "Thank you for your referral!"

// ErrNotifierUnavailable is returned while the circuit breaker is open.
var ErrNotifierUnavailable = errors.New("notify: email provider temporarily unavailable")

var referralHTML = htmltemplate.Must(htmltemplate.New("referral_html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; border-radius: 12px 12px 0 0; text-align: center;">
    <h1 style="color: white; margin: 0; font-size: 28px;">Thank You, {{.ReferrerName}}!</h1>
  </div>
  <div style="background: #f9fafb; padding: 30px; border-radius: 0 0 12px 12px; border: 1px solid #e5e7eb; border-top: none;">
    <p style="font-size: 16px; margin-bottom: 20px;">Your referral has been submitted successfully!</p>
    <div style="background: white; padding: 20px; border-radius: 8px; border: 1px solid #e5e7eb; margin-bottom: 20px;">
      <h3 style="margin: 0 0 15px 0; color: #667eea;">Referral Details</h3>
      <p style="margin: 5px 0;"><strong>Name:</strong> {{.ReferralName}}</p>
      <p style="margin: 5px 0;"><strong>Email:</strong> {{.ReferralEmail}}</p>
      <p style="margin: 5px 0;"><strong>Phone:</strong> {{.ReferralPhone}}</p>
      {{- if .ReferralLinkedin}}
      <p style="margin: 5px 0;"><strong>LinkedIn:</strong> {{.ReferralLinkedin}}</p>
      {{- end}}
    </div>
    <div style="background: #fef3c7; padding: 15px; border-radius: 8px; border-left: 4px solid #f59e0b;">
      <p style="margin: 0; font-size: 14px;"><strong>Reminder:</strong> You'll earn {{.Reward}} once your referral receives their first payout!</p>
    </div>
    <p style="margin-top: 25px; font-size: 14px; color: #6b7280;">We'll reach out to {{.ReferralName}} shortly and keep you updated on the progress.</p>
    <p style="margin-top: 25px;">Best regards,<br><strong>The {{.Brand}} Team</strong></p>
  </div>
</body>
</html>
`))

var referralText = texttemplate.Must(texttemplate.New("referral_text").Parse(`Thank you, {{.ReferrerName}}!

Your referral has been submitted successfully.

Referral details
Name: {{.ReferralName}}
Email: {{.ReferralEmail}}
Phone: {{.ReferralPhone}}
{{- if .ReferralLinkedin}}
LinkedIn: {{.ReferralLinkedin}}
{{- end}}

Reminder: you'll earn {{.Reward}} once your referral receives their first payout!

We'll reach out to {{.ReferralName}} shortly and keep you updated on the progress.

Best regards,
The {{.Brand}} Team
`))

type referralEmailData struct {
	ReferrerName     string
	ReferralName     string
	ReferralEmail    string
	ReferralPhone    string
	ReferralLinkedin string
	Reward           string
	Brand            string
}

// ReferralNotifierConfig configures the referrer confirmation.
type ReferralNotifierConfig struct {
	Sender  EmailSender
	Brand   string
	Reward  string
	Timeout time.Duration
	// Consecutive send failures before the breaker opens, and how long it
	// stays open before letting a trial send through.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// ReferralNotifier sends the referrer a confirmation for a stored referral.
// Sends are bounded by a timeout and guarded by a circuit breaker, so a
// provider outage short-circuits instead of costing every caller a timeout.
type ReferralNotifier struct {
	sender  EmailSender
	brand   string
	reward  string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// NewReferralNotifier creates a notifier. A nil sender falls back to the stub.
func NewReferralNotifier(cfg ReferralNotifierConfig, logger *logging.Logger) *ReferralNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Sender == nil {
		cfg.Sender = NewStubEmailSender(logger)
	}
	if cfg.Brand == "" {
		cfg.Brand = DefaultFromName
	}
	if cfg.Reward == "" {
		cfg.Reward = "$50"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "referral-email",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("email circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &ReferralNotifier{
		sender:  cfg.Sender,
		brand:   cfg.Brand,
		reward:  cfg.Reward,
		timeout: cfg.Timeout,
		breaker: breaker,
		logger:  logger,
	}
}

// NotifyReferral renders and sends the confirmation to the referrer.
func (n *ReferralNotifier) NotifyReferral(ctx context.Context, ref *referrals.Referral) error {
	if ref == nil {
		return errors.New("notify: referral required")
	}
	msg, err := n.render(ref)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err = n.breaker.Execute(func() (interface{}, error) {
		return nil, n.sender.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrNotifierUnavailable
	}
	if err != nil {
		return err
	}
	n.logger.Info("referral confirmation sent", "referral_id", ref.ID)
	return nil
}

func (n *ReferralNotifier) render(ref *referrals.Referral) (EmailMessage, error) {
	data := referralEmailData{
		ReferrerName:     ref.ReferrerName,
		ReferralName:     ref.ReferralName,
		ReferralEmail:    ref.ReferralEmail,
		ReferralPhone:    ref.ReferralPhone,
		ReferralLinkedin: ref.ReferralLinkedin,
		Reward:           n.reward,
		Brand:            n.brand,
	}
	var html, text bytes.Buffer
	if err := referralHTML.Execute(&html, data); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render referral html: %w", err)
	}
	if err := referralText.Execute(&text, data); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render referral text: %w", err)
	}
	return EmailMessage{
		To:         ref.ReferrerEmail,
		ToName:     ref.ReferrerName,
		Subject:    ReferralSubject,
		Body:       text.String(),
		HTML:       html.String(),
		ReferralID: ref.ID,
		Category:   ref.Category,
	}, nil
}

var _ referrals.Notifier = (*ReferralNotifier)(nil)
