package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

// DefaultFromName is used when no sender display name is configured.
const DefaultFromName = "Parcelis"

// Provider-side keys used to correlate a delivered email with its referral.
const (
	TagReferralID = "referral_id"
	TagCategory   = "referral_type"
)

// EmailSender delivers one message. SendGrid, SES and the stub implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered referral email. ReferralID and Category travel
// to the provider as tags so bounces and opens can be traced to a record.
type EmailMessage struct {
	To         string
	ToName     string
	Subject    string
	Body       string
	HTML       string
	ReferralID string
	Category   string
}

// Tags returns the non-empty correlation values keyed by provider tag name.
func (m EmailMessage) Tags() map[string]string {
	tags := make(map[string]string, 2)
	if m.ReferralID != "" {
		tags[TagReferralID] = m.ReferralID
	}
	if m.Category != "" {
		tags[TagCategory] = m.Category
	}
	return tags
}

// logAttrs identifies the message in logs without spelling out the recipient.
func (m EmailMessage) logAttrs() []any {
	return []any{"referral_id", m.ReferralID, "category", m.Category}
}

// sender is the From identity shared by the provider-backed senders.
type sender struct {
	email string
	name  string
}

func newSender(email, name string) sender {
	if name == "" {
		name = DefaultFromName
	}
	return sender{email: email, name: name}
}

func (s sender) address() string {
	return fmt.Sprintf("%s <%s>", s.name, s.email)
}

// StubEmailSender logs the message instead of delivering it.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender returns a sender for environments without a provider.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("referral email not delivered (stub sender)", append(msg.logAttrs(), "subject", msg.Subject)...)
	return nil
}

var _ EmailSender = (*StubEmailSender)(nil)
