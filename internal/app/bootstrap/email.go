package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/parcelis-referrals/internal/config"
	"github.com/wolfman30/parcelis-referrals/internal/notify"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

// Email providers accepted by EMAIL_PROVIDER.
const (
	EmailProviderAuto     = "auto"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// BuildEmailSender selects the outbound email provider and reports its name.
// "auto" prefers SendGrid when a key is present, then SES when AWS
// credentials or an endpoint override are configured, then the stub.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	if provider == "" || provider == EmailProviderAuto {
		provider = autoEmailProvider(cfg)
	}

	switch provider {
	case EmailProviderSendGrid:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, "", fmt.Errorf("bootstrap: EMAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY")
		}
		logger.Info("sendgrid email sender initialized for referral confirmations")
		return sender, EmailProviderSendGrid, nil
	case EmailProviderSES:
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail:        cfg.EmailFromAddress,
			FromName:         cfg.EmailFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger)
		logger.Info("ses email sender initialized for referral confirmations", "region", cfg.AWSRegion)
		return sender, EmailProviderSES, nil
	case EmailProviderStub:
		logger.Warn("referral confirmation emails disabled (stub sender)")
		return notify.NewStubEmailSender(logger), EmailProviderStub, nil
	default:
		return nil, "", fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

func autoEmailProvider(cfg *appconfig.Config) string {
	switch {
	case strings.TrimSpace(cfg.SendGridAPIKey) != "":
		return EmailProviderSendGrid
	case strings.TrimSpace(cfg.AWSAccessKeyID) != "" || strings.TrimSpace(cfg.AWSEndpointOverride) != "":
		return EmailProviderSES
	default:
		return EmailProviderStub
	}
}

// BuildReferralNotifier wraps the sender with the referral template.
func BuildReferralNotifier(cfg *appconfig.Config, sender notify.EmailSender, logger *logging.Logger) *notify.ReferralNotifier {
	return notify.NewReferralNotifier(notify.ReferralNotifierConfig{
		Sender:  sender,
		Brand:   cfg.EmailFromName,
		Reward:  cfg.ReferralReward,
		Timeout: cfg.NotifyTimeout,
	}, logger)
}
