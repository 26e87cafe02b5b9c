package bootstrap

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/parcelis-referrals/internal/config"
	"github.com/wolfman30/parcelis-referrals/internal/notify"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

func TestBuildEmailSenderAutoSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.Config
		want string
	}{
		{"stub when nothing configured", appconfig.Config{EmailProvider: "auto"}, EmailProviderStub},
		{"sendgrid when key set", appconfig.Config{EmailProvider: "", SendGridAPIKey: "SG.x"}, EmailProviderSendGrid},
		{"ses when endpoint override set", appconfig.Config{EmailProvider: "auto", AWSRegion: "us-east-1", AWSEndpointOverride: "http://localhost:4566"}, EmailProviderSES},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, provider, err := BuildEmailSender(context.Background(), &tt.cfg, logging.New("error"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider != tt.want {
				t.Fatalf("expected provider %q, got %q", tt.want, provider)
			}
			if sender == nil {
				t.Fatalf("expected sender")
			}
		})
	}
}

func TestBuildEmailSenderExplicitSendGridNeedsKey(t *testing.T) {
	cfg := &appconfig.Config{EmailProvider: EmailProviderSendGrid}
	if _, _, err := BuildEmailSender(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error without SENDGRID_API_KEY")
	}
}

func TestBuildEmailSenderUnknownProvider(t *testing.T) {
	cfg := &appconfig.Config{EmailProvider: "pigeon"}
	if _, _, err := BuildEmailSender(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestBuildReferralNotifier(t *testing.T) {
	cfg := &appconfig.Config{EmailFromName: "Parcelis", ReferralReward: "$50"}
	if n := BuildReferralNotifier(cfg, notify.NewStubEmailSender(logging.New("error")), logging.New("error")); n == nil {
		t.Fatalf("expected notifier")
	}
}
