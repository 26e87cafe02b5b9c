package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReferralMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReferralMetrics(reg)

	m.ObserveSubmission(OutcomeSuccess)
	m.ObserveSubmission(OutcomeSuccess)
	m.ObserveSubmission(OutcomeRateLimited)
	m.ObserveNotification(NotificationFailed)
	m.ObserveStage("captcha", 0.2)

	if got := testutil.ToFloat64(m.submissionsTotal.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissionsTotal.WithLabelValues(OutcomeRateLimited)); got != 1 {
		t.Fatalf("expected 1 rate limited, got %v", got)
	}
	if got := testutil.ToFloat64(m.notificationsTotal.WithLabelValues(NotificationFailed)); got != 1 {
		t.Fatalf("expected 1 failed notification, got %v", got)
	}
	if n := testutil.CollectAndCount(m.stageDuration); n != 1 {
		t.Fatalf("expected one stage series, got %d", n)
	}
}

func TestReferralMetricsNilSafe(t *testing.T) {
	var m *ReferralMetrics
	m.ObserveSubmission(OutcomeSuccess)
	m.ObserveNotification(NotificationSent)
	m.ObserveStage("persist", 0.1)
}
