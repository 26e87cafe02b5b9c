package metrics

import "github.com/prometheus/client_golang/prometheus"

// Submission outcomes reported by the referral gateway.
const (
	OutcomeSuccess     = "success"
	OutcomeValidation  = "validation"
	OutcomeCaptcha     = "captcha"
	OutcomeRateLimited = "rate_limited"
	OutcomePersistence = "persistence"
	OutcomeInternal    = "internal"
)

// Notification statuses.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// ReferralMetrics exposes counters/histograms for the referral pipeline.
type ReferralMetrics struct {
	submissionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
}

func NewReferralMetrics(reg prometheus.Registerer) *ReferralMetrics {
	m := &ReferralMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelis",
			Subsystem: "referrals",
			Name:      "submissions_total",
			Help:      "Referral submissions by terminal outcome",
		}, []string{"outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelis",
			Subsystem: "referrals",
			Name:      "notifications_total",
			Help:      "Referral confirmation emails by status",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parcelis",
			Subsystem: "referrals",
			Name:      "stage_duration_seconds",
			Help:      "Latency of outbound pipeline stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.notificationsTotal, m.stageDuration)
	return m
}

func (m *ReferralMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *ReferralMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(status).Inc()
}

func (m *ReferralMetrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}
