package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvitesCreated counts invites persisted in CREATED.
	InvitesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guestpass_invites_created_total",
			Help: "Total number of invites created",
		},
	)

	// Redemptions records registration submissions by result
	// (success|validation_error|invite_used|invite_expired|invite_not_found|error).
	Redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guestpass_redemptions_total",
			Help: "Total number of invite redemption attempts",
		},
		[]string{"result"},
	)

	// CheckIns records check-in attempts by result
	// (checked_in|already_checked_in|not_yet_open|invalid_token|not_found|error).
	CheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guestpass_checkins_total",
			Help: "Total number of check-in attempts",
		},
		[]string{"result"},
	)

	// EmailDeliveries records outbound email attempts by template and result (success|failure).
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guestpass_email_deliveries_total",
			Help: "Total number of outbound email delivery attempts",
		},
		[]string{"template", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guestpass_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
