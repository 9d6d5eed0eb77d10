package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solite_auth_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"result"},
	)

	// PostsCreated counts persisted posts.
	PostsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solite_posts_created_total",
			Help: "Total number of posts created",
		},
	)

	// NotificationsCreated counts notification create calls by outcome (created|existing).
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solite_notifications_created_total",
			Help: "Notification create calls partitioned by whether a new record was stored",
		},
		[]string{"outcome"},
	)

	// NotificationsSeen counts mark-seen calls.
	NotificationsSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solite_notifications_seen_total",
			Help: "Total number of mark-seen calls",
		},
	)

	// NotificationsPurged counts notifications removed by the retention job.
	NotificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solite_notifications_purged_total",
			Help: "Total number of notifications removed by retention cleanup",
		},
	)

	// CleanupRuns counts retention cleanup ticks by result (success|failure).
	CleanupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solite_notification_cleanup_runs_total",
			Help: "Retention cleanup ticks partitioned by result",
		},
		[]string{"result"},
	)

	// FanoutFailures counts post-creation notification calls that were dropped.
	FanoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solite_fanout_failures_total",
			Help: "Post-creation notification deliveries that failed and were dropped",
		},
	)

	// RequestsInFlight tracks HTTP requests currently being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solite_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// PanicsRecovered counts handler panics turned into 500 responses.
	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solite_http_panics_recovered_total",
			Help: "Handler panics recovered by the HTTP server",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solite_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
