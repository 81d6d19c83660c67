// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// DeliveryOutcomes tracks the terminal state of each inbound delivery.
	DeliveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_delivery_outcomes_total",
			Help: "Inbound deliveries by terminal outcome",
		},
		[]string{"outcome"},
	)

	// RateLimitDecisions tracks per-conversation limiter decisions.
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_decisions_total",
			Help: "Per-conversation rate limit decisions",
		},
		[]string{"decision"},
	)

	// TenantCacheLookups tracks tenant config cache results.
	TenantCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tenant_cache_lookups_total",
			Help: "Tenant config cache lookups by result",
		},
		[]string{"result"},
	)

	// TenantResolutions tracks how a tenant was (or was not) resolved.
	TenantResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tenant_resolutions_total",
			Help: "Tenant resolutions by source",
		},
		[]string{"source"},
	)

	// BackendRequestDuration tracks backend collaborator call latency.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_backend_request_duration_seconds",
			Help:    "Backend call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "status"},
	)

	// InteractionsLogged tracks interaction persistence results.
	InteractionsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_interactions_logged_total",
			Help: "Interactions submitted to the backend",
		},
		[]string{"direction", "result"},
	)

	// OutboundSends tracks platform send results.
	OutboundSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_outbound_sends_total",
			Help: "Messages sent to the chat platform",
		},
		[]string{"result"},
	)

	// Notifications tracks notification sink results.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_notifications_total",
			Help: "Backend notifications by sink and result",
		},
		[]string{"sink", "result"},
	)

	// NotificationsInFlight tracks detached notifications that have not finished.
	NotificationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_notifications_in_flight",
			Help: "Detached notifications currently running",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordBackendCall records metrics for a backend call.
func RecordBackendCall(operation, status string, duration float64) {
	BackendRequestDuration.WithLabelValues(operation, status).Observe(duration)
}

// ResultLabel maps a success flag to a metric label.
func ResultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
