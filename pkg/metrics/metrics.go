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
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// UpstreamDuration tracks calls to the AI service.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_upstream_duration_seconds",
			Help:    "AI service call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"path", "outcome"},
	)

	// UpstreamFallbacksTotal counts synthesized fallback responses.
	UpstreamFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_upstream_fallbacks_total",
			Help: "Fallback responses returned because the AI service was unavailable",
		},
		[]string{"path", "reason"},
	)

	// AuthAttemptsTotal tracks registration and login outcomes.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ConversationsTotal tracks locally stored conversations.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_conversations_total",
			Help: "Total conversations created in local history",
		},
	)

	// MessagesTotal tracks messages appended to local history.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_messages_total",
			Help: "Total messages appended to local history",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordUpstream records the outcome of an AI service call.
func RecordUpstream(path, outcome string, duration float64) {
	UpstreamDuration.WithLabelValues(path, outcome).Observe(duration)
}

// RecordFallback records a synthesized fallback response.
func RecordFallback(path, reason string) {
	UpstreamFallbacksTotal.WithLabelValues(path, reason).Inc()
}

// RecordAuth records an authentication attempt.
func RecordAuth(operation, outcome string) {
	AuthAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}
