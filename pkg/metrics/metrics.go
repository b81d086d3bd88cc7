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
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// ChangeEventsPublished tracks change events written to the feed.
	ChangeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_published_total",
			Help: "Total change events published",
		},
		[]string{"table", "type"},
	)

	// ChangeEventsDelivered tracks change events handed to subscribers after filtering.
	ChangeEventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_delivered_total",
			Help: "Total change events delivered to subscribers",
		},
		[]string{"table"},
	)

	// SubscriptionsActive tracks live change subscriptions.
	SubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "change_subscriptions_active",
			Help: "Number of live change subscriptions",
		},
	)

	// DirectoryRefreshes tracks conversation directory re-queries by trigger.
	DirectoryRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_refreshes_total",
			Help: "Total conversation directory refreshes",
		},
		[]string{"trigger"},
	)

	// StaleResultsDiscarded tracks fetch results dropped because a newer generation started.
	StaleResultsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stale_results_discarded_total",
			Help: "Fetch results discarded by generation checks",
		},
		[]string{"component"},
	)

	// BackgroundFetchFailures tracks swallowed failures of automatic fetches.
	BackgroundFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_fetch_failures_total",
			Help: "Failed background fetches",
		},
		[]string{"component"},
	)

	// MessagesSent tracks message submissions by outcome.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total message submissions",
		},
		[]string{"status"},
	)

	// MarkReadCalls tracks mark-as-read procedure invocations.
	MarkReadCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mark_read_calls_total",
			Help: "Total mark-as-read calls",
		},
	)

	// ConversationsStarted tracks get-or-create calls by whether a row was created.
	ConversationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_started_total",
			Help: "Total get-or-create conversation calls",
		},
		[]string{"created"},
	)

	// ChatSessionsActive tracks live per-viewer chat sessions.
	ChatSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of live chat sessions",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
