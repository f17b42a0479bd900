// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream Client Metrics
	StreamConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cheerboard_stream_connection_state",
			Help: "Stream connection state (0=disconnected, 1=connecting, 2=connected, 3=error)",
		},
	)

	StreamReconnectAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cheerboard_stream_reconnect_attempts",
			Help: "Consecutive failed connection attempts since the last success",
		},
	)

	StreamMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_stream_messages_received_total",
			Help: "Total number of stream messages received",
		},
		[]string{"type"}, // challenge_completed, heartbeat, connected, unknown
	)

	StreamEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_stream_events_dropped_total",
			Help: "Total number of inbound events dropped before queueing",
		},
		[]string{"reason"}, // invalid_json, validation
	)

	StreamConnectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cheerboard_stream_connect_duration_seconds",
			Help:    "Duration of stream connection handshakes",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Delivery Queue Metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cheerboard_queue_depth",
			Help: "Number of notifications waiting behind the current one",
		},
	)

	QueueEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_queue_events_total",
			Help: "Queue event outcomes",
		},
		[]string{"outcome"}, // enqueued, duplicate, filtered, overflow, displayed, dismissed
	)

	// Recovery Engine Metrics
	RecoveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_recovery_errors_total",
			Help: "Errors reported to the recovery engine",
		},
		[]string{"type", "severity"},
	)

	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_recovery_attempts_total",
			Help: "Recovery action attempts by strategy and result",
		},
		[]string{"strategy", "result"}, // result: success, failure, timeout
	)

	DegradationLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cheerboard_degradation_level",
			Help: "Current degradation level (0=normal, 1=warning, 2=critical, 3=emergency)",
		},
	)

	FallbackPollingActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cheerboard_fallback_polling_active",
			Help: "1 while fallback polling substitutes for the stream",
		},
	)

	PollerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_poller_requests_total",
			Help: "Upstream REST requests made by the fallback poller",
		},
		[]string{"endpoint", "result"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cheerboard_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)

	CacheBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cheerboard_cache_bytes",
			Help: "Approximate byte footprint of cached entries",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_cache_evictions_total",
			Help: "Total number of cache removals",
		},
		[]string{"cache", "reason"}, // reason: capacity, expired
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cheerboard_websocket_connections",
			Help: "Current number of connected kiosk displays",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cheerboard_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to displays",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cheerboard_websocket_messages_received_total",
			Help: "Total number of WebSocket messages received from displays",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Relay Metrics
	RelayPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_relay_messages_total",
			Help: "Outbound events forwarded to the pub/sub relay",
		},
		[]string{"topic", "result"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cheerboard_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cheerboard_api_active_requests",
			Help: "Number of API requests in flight",
		},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_webhook_deliveries_total",
			Help: "Webhook deliveries by outcome",
		},
		[]string{"outcome"}, // accepted, duplicate, invalid_signature, invalid_payload
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cheerboard_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cheerboard_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// connectionStateValues maps stream status names to gauge values.
var connectionStateValues = map[string]float64{
	"disconnected": 0,
	"connecting":   1,
	"connected":    2,
	"error":        3,
}

// RecordConnectionState updates the stream state gauges.
func RecordConnectionState(status string, attempts int) {
	StreamConnectionState.Set(connectionStateValues[status])
	StreamReconnectAttempts.Set(float64(attempts))
}

// RecordStreamMessage counts an inbound stream message by type.
func RecordStreamMessage(msgType string) {
	switch msgType {
	case "challenge_completed", "heartbeat", "connected":
	default:
		msgType = "unknown"
	}
	StreamMessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordQueueOutcome counts a queue event outcome and updates the depth.
func RecordQueueOutcome(outcome string, depth int) {
	QueueEvents.WithLabelValues(outcome).Inc()
	QueueDepth.Set(float64(depth))
}

// RecordRecoveryError counts an error reported to the recovery engine.
func RecordRecoveryError(errType, severity string) {
	RecoveryErrors.WithLabelValues(errType, severity).Inc()
}

// RecordRecoveryAttempt counts a recovery action outcome.
func RecordRecoveryAttempt(strategy, result string) {
	RecoveryAttempts.WithLabelValues(strategy, result).Inc()
}

// SetDegradationLevel sets the current degradation level.
func SetDegradationLevel(level int) {
	DegradationLevel.Set(float64(level))
}

// SetFallbackPolling records whether fallback polling is active.
func SetFallbackPolling(active bool) {
	if active {
		FallbackPollingActive.Set(1)
		return
	}
	FallbackPollingActive.Set(0)
}

// RecordCacheStats publishes a cache snapshot.
func RecordCacheStats(cache string, entries int, bytes int64) {
	CacheEntries.WithLabelValues(cache).Set(float64(entries))
	CacheBytes.WithLabelValues(cache).Set(float64(bytes))
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
