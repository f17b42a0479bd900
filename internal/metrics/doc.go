// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package metrics defines the Prometheus metric families for Cheerboard.
//
// Metrics are registered with promauto at package init and exposed by the
// API router at /metrics via promhttp. Components call the Record* and
// Set* helpers rather than touching the vectors directly, which keeps label
// values bounded.
//
// Families:
//
//   - cheerboard_stream_*: connection state, reconnect attempts, inbound messages, drops
//   - cheerboard_queue_*: depth and outcome counters
//   - cheerboard_recovery_*, cheerboard_degradation_level: recovery engine
//   - cheerboard_cache_*: bounded cache hit/miss/size/evictions per named cache
//   - cheerboard_websocket_*: kiosk display connections
//   - cheerboard_api_*, cheerboard_webhook_*: HTTP surface
//   - cheerboard_circuit_breaker_*: gobreaker state for probe, upstream and relay
package metrics
