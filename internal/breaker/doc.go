// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package breaker wraps sony/gobreaker with the logging and Prometheus
// metrics shared by every upstream call: the reachability probe, the
// fallback poller and the event relay.
package breaker
