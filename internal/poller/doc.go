// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package poller is the fallback delivery path used while the push stream
// is unusable. When activated (by the recovery engine) it polls
//
//	GET {base}/completions?since=<RFC3339>
//
// validates each record like a streamed challenge_completed payload, fills
// missing display names from GET {base}/players/{id} and
// GET {base}/challenges/{id} through a bounded cache, and forwards the
// events to the delivery queue. Overlap with streamed events is removed by
// the queue's deduplication.
//
// Upstream calls are rate limited (golang.org/x/time/rate), retried with
// exponential backoff (cenkalti/backoff) and guarded by a circuit breaker.
// A failed poll is reported as network/POLL_FAILED.
package poller
