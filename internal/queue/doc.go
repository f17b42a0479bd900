// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package queue serializes challenge completions for the kiosk display:
// at most one notification is current, the rest wait in arrival order, and
// the next is promoted only after the display dismisses the current one.
//
// Enqueue pipeline:
//
//  1. Deduplicate by id against the last DedupCapacity ids seen.
//  2. Apply the challenge type / category Filter.
//  3. If full, drop the oldest queued event (queue-overflow event plus a
//     system/QUEUE_OVERFLOW report at medium severity).
//  4. Append and schedule promotion if nothing is displayed.
//
// Outbound events on the bus: notification-ready, notification-dismissed,
// queue-overflow and queue-state-changed.
package queue
