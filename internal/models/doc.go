// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package models defines the data structures shared by the Cheerboard
notification pipeline.

Key Components:

  - ChallengeCompletionEvent: a validated "challenge completed" occurrence
  - StreamMessage: the inbound push-stream envelope
  - ConnectionState: snapshot of the stream client's state machine
  - QueueState: snapshot of the delivery queue
  - NotificationError: the fault value routed to the recovery engine
  - RecoveryContext and DegradationLevel: recovery engine bookkeeping

All snapshot types are plain values. Components hand out copies, so a
caller holding a QueueState or ConnectionState never observes later
mutation.

JSON field names follow the upstream gamification wire format (camelCase)
so events can be forwarded to display clients unchanged.
*/
package models
