// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package stream maintains the single persistent push connection to the
// challenge event source and turns its messages into validated
// ChallengeCompletionEvent values.
//
// # Connection Lifecycle
//
// Client owns the connection state machine, the heartbeat supervisor and
// reconnect backoff:
//
//	client := stream.NewClient(stream.ConfigFrom(cfg.Stream),
//	    stream.WithBus(bus),
//	    stream.WithReporter(engine),
//	)
//	cancel := client.OnEvent(func(ev models.ChallengeCompletionEvent) {
//	    queue.Enqueue(ev)
//	})
//	defer cancel()
//
// Under a supervisor the client runs as a service: Serve connects and
// Disconnect runs on shutdown.
//
// # Reconnect Backoff
//
// After the n-th consecutive failure the next attempt waits
// min(ReconnectInterval * 2^(n-1) + jitter, 30s) with jitter uniform in
// [0, 1s). The client stops after MaxReconnectAttempts failures and
// reports MAX_RECONNECT_ATTEMPTS_EXCEEDED; only an explicit Connect (from
// the recovery engine or the API) resumes.
//
// # Inbound Validation
//
// Malformed JSON is reported as validation/INVALID_JSON and dropped.
// challenge_completed payloads are checked field by field; an issue on
// id, playerId, challengeId or completedAt drops the event, while missing
// names, a bad envelope timestamp or invalid points are logged and
// replaced with fallbacks.
package stream
