// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package relay forwards pipeline events to a Watermill pub/sub so other
processes can react to completions, degradation changes and recovery
outcomes.

Each bus event is published to "<prefix>.<event-name>" (for example
cheerboard.notification-ready) as a JSON Envelope with the event name in
the event_type metadata key.

Backends:
  - NATS core publish via watermill-nats when relay.nats_url is set
  - in-process gochannel otherwise

Publishing is decoupled from the bus by a bounded buffer drained by Serve.
A full buffer drops events and counts them as "dropped" in
cheerboard_relay_messages_total. Publishes pass through a circuit breaker
so a dead broker fails fast.
*/
package relay
