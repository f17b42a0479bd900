// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package websocket pushes the notification pipeline to kiosk displays.

A Hub tracks connected displays and fans every pipeline event out to them.
Each display is a Client with its own read and write goroutines, following
the gorilla/websocket hub-client pattern:

	┌──────────┐   events.Bus (SubscribeAll)
	│   Hub    │ ← notification-ready, queue-state-changed, ...
	└────┬─────┘
	     │
	┌────┴─────┬──────────┬──────────┐
	│ Display1 │ Display2 │ Display3 │
	└──────────┴──────────┴──────────┘

Display Protocol:

Every frame is a JSON object {"type": ..., "data": ...}.

Outbound:
  - snapshot: full pipeline state, sent once when a display joins
  - <bus topic>: each pipeline event under its topic name
  - pong: reply to ping
  - error: reply to a malformed frame; the connection stays open

Inbound:
  - ping
  - dismiss: {"id": "..."} dismisses that notification; an empty id
    dismisses the current one

Usage:

	hub := websocket.NewHub(
	    websocket.WithSnapshot(notifier.Snapshot),
	    websocket.WithDismissHandler(queue.DismissByIDOrCurrent),
	)
	detach := hub.Attach(bus)
	defer detach()
	go hub.Serve(ctx)

Thread Safety:

The client map is guarded by a mutex and all lifecycle changes go through
the hub's Serve loop. Broadcasts reach clients in connection order. A
client whose send buffer is full is dropped rather than blocking the hub.

Configuration:

  - writeWait: 10 seconds per frame
  - pongWait: 60 seconds before a silent display is dropped
  - pingPeriod: 54 seconds (9/10 of pongWait)
  - maxMessageSize: 64 KB inbound
*/
package websocket
