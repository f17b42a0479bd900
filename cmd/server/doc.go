// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package main is the entry point for the Cheerboard kiosk server.

Cheerboard receives challenge completion events from a gamification
backend and shows them one at a time on kiosk displays. Events arrive over
a push stream, through a signed webhook, or by REST polling while the
stream is down.

# Application Architecture

	RootSupervisor ("cheerboard")
	├── IngestSupervisor ("ingest-layer")
	│   ├── stream-client
	│   ├── recovery-engine
	│   ├── cache sweeper ("names")
	│   └── fallback-poller (if POLLER_BASE_URL is set)
	├── DeliverySupervisor ("delivery-layer")
	│   ├── websocket-hub
	│   └── event-relay (if RELAY_ENABLED=true)
	└── APISupervisor ("api-layer")
	    ├── http-server
	    └── config-watch

Startup order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog with the configured level and format
 3. Pipeline: stream client, queue, recovery engine, poller, hub, relay
 4. HTTP: chi router over the pipeline
 5. Supervisor tree: every long-running component

# Configuration

Commonly set variables:

	STREAM_URL=wss://gamification.example/events
	POLLER_BASE_URL=https://gamification.example/api
	WEBHOOK_SECRET=change-me
	CORS_ORIGINS=https://kiosk.example
	RELAY_ENABLED=true
	RELAY_NATS_URL=nats://nats:4222

Edits to the config file are picked up without a restart for the stream,
queue and log level settings.

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains for up to 10s
and every other service gets the supervisor's shutdown timeout.
*/
package main
