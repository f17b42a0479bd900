// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package supervisor provides process supervision for the kiosk using
suture v4.

# Overview

Services are grouped into three layers:

	RootSupervisor ("cheerboard")
	├── IngestSupervisor ("ingest-layer")
	│   ├── stream client
	│   ├── fallback poller
	│   ├── recovery engine
	│   └── cache sweepers
	├── DeliverySupervisor ("delivery-layer")
	│   ├── websocket hub
	│   └── event relay (if relay.enabled)
	└── APISupervisor ("api-layer")
	    ├── HTTPServerService
	    └── ConfigWatchService

Each layer counts failures on its own, so a crashing relay does not
restart the stream client.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddIngestService(streamClient)
	tree.AddDeliveryService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

# Failure Handling

Suture keeps a failure counter per supervisor that decays over
FailureDecay seconds. Crossing FailureThreshold delays restarts by
FailureBackoff. Services return ctx.Err() on shutdown and
suture.ErrDoNotRestart when they are finished for good.

# Shutdown

Each service gets ShutdownTimeout to return after cancellation. Anything
still running afterwards shows up in UnstoppedServiceReport.
*/
package supervisor
