// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package services adapts components whose lifecycle is not already
Serve(ctx) error to suture.Service.

Pipeline components (stream client, poller, recovery engine, caches, hub,
relay) implement Serve and String themselves and are added to the tree
directly. The wrappers here cover the rest:

  - HTTPServerService: ListenAndServe/Shutdown to Serve, with a bounded
    drain on cancellation
  - ConfigWatchService: Watch/Close of the config manager to Serve
*/
package services
