// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package notifier assembles the notification pipeline.

New constructs the stream client, delivery queue, recovery engine, fallback
poller, name cache, display hub and optional relay from one configuration
and connects them:

	stream.OnEvent ──┐
	poller.OnEvent ──┼──> queue.Enqueue ──> events.Bus ──> websocket.Hub
	webhook (api) ───┘                                 └─> relay (watermill)

	stream, queue, poller ──Report──> recovery.Engine
	recovery.Engine ──> stream.Connect / queue.Clear+Suspend / poller.Activate

The poller is switched off again as soon as the stream reports a
connection. Stream and queue settings follow config reloads; the other
sections are read once.

Typical use from main:

	p, err := notifier.New(cfgManager)
	if err != nil {
	    return err
	}
	defer p.Close()
	p.Supervise(tree)
	router := api.NewRouter(p.Handler())
*/
package notifier
