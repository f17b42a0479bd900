// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package api provides the kiosk's HTTP surface: health probes, pipeline
inspection and control, the signed challenge completion webhook, the
display WebSocket and the Prometheus scrape endpoint.

Routes:

	GET  /api/v1/health/live
	GET  /api/v1/health/ready
	GET  /api/v1/notifications/state
	POST /api/v1/notifications/dismiss
	GET  /api/v1/stream/state
	POST /api/v1/stream/reconnect
	GET  /api/v1/recovery/status
	POST /api/v1/recovery/reset
	GET  /api/v1/cache/stats
	POST /api/v1/webhooks/challenge-completed
	GET  /ws
	GET  /metrics

Every JSON response uses the models.APIResponse envelope. Errors carry a
machine-readable code and the request ID from middleware.RequestID.

Webhook signatures:

When webhook.secret is set, the request must carry

	X-Cheerboard-Signature: sha256=<hex HMAC-SHA256 of the raw body>

Sign computes the header value for producers and tests. Rejected signatures
return 401 and are not reported to the recovery engine. Malformed events
are reported as validation errors before the 400 is returned.

Handlers depend on small interfaces (QueueService, StreamService,
RecoveryService, FallbackService) rather than concrete pipeline types, and
read configuration through a function so reloads take effect without a
restart. CORS origins and rate limits are fixed when the router is built.
*/
package api
