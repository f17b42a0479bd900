// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package logging provides the process-wide zerolog logger for Cheerboard.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("event_id", ev.ID).Msg("Notification ready")
//	logging.Error().Err(err).Str("code", nerr.Code).Msg("Recovery failed")
//
// Components create a tagged child logger once and keep it:
//
//	logger := logging.WithComponent("stream")
//
// # Configuration
//
// Environment variables (mapped by the config package):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # Adapters
//
//   - NewSlogLogger: *slog.Logger for sutureslog (supervisor events)
//   - NewWatermillLogger: watermill.LoggerAdapter for the event relay
//
// # Context
//
// Request and correlation ids travel in context.Context. The HTTP request-id
// middleware stores them; Ctx(ctx) returns a logger carrying both.
//
// # Testing
//
// Route output away from the terminal in a test init:
//
//	func init() {
//	    logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
//	}
package logging
