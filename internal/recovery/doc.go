// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package recovery is the error recovery engine. Every component reports
// faults as models.NotificationError; the engine records them, retries the
// recoverable ones and degrades the kiosk when faults pile up.
//
// # Strategies
//
// Strategies are evaluated in order and the first match handles the error:
//
//	stream-reconnection  stream errors: restart the stream client unless it
//	                     is connected or still in its own backoff
//	network-recovery     network errors: probe upstream, switch to fallback
//	                     polling when unreachable
//	processing-recovery  processing errors: nothing to undo
//	validation-recovery  validation errors (never recoverable, so unused
//	                     unless a custom error marks one recoverable)
//	fallback-recovery    everything else: escalate to emergency on the final
//	                     attempt
//
// Retries are tracked per context key type:code:minute and capped by the
// strategy's MaxRetries and Config.MaxGlobalRetries.
//
// # Emergency Mode
//
// At level 3 the delivery queue is cleared and suspended and displays are
// told to stop animating. The stabilization loop in Serve lowers the level
// one step per error-free StabilizationWindow; leaving level 3 resumes the
// queue and reaching level 0 publishes system-stabilized.
package recovery
