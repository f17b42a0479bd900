// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package recovery

import (
	"time"

	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
	"github.com/tomtom215/cheerboard/internal/models"
)

// computeLevel derives the degradation level from errors within window
// of now.
func computeLevel(history []models.NotificationError, now time.Time, window time.Duration) models.DegradationLevel {
	var total, high, critical int
	for _, e := range history {
		if now.Sub(e.Timestamp) > window {
			continue
		}
		total++
		switch e.Severity {
		case models.SeverityHigh:
			high++
		case models.SeverityCritical:
			critical++
		}
	}

	switch {
	case critical > 0 || total > 10:
		return models.DegradationEmergency
	case high > 2 || total > 5:
		return models.DegradationCritical
	case total > 2:
		return models.DegradationWarning
	default:
		return models.DegradationNormal
	}
}

// degraded applies a level rise.
func (e *Engine) degraded(prev, next models.DegradationLevel, reason string, emergency bool) {
	metrics.SetDegradationLevel(int(next))
	logging.Warn().
		Str("from", prev.String()).
		Str("to", next.String()).
		Str("reason", reason).
		Msg("Degradation level raised")

	e.publish(events.DegradationActivated, models.DegradationEvent{
		Level:             next,
		LevelName:         next.String(),
		PreviousLevel:     prev,
		AnimationsEnabled: next.AnimationsEnabled(),
		EmergencyMode:     emergency || next == models.DegradationEmergency,
		Reason:            reason,
	})

	if next >= models.DegradationCritical && e.stream != nil && !e.stream.State().IsConnected() {
		e.activateFallback("degradation " + next.String())
	}
}

// escalate forces emergency mode regardless of the error rate.
func (e *Engine) escalate(reason string) {
	now := e.clk.Now()
	e.mu.Lock()
	prev := e.level
	raised := prev < models.DegradationEmergency
	if raised {
		e.level = models.DegradationEmergency
		e.lastChangeAt = now
	}
	enter := !e.emergency
	e.emergency = true
	e.mu.Unlock()

	if raised {
		e.degraded(prev, models.DegradationEmergency, reason, true)
	}
	if enter {
		e.enterEmergency(reason)
	}
}

// enterEmergency drops everything queued and stops emission.
func (e *Engine) enterEmergency(reason string) {
	logging.Error().Str("reason", reason).Msg("Entering emergency mode, clearing notification queue")
	if e.queue == nil {
		return
	}
	safely("queue clear", e.queue.Clear)
	safely("queue suspend", func() { e.queue.SetSuspended(true) })
}

func (e *Engine) exitEmergency() {
	logging.Info().Msg("Leaving emergency mode, resuming notifications")
	if e.queue != nil {
		safely("queue resume", func() { e.queue.SetSuspended(false) })
	}
}

// stabilize steps the level down once the last error and the last level
// change are both at least StabilizationWindow old.
func (e *Engine) stabilize() {
	now := e.clk.Now()
	e.mu.Lock()
	if e.level == models.DegradationNormal ||
		now.Sub(e.lastErrorAt) < e.cfg.StabilizationWindow ||
		now.Sub(e.lastChangeAt) < e.cfg.StabilizationWindow {
		e.mu.Unlock()
		return
	}
	prev := e.level
	e.level--
	e.lastChangeAt = now
	next := e.level
	leaving := prev == models.DegradationEmergency && e.emergency
	if leaving {
		e.emergency = false
	}
	e.mu.Unlock()

	metrics.SetDegradationLevel(int(next))
	logging.Info().Str("from", prev.String()).Str("to", next.String()).Msg("Degradation level lowered")
	if leaving {
		e.exitEmergency()
	}

	ev := models.DegradationEvent{
		Level:             next,
		LevelName:         next.String(),
		PreviousLevel:     prev,
		AnimationsEnabled: next.AnimationsEnabled(),
		Reason:            "stabilizing",
	}
	if next == models.DegradationNormal {
		e.publish(events.SystemStabilized, ev)
		return
	}
	e.publish(events.DegradationActivated, ev)
}
