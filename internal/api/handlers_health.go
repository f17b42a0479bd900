// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/cheerboard/internal/models"
)

// HealthLive answers the liveness probe. The process is alive as long as
// it can serve this request.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": h.clk.Now().Sub(h.startTime).Seconds(),
	})
}

// readiness is the body of the readiness probe.
type readiness struct {
	Ready          bool                    `json:"ready"`
	Stream         models.ConnectionStatus `json:"stream"`
	FallbackActive bool                    `json:"fallbackActive"`
	Level          string                  `json:"degradationLevel"`
	EmergencyMode  bool                    `json:"emergencyMode"`
	Uptime         float64                 `json:"uptime"`
}

// HealthReady answers the readiness probe. The kiosk is ready when events
// can arrive (stream connected or fallback polling) and the recovery engine
// is not in emergency mode.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	body := readiness{
		Stream: models.StatusDisconnected,
		Uptime: h.clk.Now().Sub(h.startTime).Seconds(),
	}

	delivering := false
	if h.deps.Stream != nil {
		state := h.deps.Stream.State()
		body.Stream = state.Status
		delivering = state.IsConnected()
	}
	if h.deps.Fallback != nil && h.deps.Fallback.Active() {
		body.FallbackActive = true
		delivering = true
	}
	if h.deps.Recovery != nil {
		status := h.deps.Recovery.Status()
		body.Level = status.LevelName
		body.EmergencyMode = status.EmergencyMode
	}
	body.Ready = delivering && !body.EmergencyMode

	if !body.Ready {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Success: false,
			Data:    body,
			Error: &models.APIError{
				Code:    "NOT_READY",
				Message: "no event source is delivering",
			},
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
		return
	}
	respondOK(w, http.StatusOK, body)
}
