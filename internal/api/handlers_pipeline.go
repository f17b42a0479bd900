// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/validation"
)

const maxRequestBody = 1 << 20

// NotificationsState returns the delivery queue state.
func (h *Handler) NotificationsState(w http.ResponseWriter, r *http.Request) {
	if h.deps.Queue == nil {
		unavailable(w, r, "queue")
		return
	}
	respondOK(w, http.StatusOK, h.deps.Queue.State())
}

// DismissRequest is the optional body of a dismiss request. An empty ID
// dismisses the current notification.
type DismissRequest struct {
	ID string `json:"id" validate:"omitempty,max=256"`
}

// DismissResponse reports the outcome of a dismiss request.
type DismissResponse struct {
	Dismissed bool              `json:"dismissed"`
	Queue     models.QueueState `json:"queue"`
}

// NotificationsDismiss dismisses the current notification, or the one with
// the given ID if it is current.
func (h *Handler) NotificationsDismiss(w http.ResponseWriter, r *http.Request) {
	if h.deps.Queue == nil {
		unavailable(w, r, "queue")
		return
	}

	var req DismissRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body", nil, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, r, http.StatusBadRequest, models.CodeInvalidJSON, "Request body is not valid JSON", nil, nil)
			return
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	var dismissed bool
	if req.ID == "" {
		dismissed = h.deps.Queue.DismissCurrent()
	} else {
		dismissed = h.deps.Queue.DismissByID(req.ID)
	}
	logging.Ctx(r.Context()).Debug().Str("event_id", sanitizeLogValue(req.ID)).Bool("dismissed", dismissed).Msg("Dismiss requested")

	respondOK(w, http.StatusOK, DismissResponse{Dismissed: dismissed, Queue: h.deps.Queue.State()})
}

// StreamStateResponse is the stream client's state plus whether a
// reconnect is pending.
type StreamStateResponse struct {
	models.ConnectionState
	Retrying bool `json:"retrying"`
}

// StreamState returns the push stream state.
func (h *Handler) StreamState(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stream == nil {
		unavailable(w, r, "stream")
		return
	}
	respondOK(w, http.StatusOK, StreamStateResponse{
		ConnectionState: h.deps.Stream.State(),
		Retrying:        h.deps.Stream.Retrying(),
	})
}

// StreamReconnect drops the current stream connection and connects again.
// The attempt is bounded by the server timeout.
func (h *Handler) StreamReconnect(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stream == nil {
		unavailable(w, r, "stream")
		return
	}

	timeout := 30 * time.Second
	if cfg := h.cfg(); cfg != nil && cfg.Server.Timeout > 0 {
		timeout = cfg.Server.Timeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	h.deps.Stream.Disconnect()
	if err := h.deps.Stream.Connect(ctx); err != nil {
		var nerr models.NotificationError
		if !errors.As(err, &nerr) {
			nerr = models.NewNotificationError(models.ErrorTypeStream, models.CodeConnectionFailed,
				models.SeverityHigh, "stream reconnect failed", h.clk.Now()).WithCause(err)
		}
		respondError(w, r, http.StatusServiceUnavailable, "STREAM_CONNECT_FAILED", nerr.Message,
			map[string]interface{}{"state": h.deps.Stream.State()}, err)
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Stream reconnected on request")
	respondOK(w, http.StatusOK, StreamStateResponse{
		ConnectionState: h.deps.Stream.State(),
		Retrying:        h.deps.Stream.Retrying(),
	})
}

// RecoveryStatus returns the recovery engine state.
func (h *Handler) RecoveryStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Recovery == nil {
		unavailable(w, r, "recovery")
		return
	}
	respondOK(w, http.StatusOK, h.deps.Recovery.Status())
}

// RecoveryReset forces the engine back to normal operation.
func (h *Handler) RecoveryReset(w http.ResponseWriter, r *http.Request) {
	if h.deps.Recovery == nil {
		unavailable(w, r, "recovery")
		return
	}
	h.deps.Recovery.ForceRecovery()
	logging.Ctx(r.Context()).Warn().Msg("Recovery forced by operator")
	respondOK(w, http.StatusOK, h.deps.Recovery.Status())
}

// CacheStats returns the statistics of every named cache.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.CacheStats == nil {
		unavailable(w, r, "cache")
		return
	}
	respondOK(w, http.StatusOK, h.deps.CacheStats())
}
