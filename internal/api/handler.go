// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package api

import (
	"context"
	"time"

	"github.com/tomtom215/cheerboard/internal/cache"
	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/websocket"
)

// QueueService is the delivery queue as seen by the API.
type QueueService interface {
	State() models.QueueState
	DismissCurrent() bool
	DismissByID(id string) bool
}

// StreamService is the push stream client as seen by the API.
type StreamService interface {
	State() models.ConnectionState
	Retrying() bool
	Connect(ctx context.Context) error
	Disconnect()
}

// RecoveryService is the error recovery engine as seen by the API.
type RecoveryService interface {
	Status() models.RecoveryStatus
	ForceRecovery()
	Report(models.NotificationError)
}

// FallbackService reports whether fallback polling is running.
type FallbackService interface {
	Active() bool
}

// Deps are the pipeline components served by the API. Nil components make
// their endpoints answer 503.
type Deps struct {
	Queue    QueueService
	Stream   StreamService
	Recovery RecoveryService
	Fallback FallbackService

	// Ingest admits a webhook event into the pipeline and reports whether
	// it was queued.
	Ingest func(models.ChallengeCompletionEvent) bool

	// CacheStats returns the statistics of every named cache.
	CacheStats func() map[string]cache.Stats

	Hub   *websocket.Hub
	Clock clock.Clock
}

// Handler serves the HTTP API.
type Handler struct {
	deps      Deps
	config    func() *config.Config
	clk       clock.Clock
	startTime time.Time
}

// NewHandler creates a Handler. cfg is read on every request so reloaded
// settings apply without a restart.
func NewHandler(cfg func() *config.Config, deps Deps) *Handler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Handler{
		deps:      deps,
		config:    cfg,
		clk:       clk,
		startTime: clk.Now(),
	}
}

func (h *Handler) cfg() *config.Config {
	if h.config == nil {
		return nil
	}
	return h.config()
}
