// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/cheerboard/internal/logging"
)

// ConfigWatcher is satisfied by *config.Manager.
type ConfigWatcher interface {
	Watch() error
	Close() error
	Path() string
}

// ConfigWatchService keeps the config file watch alive for the lifetime of
// the tree. Reloads are delivered to the manager's subscribers.
type ConfigWatchService struct {
	watcher ConfigWatcher
}

// NewConfigWatchService wraps watcher.
func NewConfigWatchService(watcher ConfigWatcher) *ConfigWatchService {
	return &ConfigWatchService{watcher: watcher}
}

// Serve implements suture.Service. Without a config file there is nothing
// to watch and the service finishes with suture.ErrDoNotRestart.
func (s *ConfigWatchService) Serve(ctx context.Context) error {
	if s.watcher.Path() == "" {
		logging.Debug().Msg("No config file, reload watch disabled")
		return suture.ErrDoNotRestart
	}
	if err := s.watcher.Watch(); err != nil {
		return fmt.Errorf("watch config %s: %w", s.watcher.Path(), err)
	}
	logging.Info().Str("path", s.watcher.Path()).Msg("Watching config file for changes")

	<-ctx.Done()
	if err := s.watcher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to stop config watch")
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *ConfigWatchService) String() string {
	return "config-watch"
}
