// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"fmt"
	"sync"

	"github.com/knadh/koanf/providers/file"

	"github.com/tomtom215/cheerboard/internal/logging"
)

// Manager owns the live configuration and fans out reloads to
// subscribers. A reload that fails validation is logged and discarded; the
// previous configuration stays in effect.
type Manager struct {
	mu          sync.RWMutex
	cfg         *Config
	path        string
	subscribers []func(*Config)
	provider    *file.File
}

// NewManager wraps an already loaded configuration. path is the file to
// watch and may be empty.
func NewManager(cfg *Config, path string) *Manager {
	return &Manager{cfg: cfg, path: path}
}

// LoadManager loads configuration from the default locations.
func LoadManager() (*Manager, error) {
	path := findConfigFile()
	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	return NewManager(cfg, path), nil
}

// Get returns the current configuration. Callers must not mutate it.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Path returns the watched config file path.
func (m *Manager) Path() string {
	return m.path
}

// Subscribe registers fn to receive every successfully reloaded config.
func (m *Manager) Subscribe(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Reload re-reads the config file and environment, then notifies
// subscribers.
func (m *Manager) Reload() error {
	cfg, err := LoadFrom(m.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	m.apply(cfg)
	return nil
}

func (m *Manager) apply(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	subs := make([]func(*Config), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	logging.SetLevelString(cfg.Logging.Level)

	for _, fn := range subs {
		notify(fn, cfg)
	}
}

func notify(fn func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("Config subscriber panicked")
		}
	}()
	fn(cfg)
}

// Watch starts watching the config file. It is a no-op without a file.
func (m *Manager) Watch() error {
	if m.path == "" {
		return nil
	}

	m.mu.Lock()
	if m.provider != nil {
		m.mu.Unlock()
		return nil
	}
	m.provider = file.Provider(m.path)
	provider := m.provider
	m.mu.Unlock()

	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			logging.Warn().Err(err).Str("path", m.path).Msg("Config watch error")
			return
		}
		if err := m.Reload(); err != nil {
			logging.Error().Err(err).Str("path", m.path).Msg("Config reload rejected")
			return
		}
		logging.Info().Str("path", m.path).Msg("Configuration reloaded")
	})
}

// Close stops watching the config file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provider == nil {
		return nil
	}
	err := m.provider.Unwatch()
	m.provider = nil
	return err
}
