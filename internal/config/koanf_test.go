// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/cheerboard/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Stream.MaxReconnectAttempts != 5 {
		t.Errorf("Stream.MaxReconnectAttempts = %d, want 5", cfg.Stream.MaxReconnectAttempts)
	}
	if cfg.Stream.ConnectTimeout != 10*time.Second {
		t.Errorf("Stream.ConnectTimeout = %v, want 10s", cfg.Stream.ConnectTimeout)
	}
	if cfg.Queue.DedupCapacity != 1000 {
		t.Errorf("Queue.DedupCapacity = %d, want 1000", cfg.Queue.DedupCapacity)
	}
	if cfg.Recovery.HistoryLimit != 100 {
		t.Errorf("Recovery.HistoryLimit = %d, want 100", cfg.Recovery.HistoryLimit)
	}
	if cfg.Recovery.StabilizationWindow != 120*time.Second {
		t.Errorf("Recovery.StabilizationWindow = %v, want 120s", cfg.Recovery.StabilizationWindow)
	}
	if cfg.Cache.MaxSizeBytes() != 10*1024*1024 {
		t.Errorf("Cache.MaxSizeBytes() = %d", cfg.Cache.MaxSizeBytes())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != 3857 {
		t.Errorf("Server.Port = %d, want 3857", cfg.Server.Port)
	}
}

func TestLoadFrom_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
stream:
  url: wss://events.example.com/stream
  max_reconnect_attempts: 3
  heartbeat_timeout: 45s
queue:
  max_size: 3
  challenge_types: [daily, weekly]
cache:
  max_entries: 25
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Stream.URL != "wss://events.example.com/stream" {
		t.Errorf("Stream.URL = %q", cfg.Stream.URL)
	}
	if cfg.Stream.MaxReconnectAttempts != 3 {
		t.Errorf("Stream.MaxReconnectAttempts = %d, want 3", cfg.Stream.MaxReconnectAttempts)
	}
	if cfg.Stream.HeartbeatTimeout != 45*time.Second {
		t.Errorf("Stream.HeartbeatTimeout = %v, want 45s", cfg.Stream.HeartbeatTimeout)
	}
	if cfg.Queue.MaxSize != 3 {
		t.Errorf("Queue.MaxSize = %d, want 3", cfg.Queue.MaxSize)
	}
	if len(cfg.Queue.ChallengeTypes) != 2 || cfg.Queue.ChallengeTypes[1] != "weekly" {
		t.Errorf("Queue.ChallengeTypes = %v", cfg.Queue.ChallengeTypes)
	}
	if cfg.Cache.MaxEntries != 25 {
		t.Errorf("Cache.MaxEntries = %d, want 25", cfg.Cache.MaxEntries)
	}
	// untouched keys keep their defaults
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("Cache.DefaultTTL = %v, want 5m", cfg.Cache.DefaultTTL)
	}
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
queue:
  max_size: 10
`)
	t.Setenv("QUEUE_MAX_SIZE", "20")
	t.Setenv("QUEUE_CATEGORIES", "fitness, learning ,")
	t.Setenv("STREAM_RECONNECT_INTERVAL", "2s")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Queue.MaxSize != 20 {
		t.Errorf("Queue.MaxSize = %d, want 20", cfg.Queue.MaxSize)
	}
	if len(cfg.Queue.Categories) != 2 || cfg.Queue.Categories[0] != "fitness" || cfg.Queue.Categories[1] != "learning" {
		t.Errorf("Queue.Categories = %v", cfg.Queue.Categories)
	}
	if cfg.Stream.ReconnectInterval != 2*time.Second {
		t.Errorf("Stream.ReconnectInterval = %v, want 2s", cfg.Stream.ReconnectInterval)
	}
	if cfg.Webhook.Secret != "s3cret" {
		t.Errorf("Webhook.Secret = %q", cfg.Webhook.Secret)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"STREAM_URL":     "stream.url",
		"POLLER_RPS":     "poller.requests_per_second",
		"HTTP_PORT":      "server.port",
		"LOG_LEVEL":      "logging.level",
		"HOME":           "",
		"UNRELATED_VAR_": "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindConfigFile_EnvVar(t *testing.T) {
	path := writeConfigFile(t, "queue:\n  max_size: 5\n")
	t.Setenv(ConfigPathEnvVar, path)

	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

func TestEffectiveProbeURL(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.EffectiveProbeURL(); got != "http://localhost:8081/api/health" {
		t.Errorf("EffectiveProbeURL() = %q", got)
	}
	cfg.Recovery.ProbeURL = "https://status.example.com/ping"
	if got := cfg.EffectiveProbeURL(); got != "https://status.example.com/ping" {
		t.Errorf("EffectiveProbeURL() = %q", got)
	}
	cfg.Recovery.ProbeURL = ""
	cfg.Poller.BaseURL = ""
	if got := cfg.EffectiveProbeURL(); got != "" {
		t.Errorf("EffectiveProbeURL() = %q, want empty", got)
	}
}
