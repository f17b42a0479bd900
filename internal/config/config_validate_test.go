// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing stream url", func(c *Config) { c.Stream.URL = "" }, "STREAM_URL is required"},
		{"http stream url", func(c *Config) { c.Stream.URL = "http://x/events" }, "STREAM_URL scheme"},
		{"zero reconnect attempts", func(c *Config) { c.Stream.MaxReconnectAttempts = 0 }, "STREAM_MAX_RECONNECT_ATTEMPTS"},
		{"zero queue", func(c *Config) { c.Queue.MaxSize = 0 }, "QUEUE_MAX_SIZE"},
		{"negative promotion delay", func(c *Config) { c.Queue.PromotionDelay = -1 }, "QUEUE_PROMOTION_DELAY"},
		{"zero cache size", func(c *Config) { c.Cache.MaxSizeMB = 0 }, "CACHE_MAX_SIZE_MB"},
		{"zero ttl", func(c *Config) { c.Cache.DefaultTTL = 0 }, "CACHE_DEFAULT_TTL"},
		{"tiny history", func(c *Config) { c.Recovery.HistoryLimit = 1 }, "RECOVERY_HISTORY_LIMIT"},
		{"bad probe url", func(c *Config) { c.Recovery.ProbeURL = "ftp://x" }, "RECOVERY_PROBE_URL"},
		{"poller disabled", func(c *Config) { c.Poller.BaseURL = "" }, ""},
		{"poller bad rps", func(c *Config) { c.Poller.RequestsPerSecond = 0 }, "POLLER_RPS"},
		{"poller query string", func(c *Config) { c.Poller.BaseURL = "http://x/api?k=v" }, "query parameters"},
		{"relay without prefix", func(c *Config) { c.Relay.Enabled = true; c.Relay.TopicPrefix = "" }, "RELAY_TOPIC_PREFIX"},
		{"relay bad nats url", func(c *Config) { c.Relay.Enabled = true; c.Relay.NATSURL = "http://nats" }, "RELAY_NATS_URL"},
		{"relay nats url", func(c *Config) { c.Relay.Enabled = true; c.Relay.NATSURL = "nats://127.0.0.1:4222" }, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
