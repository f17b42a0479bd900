// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cheerboard/config.yaml",
	"/etc/cheerboard/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			URL:                  "ws://localhost:8081/events",
			ReconnectInterval:    time.Second,
			MaxReconnectAttempts: 5,
			HeartbeatTimeout:     60 * time.Second,
			ConnectTimeout:       10 * time.Second,
		},
		Queue: QueueConfig{
			MaxSize:        50,
			PromotionDelay: 300 * time.Millisecond,
			DedupCapacity:  1000,
		},
		Cache: CacheConfig{
			MaxSizeMB:       10,
			MaxEntries:      1000,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Recovery: RecoveryConfig{
			GlobalTimeout:       30 * time.Second,
			MaxGlobalRetries:    5,
			HistoryLimit:        100,
			ErrorWindow:         60 * time.Second,
			StabilizationWindow: 120 * time.Second,
			ProbeTimeout:        5 * time.Second,
		},
		Poller: PollerConfig{
			BaseURL:           "http://localhost:8081/api",
			Interval:          15 * time.Second,
			RequestsPerSecond: 2,
			Timeout:           10 * time.Second,
			MaxRetries:        3,
		},
		Webhook: WebhookConfig{
			Enabled:   true,
			RateLimit: 60,
		},
		Relay: RelayConfig{
			Enabled:     false,
			TopicPrefix: "cheerboard",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3857,
			Timeout:     30 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration with precedence defaults < config file < env.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are accepted as comma-separated strings from env.
var sliceConfigPaths = []string{
	"queue.challenge_types",
	"queue.categories",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"stream_url":                    "stream.url",
	"stream_reconnect_interval":     "stream.reconnect_interval",
	"stream_max_reconnect_attempts": "stream.max_reconnect_attempts",
	"stream_heartbeat_timeout":      "stream.heartbeat_timeout",
	"stream_connect_timeout":        "stream.connect_timeout",

	"queue_max_size":        "queue.max_size",
	"queue_promotion_delay": "queue.promotion_delay",
	"queue_dedup_capacity":  "queue.dedup_capacity",
	"queue_challenge_types": "queue.challenge_types",
	"queue_categories":      "queue.categories",

	"cache_max_size_mb":      "cache.max_size_mb",
	"cache_max_entries":      "cache.max_entries",
	"cache_default_ttl":      "cache.default_ttl",
	"cache_cleanup_interval": "cache.cleanup_interval",

	"recovery_global_timeout":       "recovery.global_timeout",
	"recovery_max_global_retries":   "recovery.max_global_retries",
	"recovery_history_limit":        "recovery.history_limit",
	"recovery_error_window":         "recovery.error_window",
	"recovery_stabilization_window": "recovery.stabilization_window",
	"recovery_probe_url":            "recovery.probe_url",
	"recovery_probe_timeout":        "recovery.probe_timeout",

	"poller_base_url":    "poller.base_url",
	"poller_interval":    "poller.interval",
	"poller_rps":         "poller.requests_per_second",
	"poller_timeout":     "poller.timeout",
	"poller_max_retries": "poller.max_retries",

	"webhook_enabled":    "webhook.enabled",
	"webhook_secret":     "webhook.secret",
	"webhook_rate_limit": "webhook.rate_limit",

	"relay_enabled":      "relay.enabled",
	"relay_nats_url":     "relay.nats_url",
	"relay_topic_prefix": "relay.topic_prefix",

	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"cors_origins": "server.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known environment variables onto koanf paths and
// discards everything else, so unrelated variables never leak in.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
