// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Stream   StreamConfig   `koanf:"stream"`
	Queue    QueueConfig    `koanf:"queue"`
	Cache    CacheConfig    `koanf:"cache"`
	Recovery RecoveryConfig `koanf:"recovery"`
	Poller   PollerConfig   `koanf:"poller"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Relay    RelayConfig    `koanf:"relay"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// StreamConfig configures the push-stream client.
type StreamConfig struct {
	URL                  string        `koanf:"url"`
	ReconnectInterval    time.Duration `koanf:"reconnect_interval"`
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts"`
	HeartbeatTimeout     time.Duration `koanf:"heartbeat_timeout"`
	ConnectTimeout       time.Duration `koanf:"connect_timeout"`
}

// QueueConfig configures the delivery queue.
type QueueConfig struct {
	MaxSize        int           `koanf:"max_size"`
	PromotionDelay time.Duration `koanf:"promotion_delay"`
	DedupCapacity  int           `koanf:"dedup_capacity"`

	// Empty lists admit every event.
	ChallengeTypes []string `koanf:"challenge_types"`
	Categories     []string `koanf:"categories"`
}

// CacheConfig configures the upstream response cache.
type CacheConfig struct {
	MaxSizeMB       int           `koanf:"max_size_mb"`
	MaxEntries      int           `koanf:"max_entries"`
	DefaultTTL      time.Duration `koanf:"default_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// MaxSizeBytes returns the byte budget.
func (c CacheConfig) MaxSizeBytes() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

// RecoveryConfig configures the error recovery engine.
type RecoveryConfig struct {
	GlobalTimeout       time.Duration `koanf:"global_timeout"`
	MaxGlobalRetries    int           `koanf:"max_global_retries"`
	HistoryLimit        int           `koanf:"history_limit"`
	ErrorWindow         time.Duration `koanf:"error_window"`
	StabilizationWindow time.Duration `koanf:"stabilization_window"`

	// ProbeURL defaults to the poller base URL plus /health.
	ProbeURL     string        `koanf:"probe_url"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// PollerConfig configures fallback polling of the gamification REST API.
type PollerConfig struct {
	BaseURL           string        `koanf:"base_url"`
	Interval          time.Duration `koanf:"interval"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
	MaxRetries        int           `koanf:"max_retries"`
}

// WebhookConfig configures signed webhook ingestion.
type WebhookConfig struct {
	Enabled bool `koanf:"enabled"`

	// Secret is the HMAC-SHA256 key. An empty secret disables signature
	// verification.
	Secret string `koanf:"secret"`

	// RateLimit is requests per minute per client IP.
	RateLimit int `koanf:"rate_limit"`
}

// RelayConfig configures forwarding of outbound events to a pub/sub.
type RelayConfig struct {
	Enabled bool `koanf:"enabled"`

	// NATSURL selects the NATS backend; empty uses the in-process channel.
	NATSURL     string `koanf:"nats_url"`
	TopicPrefix string `koanf:"topic_prefix"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EffectiveProbeURL returns the reachability probe target.
func (c *Config) EffectiveProbeURL() string {
	if c.Recovery.ProbeURL != "" {
		return c.Recovery.ProbeURL
	}
	if c.Poller.BaseURL == "" {
		return ""
	}
	return c.Poller.BaseURL + "/health"
}
