// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/cheerboard/internal/logging"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateStream,
		c.validateQueue,
		c.validateCache,
		c.validateRecovery,
		c.validatePoller,
		c.validateWebhook,
		c.validateRelay,
		c.validateServer,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateStream() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("STREAM_URL is required")
	}
	if err := validateStreamURL(c.Stream.URL); err != nil {
		return err
	}
	if c.Stream.ReconnectInterval <= 0 {
		return fmt.Errorf("STREAM_RECONNECT_INTERVAL must be positive, got %v", c.Stream.ReconnectInterval)
	}
	if c.Stream.MaxReconnectAttempts < 1 {
		return fmt.Errorf("STREAM_MAX_RECONNECT_ATTEMPTS must be at least 1, got %d", c.Stream.MaxReconnectAttempts)
	}
	if c.Stream.HeartbeatTimeout <= 0 {
		return fmt.Errorf("STREAM_HEARTBEAT_TIMEOUT must be positive, got %v", c.Stream.HeartbeatTimeout)
	}
	if c.Stream.ConnectTimeout <= 0 {
		return fmt.Errorf("STREAM_CONNECT_TIMEOUT must be positive, got %v", c.Stream.ConnectTimeout)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxSize < 1 {
		return fmt.Errorf("QUEUE_MAX_SIZE must be at least 1, got %d", c.Queue.MaxSize)
	}
	if c.Queue.PromotionDelay < 0 {
		return fmt.Errorf("QUEUE_PROMOTION_DELAY must not be negative, got %v", c.Queue.PromotionDelay)
	}
	if c.Queue.DedupCapacity < 1 {
		return fmt.Errorf("QUEUE_DEDUP_CAPACITY must be at least 1, got %d", c.Queue.DedupCapacity)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxSizeMB < 1 {
		return fmt.Errorf("CACHE_MAX_SIZE_MB must be at least 1, got %d", c.Cache.MaxSizeMB)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be at least 1, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive, got %v", c.Cache.DefaultTTL)
	}
	if c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive, got %v", c.Cache.CleanupInterval)
	}
	return nil
}

func (c *Config) validateRecovery() error {
	r := c.Recovery
	if r.GlobalTimeout <= 0 {
		return fmt.Errorf("RECOVERY_GLOBAL_TIMEOUT must be positive, got %v", r.GlobalTimeout)
	}
	if r.MaxGlobalRetries < 1 {
		return fmt.Errorf("RECOVERY_MAX_GLOBAL_RETRIES must be at least 1, got %d", r.MaxGlobalRetries)
	}
	if r.HistoryLimit < 2 {
		return fmt.Errorf("RECOVERY_HISTORY_LIMIT must be at least 2, got %d", r.HistoryLimit)
	}
	if r.ErrorWindow <= 0 || r.StabilizationWindow <= 0 {
		return fmt.Errorf("RECOVERY_ERROR_WINDOW and RECOVERY_STABILIZATION_WINDOW must be positive")
	}
	if r.ProbeURL != "" {
		if err := validateHTTPURL(r.ProbeURL, "RECOVERY_PROBE_URL"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePoller() error {
	if c.Poller.BaseURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Poller.BaseURL, "POLLER_BASE_URL"); err != nil {
		return err
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("POLLER_INTERVAL must be positive, got %v", c.Poller.Interval)
	}
	if c.Poller.RequestsPerSecond <= 0 {
		return fmt.Errorf("POLLER_RPS must be positive, got %v", c.Poller.RequestsPerSecond)
	}
	if c.Poller.MaxRetries < 0 {
		return fmt.Errorf("POLLER_MAX_RETRIES must not be negative, got %d", c.Poller.MaxRetries)
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	if c.Webhook.RateLimit < 1 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT must be at least 1, got %d", c.Webhook.RateLimit)
	}
	if c.Webhook.Secret == "" {
		logging.Warn().Msg("WEBHOOK_SECRET is empty: webhook signatures will not be verified")
	}
	return nil
}

func (c *Config) validateRelay() error {
	if !c.Relay.Enabled {
		return nil
	}
	if c.Relay.TopicPrefix == "" {
		return fmt.Errorf("RELAY_TOPIC_PREFIX is required when RELAY_ENABLED=true")
	}
	if c.Relay.NATSURL != "" {
		if err := validateNATSURL(c.Relay.NATSURL); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
