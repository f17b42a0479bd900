// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package config loads and hot-reloads Cheerboard configuration.

Configuration is layered with Koanf v2, later layers overriding earlier ones:

 1. Struct defaults (defaultConfig)
 2. YAML file from CONFIG_PATH, ./config.yaml or /etc/cheerboard/config.yaml
 3. Environment variables (explicit mapping table, unknown variables ignored)

Comma-separated environment values are split for slice fields such as
QUEUE_CHALLENGE_TYPES and CORS_ORIGINS.

Example config.yaml:

	stream:
	  url: wss://gamification.example.com/events
	  max_reconnect_attempts: 5
	  heartbeat_timeout: 60s
	queue:
	  max_size: 50
	  challenge_types: [daily, weekly]
	cache:
	  max_size_mb: 10
	  default_ttl: 5m

Hot reload:

	mgr, err := config.LoadManager()
	mgr.Subscribe(func(cfg *config.Config) { queue.UpdateConfig(...) })
	_ = mgr.Watch()

A reload that fails Validate never reaches subscribers.
*/
package config
