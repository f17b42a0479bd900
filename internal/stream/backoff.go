// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package stream

import (
	"math/rand/v2"
	"time"
)

const (
	// MaxReconnectDelay caps the reconnect backoff.
	MaxReconnectDelay = 30 * time.Second

	maxJitter = time.Second
)

// ReconnectDelay returns min(base * 2^(attempts-1) + jitter, 30s).
// attempts is the number of consecutive failures including the one being
// handled, so the first retry waits base plus jitter.
func ReconnectDelay(base time.Duration, attempts int, jitter time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= MaxReconnectDelay || d <= 0 {
			return MaxReconnectDelay
		}
	}
	d += jitter
	if d > MaxReconnectDelay {
		return MaxReconnectDelay
	}
	return d
}

// randomJitter returns a uniform delay in [0, 1s).
func randomJitter() time.Duration {
	return rand.N(maxJitter)
}
