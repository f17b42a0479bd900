// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package cache

import (
	"context"
	"time"
)

// Store is the cache surface used by upstream request paths.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl ...time.Duration) bool
	Delete(key string)
	Clear()
	Stats() Stats
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error)
}

// Compile-time interface checks.
var (
	_ Store[string] = (*Bounded[string])(nil)
	_ Store[[]byte] = (*Bounded[[]byte])(nil)
)
