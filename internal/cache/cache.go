// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
)

// fallbackEntrySize is charged when a value cannot be JSON encoded.
const fallbackEntrySize = 1024

// Entry is a cached value with its bookkeeping.
//
// Invariant: ExpiresAt == Timestamp + ttl.
type Entry[V any] struct {
	Data      V
	Timestamp time.Time
	ExpiresAt time.Time
	HitCount  int64
	Size      int64
}

func (e *Entry[V]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Config bounds a Bounded cache.
type Config struct {
	// Name labels metrics and log lines.
	Name string

	MaxSizeBytes    int64
	MaxEntries      int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration

	// Clock defaults to the real clock.
	Clock clock.Clock
}

// Stats is a snapshot of cache performance.
type Stats struct {
	Hits             int64      `json:"hits"`
	Misses           int64      `json:"misses"`
	HitRate          float64    `json:"hitRate"`
	CurrentSizeBytes int64      `json:"currentSizeBytes"`
	MaxSizeBytes     int64      `json:"maxSizeBytes"`
	EntryCount       int        `json:"entryCount"`
	MaxEntries       int        `json:"maxEntries"`
	Evictions        int64      `json:"evictions"`
	OldestEntry      *time.Time `json:"oldestEntry,omitempty"`
	NewestEntry      *time.Time `json:"newestEntry,omitempty"`
}

// Bounded is a key/value cache bounded by TTL, an approximate byte budget
// and an entry count.
//
// Eviction is least-used-then-oldest: entries are ordered by ascending
// HitCount, ties broken by ascending Timestamp. One eviction pass removes
// at most half of the cache.
//
// Thread Safety: all methods are safe for concurrent use.
type Bounded[V any] struct {
	mu          sync.Mutex
	cfg         Config
	clk         clock.Clock
	entries     map[string]*Entry[V]
	currentSize int64
	hits        int64
	misses      int64
	evictions   int64
}

// NewBounded creates a cache. Zero limits fall back to 10MB, 1000 entries,
// a 5 minute TTL and a 1 minute sweep.
func NewBounded[V any](cfg Config) *Bounded[V] {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = 10 * 1024 * 1024
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Bounded[V]{
		cfg:     cfg,
		clk:     clk,
		entries: make(map[string]*Entry[V]),
	}
}

// Get returns the value for key if present and not expired. An expired
// entry is purged as a side effect.
func (c *Bounded[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.recordMissLocked()
		return zero, false
	}
	if e.expired(c.clk.Now()) {
		c.removeLocked(key, e)
		metrics.CacheEvictions.WithLabelValues(c.cfg.Name, "expired").Inc()
		c.recordMissLocked()
		return zero, false
	}

	e.HitCount++
	c.hits++
	metrics.CacheHits.WithLabelValues(c.cfg.Name).Inc()
	return e.Data, true
}

func (c *Bounded[V]) recordMissLocked() {
	c.misses++
	metrics.CacheMisses.WithLabelValues(c.cfg.Name).Inc()
}

// Has reports whether key holds a live entry without touching hit counts.
func (c *Bounded[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && !e.expired(c.clk.Now())
}

// Set stores value under key with the default TTL, or ttl[0] when given
// and positive. It returns false without caching when value is nil or when
// the entry cannot be admitted within the byte budget.
func (c *Bounded[V]) Set(key string, value V, ttl ...time.Duration) bool {
	if isNil(value) {
		return false
	}
	size := estimateSize(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	lifetime := c.cfg.DefaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		lifetime = ttl[0]
	}
	now := c.clk.Now()

	old, updating := c.entries[key]
	if updating {
		c.removeLocked(key, old)
	}

	if size <= c.cfg.MaxSizeBytes && !c.fitsLocked(size) {
		c.evictLocked(now, size)
	}

	if size > c.cfg.MaxSizeBytes || !c.fitsLocked(size) {
		if updating && c.fitsLocked(old.Size) {
			c.insertLocked(key, old)
		}
		logging.Debug().
			Str("cache", c.cfg.Name).
			Str("key", key).
			Int64("size", size).
			Msg("Cache entry rejected: over budget")
		return false
	}

	c.insertLocked(key, &Entry[V]{
		Data:      value,
		Timestamp: now,
		ExpiresAt: now.Add(lifetime),
		Size:      size,
	})
	return true
}

func (c *Bounded[V]) fitsLocked(size int64) bool {
	return len(c.entries) < c.cfg.MaxEntries && c.currentSize+size <= c.cfg.MaxSizeBytes
}

func (c *Bounded[V]) insertLocked(key string, e *Entry[V]) {
	c.entries[key] = e
	c.currentSize += e.Size
}

func (c *Bounded[V]) removeLocked(key string, e *Entry[V]) {
	delete(c.entries, key)
	c.currentSize -= e.Size
}

// evictLocked frees room for an entry of size bytes. Expired entries go
// first and do not count toward the per-pass bound.
func (c *Bounded[V]) evictLocked(now time.Time, size int64) {
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key, e)
			metrics.CacheEvictions.WithLabelValues(c.cfg.Name, "expired").Inc()
		}
	}
	if c.fitsLocked(size) {
		return
	}

	type candidate struct {
		key   string
		entry *Entry[V]
	}
	candidates := make([]candidate, 0, len(c.entries))
	for key, e := range c.entries {
		candidates = append(candidates, candidate{key, e})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		if a.HitCount != b.HitCount {
			return a.HitCount < b.HitCount
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return candidates[i].key < candidates[j].key
	})

	limit := len(candidates) / 2
	if limit < 1 {
		limit = 1
	}
	evicted := 0
	for _, cand := range candidates {
		if evicted >= limit || c.fitsLocked(size) {
			break
		}
		c.removeLocked(cand.key, cand.entry)
		c.evictions++
		evicted++
	}
	if evicted > 0 {
		metrics.CacheEvictions.WithLabelValues(c.cfg.Name, "capacity").Add(float64(evicted))
	}
}

// Delete removes key.
func (c *Bounded[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

// Clear removes every entry. Counters are kept.
func (c *Bounded[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry[V])
	c.currentSize = 0
}

// Len returns the number of stored entries, including expired entries not
// yet swept.
func (c *Bounded[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Bounded[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key, e)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues(c.cfg.Name, "expired").Add(float64(removed))
	}
	return removed
}

// Stats returns a snapshot of counters and occupancy.
func (c *Bounded[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:             c.hits,
		Misses:           c.misses,
		CurrentSizeBytes: c.currentSize,
		MaxSizeBytes:     c.cfg.MaxSizeBytes,
		EntryCount:       len(c.entries),
		MaxEntries:       c.cfg.MaxEntries,
		Evictions:        c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total) * 100
	}
	for _, e := range c.entries {
		ts := e.Timestamp
		if s.OldestEntry == nil || ts.Before(*s.OldestEntry) {
			s.OldestEntry = &ts
		}
		if s.NewestEntry == nil || ts.After(*s.NewestEntry) {
			s.NewestEntry = &ts
		}
	}
	return s
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Load errors are returned and nothing is cached.
func (c *Bounded[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// UpdateLimits applies new bounds. Existing entries over the new limits
// are evicted on the next Set.
func (c *Bounded[V]) UpdateLimits(maxSizeBytes int64, maxEntries int, defaultTTL time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxSizeBytes > 0 {
		c.cfg.MaxSizeBytes = maxSizeBytes
	}
	if maxEntries > 0 {
		c.cfg.MaxEntries = maxEntries
	}
	if defaultTTL > 0 {
		c.cfg.DefaultTTL = defaultTTL
	}
}

// Serve runs the periodic sweep until ctx is cancelled. It implements
// suture.Service.
func (c *Bounded[V]) Serve(ctx context.Context) error {
	ticker := c.clk.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if removed := c.Cleanup(); removed > 0 {
				logging.Debug().Str("cache", c.cfg.Name).Int("removed", removed).Msg("Cache sweep")
			}
			s := c.Stats()
			metrics.RecordCacheStats(c.cfg.Name, s.EntryCount, s.CurrentSizeBytes)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (c *Bounded[V]) String() string {
	return "cache-sweeper:" + c.cfg.Name
}

// GenerateKey builds a compact key from a prefix and parts.
func GenerateKey(prefix string, parts ...interface{}) string {
	data, err := json.Marshal(parts)
	if err != nil {
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = fmt.Sprint(p)
		}
		return prefix + ":" + strings.Join(strs, ":")
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", prefix, hash[:16])
}

func estimateSize(key string, value interface{}) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return int64(len(key)) + fallbackEntrySize
	}
	return int64(len(key) + len(data))
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
