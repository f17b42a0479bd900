// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var epoch = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func newTestCache[V any](clk clock.Clock, maxBytes int64, maxEntries int, ttl time.Duration) *Bounded[V] {
	return NewBounded[V](Config{
		Name:         "test",
		MaxSizeBytes: maxBytes,
		MaxEntries:   maxEntries,
		DefaultTTL:   ttl,
		Clock:        clk,
	})
}

// TestBounded_TTLScenario: ttl=1000ms, set("k", 1), get after 500ms
// returns 1, get after 1500ms total misses.
func TestBounded_TTLScenario(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	c := newTestCache[int](clk, 1<<20, 100, time.Second)

	if !c.Set("k", 1) {
		t.Fatal("Set returned false")
	}

	clk.Advance(500 * time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != 1 {
		t.Fatalf("Get at 500ms = (%v, %v), want (1, true)", v, ok)
	}

	clk.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("Get at 1500ms should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be purged on Get, Len() = %d", c.Len())
	}
}

func TestBounded_GetHitIffWaitBelowTTL(t *testing.T) {
	t.Parallel()

	ttl := time.Second
	waits := []struct {
		wait time.Duration
		hit  bool
	}{
		{0, true},
		{1 * time.Millisecond, true},
		{999 * time.Millisecond, true},
		{1000 * time.Millisecond, false},
		{1001 * time.Millisecond, false},
		{5 * time.Second, false},
	}

	for _, w := range waits {
		clk := clock.NewFake(epoch)
		c := newTestCache[string](clk, 1<<20, 10, time.Minute)
		c.Set("k", "v", ttl)
		clk.Advance(w.wait)

		_, ok := c.Get("k")
		if ok != w.hit {
			t.Errorf("wait %v: hit = %v, want %v", w.wait, ok, w.hit)
		}
	}
}

func TestBounded_SetRejectsNil(t *testing.T) {
	t.Parallel()

	ptrCache := newTestCache[*int](nil, 1<<20, 10, time.Minute)
	if ptrCache.Set("p", nil) {
		t.Error("nil pointer should be rejected")
	}

	sliceCache := newTestCache[[]byte](nil, 1<<20, 10, time.Minute)
	if sliceCache.Set("s", nil) {
		t.Error("nil slice should be rejected")
	}

	anyCache := newTestCache[interface{}](nil, 1<<20, 10, time.Minute)
	if anyCache.Set("a", nil) {
		t.Error("nil interface should be rejected")
	}
	if !anyCache.Set("zero", 0) {
		t.Error("zero value is not nil and should be cached")
	}
}

func TestBounded_OverwriteAdjustsSize(t *testing.T) {
	t.Parallel()

	c := newTestCache[string](nil, 1<<20, 10, time.Minute)
	c.Set("k", "aaaa")     // 1 + 6
	c.Set("k", "aaaaaaaa") // 1 + 10

	if got := c.Stats().CurrentSizeBytes; got != 11 {
		t.Errorf("CurrentSizeBytes = %d, want 11", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestBounded_RejectedUpdateRestoresOldEntry(t *testing.T) {
	t.Parallel()

	c := newTestCache[string](nil, 20, 10, time.Minute)
	if !c.Set("k", "aaaa") {
		t.Fatal("initial Set failed")
	}
	if c.Set("k", strings.Repeat("x", 30)) {
		t.Fatal("oversized update should be rejected")
	}

	v, ok := c.Get("k")
	if !ok || v != "aaaa" {
		t.Errorf("Get = (%q, %v), want (aaaa, true)", v, ok)
	}
	if got := c.Stats().CurrentSizeBytes; got != 7 {
		t.Errorf("CurrentSizeBytes = %d, want 7", got)
	}
}

func TestBounded_EvictsLeastUsedThenOldest(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	c := newTestCache[string](clk, 1<<20, 3, time.Hour)

	c.Set("a", "1")
	clk.Advance(time.Second)
	c.Set("b", "2")
	clk.Advance(time.Second)
	c.Set("c", "3")

	c.Get("a")
	c.Get("a")
	c.Get("c")

	clk.Advance(time.Second)
	if !c.Set("d", "4") {
		t.Fatal("Set d failed")
	}

	if c.Has("b") {
		t.Error("b (zero hits) should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !c.Has(k) {
			t.Errorf("%s should remain", k)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestBounded_EvictionTieBreaksOnTimestamp(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	c := newTestCache[string](clk, 1<<20, 2, time.Hour)

	c.Set("older", "x")
	clk.Advance(time.Second)
	c.Set("newer", "y")
	clk.Advance(time.Second)
	c.Set("incoming", "z")

	if c.Has("older") {
		t.Error("older entry should be evicted first on equal hit counts")
	}
	if !c.Has("newer") || !c.Has("incoming") {
		t.Error("newer and incoming should remain")
	}
}

func TestBounded_EvictionPassIsBoundedToHalf(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	c := newTestCache[string](clk, 48, 100, time.Hour)

	for i := 0; i < 4; i++ {
		clk.Advance(time.Millisecond)
		if !c.Set(fmt.Sprintf("k%d", i), "xxxxxxxx") { // 2 + 10 bytes
			t.Fatalf("Set k%d failed", i)
		}
	}

	// needs 40 bytes: room only after evicting all four, but a pass stops at two
	if c.Set("big", strings.Repeat("y", 35)) {
		t.Fatal("Set should be rejected after a bounded eviction pass")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after evicting half", c.Len())
	}
	if c.Has("k0") || c.Has("k1") {
		t.Error("the two oldest entries should be the ones evicted")
	}
}

func TestBounded_BoundsHoldAfterEverySet(t *testing.T) {
	t.Parallel()

	const (
		maxEntries = 5
		maxBytes   = 200
	)
	clk := clock.NewFake(epoch)
	c := newTestCache[string](clk, maxBytes, maxEntries, time.Minute)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		clk.Advance(time.Duration(rng.Intn(2000)) * time.Millisecond)
		key := fmt.Sprintf("key-%d", rng.Intn(20))
		value := strings.Repeat("v", rng.Intn(120))
		c.Set(key, value)
		if rng.Intn(3) == 0 {
			c.Get(fmt.Sprintf("key-%d", rng.Intn(20)))
		}

		s := c.Stats()
		if s.EntryCount > maxEntries {
			t.Fatalf("iteration %d: EntryCount %d > %d", i, s.EntryCount, maxEntries)
		}
		if s.CurrentSizeBytes > maxBytes {
			t.Fatalf("iteration %d: CurrentSizeBytes %d > %d", i, s.CurrentSizeBytes, maxBytes)
		}
		if s.CurrentSizeBytes < 0 {
			t.Fatalf("iteration %d: negative size %d", i, s.CurrentSizeBytes)
		}
	}
}

func TestBounded_Cleanup(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	c := newTestCache[string](clk, 1<<20, 10, time.Minute)

	c.Set("short", "a", time.Second)
	c.Set("long", "b", time.Hour)
	clk.Advance(2 * time.Second)

	if removed := c.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if !c.Has("long") {
		t.Error("unexpired entry removed")
	}
}

func TestBounded_Stats(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	c := newTestCache[string](clk, 1<<20, 10, time.Minute)

	if s := c.Stats(); s.HitRate != 0 || s.OldestEntry != nil {
		t.Errorf("empty stats = %+v", s)
	}

	c.Set("a", "1")
	clk.Advance(time.Second)
	c.Set("b", "2")
	c.Get("a")
	c.Get("a")
	c.Get("b")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 3 || s.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 3/1", s.Hits, s.Misses)
	}
	if s.HitRate != 75 {
		t.Errorf("HitRate = %v, want 75", s.HitRate)
	}
	if s.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", s.EntryCount)
	}
	if !s.OldestEntry.Equal(epoch) || !s.NewestEntry.Equal(epoch.Add(time.Second)) {
		t.Errorf("oldest/newest = %v/%v", s.OldestEntry, s.NewestEntry)
	}
}

func TestBounded_GetOrLoad(t *testing.T) {
	t.Parallel()

	c := newTestCache[string](nil, 1<<20, 10, time.Minute)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "Ada Lovelace", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "players:p1", load)
		if err != nil || v != "Ada Lovelace" {
			t.Fatalf("GetOrLoad = (%q, %v)", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	_, err := c.GetOrLoad(context.Background(), "players:p2", func(context.Context) (string, error) {
		return "", errors.New("upstream down")
	})
	if err == nil {
		t.Error("expected loader error")
	}
	if c.Has("players:p2") {
		t.Error("failed load should not be cached")
	}
}

func TestBounded_ServeSweepsExpiredEntries(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	c := NewBounded[string](Config{
		Name:            "sweep",
		MaxSizeBytes:    1 << 20,
		MaxEntries:      10,
		DefaultTTL:      30 * time.Second,
		CleanupInterval: time.Minute,
		Clock:           clk,
	})
	c.Set("k", "v")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	clk.BlockUntil(1)
	clk.Advance(time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Error("sweep did not remove the expired entry")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	a := GenerateKey("players", "p1")
	b := GenerateKey("players", "p1")
	c := GenerateKey("players", "p2")

	if a != b {
		t.Error("same inputs should produce the same key")
	}
	if a == c {
		t.Error("different inputs should produce different keys")
	}
	if !strings.HasPrefix(a, "players:") {
		t.Errorf("key %q missing prefix", a)
	}
}
