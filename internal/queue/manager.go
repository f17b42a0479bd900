// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/cheerboard/internal/cache"
	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
	"github.com/tomtom215/cheerboard/internal/models"
)

// Reporter receives faults raised by the queue.
type Reporter interface {
	Report(models.NotificationError)
}

// Config controls a Manager.
type Config struct {
	MaxSize        int
	PromotionDelay time.Duration
	DedupCapacity  int
	Filter         Filter
}

// ConfigFrom converts the queue section of the service configuration.
func ConfigFrom(c config.QueueConfig) Config {
	return Config{
		MaxSize:        c.MaxSize,
		PromotionDelay: c.PromotionDelay,
		DedupCapacity:  c.DedupCapacity,
		Filter:         NewFilter(c.ChallengeTypes, c.Categories),
	}
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 50
	}
	if c.PromotionDelay < 0 {
		c.PromotionDelay = 0
	}
	if c.DedupCapacity <= 0 {
		c.DedupCapacity = 1000
	}
	return c
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clk = clk }
}

// WithBus publishes queue events on bus.
func WithBus(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithReporter routes faults to r.
func WithReporter(r Reporter) Option {
	return func(m *Manager) { m.reporter = r }
}

// Manager releases challenge completions to the display one at a time.
//
// Events are displayed in arrival order. When the queue is full the oldest
// queued event is dropped to admit the new one. Promotion always runs on
// the clock: Enqueue schedules it with no delay and DismissCurrent after
// PromotionDelay, so a synchronous burst lands in the queue before the
// first promotion.
//
// Thread Safety: all methods are safe for concurrent use. Events are
// published after the lock is released.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	clk      clock.Clock
	bus      *events.Bus
	reporter Reporter

	seen           *cache.RecentSet
	queued         []models.ChallengeCompletionEvent
	current        *models.ChallengeCompletionEvent
	suspended      bool
	promotionTimer clock.Timer

	// beforePromote runs inside promotion; tests use it to inject faults.
	beforePromote func(models.ChallengeCompletionEvent)
}

// NewManager creates an empty queue.
func NewManager(cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:  cfg,
		clk:  clock.Real(),
		seen: cache.NewRecentSet(cfg.DedupCapacity),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue admits ev. It returns false when ev is a duplicate or filtered
// out. A full queue drops its oldest event and reports
// system/QUEUE_OVERFLOW; the new event is still admitted.
func (m *Manager) Enqueue(ev models.ChallengeCompletionEvent) bool {
	m.mu.Lock()
	if m.seen.Seen(ev.ID) {
		depth := len(m.queued)
		m.mu.Unlock()
		metrics.RecordQueueOutcome("duplicate", depth)
		logging.Debug().Str("event_id", ev.ID).Msg("Ignoring duplicate challenge completion")
		return false
	}
	if !m.cfg.Filter.Allows(ev) {
		depth := len(m.queued)
		m.mu.Unlock()
		metrics.RecordQueueOutcome("filtered", depth)
		logging.Debug().
			Str("event_id", ev.ID).
			Str("challenge_type", ev.ChallengeType).
			Str("category", ev.Category).
			Msg("Challenge completion filtered out")
		return false
	}

	evicted := m.trimLocked(m.cfg.MaxSize - 1)
	m.queued = append(m.queued, ev)
	m.schedulePromotionLocked(0)
	depth := len(m.queued)
	state := m.stateLocked()
	m.mu.Unlock()

	m.overflowed(evicted)
	metrics.RecordQueueOutcome("enqueued", depth)
	m.publish(events.QueueStateChanged, state)
	return true
}

// DismissCurrent clears the displayed event and promotes the next one
// after PromotionDelay. It returns false when nothing is displayed.
func (m *Manager) DismissCurrent() bool {
	return m.dismiss(func(*models.ChallengeCompletionEvent) bool { return true })
}

// DismissByID dismisses the displayed event only if its id matches.
func (m *Manager) DismissByID(id string) bool {
	return m.dismiss(func(cur *models.ChallengeCompletionEvent) bool { return cur.ID == id })
}

func (m *Manager) dismiss(match func(*models.ChallengeCompletionEvent) bool) bool {
	m.mu.Lock()
	if m.current == nil || !match(m.current) {
		m.mu.Unlock()
		return false
	}
	dismissed := *m.current
	m.current = nil
	m.schedulePromotionLocked(m.cfg.PromotionDelay)
	depth := len(m.queued)
	state := m.stateLocked()
	m.mu.Unlock()

	metrics.RecordQueueOutcome("dismissed", depth)
	logging.Debug().Str("event_id", dismissed.ID).Msg("Notification dismissed")
	m.publish(events.NotificationDismissed, dismissed)
	m.publish(events.QueueStateChanged, state)
	return true
}

// Clear drops queued and current events and cancels any pending
// promotion. The dedup history is kept so cleared events are not shown
// again if the source replays them.
func (m *Manager) Clear() {
	m.mu.Lock()
	dropped := len(m.queued)
	if m.current != nil {
		dropped++
	}
	m.queued = nil
	m.current = nil
	m.stopPromotionLocked()
	state := m.stateLocked()
	m.mu.Unlock()

	metrics.QueueDepth.Set(0)
	logging.Info().Int("dropped", dropped).Msg("Notification queue cleared")
	m.publish(events.QueueStateChanged, state)
}

// SetSuspended pauses or resumes promotion. While suspended, events are
// still admitted up to the bound but nothing new is displayed.
func (m *Manager) SetSuspended(suspended bool) {
	m.mu.Lock()
	if m.suspended == suspended {
		m.mu.Unlock()
		return
	}
	m.suspended = suspended
	if suspended {
		m.stopPromotionLocked()
	} else {
		m.schedulePromotionLocked(0)
	}
	state := m.stateLocked()
	m.mu.Unlock()

	logging.Info().Bool("suspended", suspended).Msg("Notification emission state changed")
	m.publish(events.QueueStateChanged, state)
}

// UpdateConfig applies cfg. Shrinking MaxSize drops the oldest queued
// events through the overflow policy.
func (m *Manager) UpdateConfig(cfg Config) {
	cfg = cfg.withDefaults()
	m.mu.Lock()
	m.cfg = cfg
	m.seen.Resize(cfg.DedupCapacity)
	evicted := m.trimLocked(cfg.MaxSize)
	state := m.stateLocked()
	m.mu.Unlock()

	m.overflowed(evicted)
	logging.Info().Int("max_size", cfg.MaxSize).Msg("Queue configuration updated")
	m.publish(events.QueueStateChanged, state)
}

// State returns a snapshot of the queue.
func (m *Manager) State() models.QueueState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() models.QueueState {
	s := models.QueueState{
		QueuedNotifications: make([]models.ChallengeCompletionEvent, len(m.queued)),
		IsDisplaying:        m.current != nil,
		MaxQueueSize:        m.cfg.MaxSize,
		QueueSize:           len(m.queued),
		Suspended:           m.suspended,
	}
	copy(s.QueuedNotifications, m.queued)
	if m.current != nil {
		cur := *m.current
		s.CurrentNotification = &cur
	}
	return s
}

// trimLocked drops the oldest queued events until at most limit remain.
func (m *Manager) trimLocked(limit int) []models.ChallengeCompletionEvent {
	if limit < 0 {
		limit = 0
	}
	n := len(m.queued) - limit
	if n <= 0 {
		return nil
	}
	evicted := make([]models.ChallengeCompletionEvent, n)
	copy(evicted, m.queued[:n])
	m.queued = append(m.queued[:0:0], m.queued[n:]...)
	return evicted
}

func (m *Manager) overflowed(evicted []models.ChallengeCompletionEvent) {
	for _, ev := range evicted {
		metrics.RecordQueueOutcome("overflow", m.depth())
		logging.Warn().Str("event_id", ev.ID).Int("max_size", m.maxSize()).Msg("Queue full, dropped oldest notification")
		m.publish(events.QueueOverflow, ev)
		m.report(models.NewNotificationError(models.ErrorTypeSystem, models.CodeQueueOverflow, models.SeverityMedium,
			fmt.Sprintf("queue full, dropped event %s", ev.ID), m.clk.Now()))
	}
}

func (m *Manager) schedulePromotionLocked(delay time.Duration) {
	if m.suspended || m.current != nil || m.promotionTimer != nil || len(m.queued) == 0 {
		return
	}
	m.promotionTimer = m.clk.AfterFunc(delay, m.processNext)
}

func (m *Manager) stopPromotionLocked() {
	if m.promotionTimer != nil {
		m.promotionTimer.Stop()
		m.promotionTimer = nil
	}
}

// processNext promotes the head of the queue when idle.
func (m *Manager) processNext() {
	m.mu.Lock()
	m.promotionTimer = nil
	if m.suspended || m.current != nil || len(m.queued) == 0 {
		m.mu.Unlock()
		return
	}
	ev, err := m.promoteLocked()
	if err != nil {
		m.current = nil
		m.schedulePromotionLocked(m.cfg.PromotionDelay)
	}
	depth := len(m.queued)
	state := m.stateLocked()
	m.mu.Unlock()

	if err != nil {
		logging.Error().Err(err).Msg("Notification promotion failed")
		m.report(models.NewNotificationError(models.ErrorTypeSystem, models.CodeQueueProcessingFailed,
			models.SeverityHigh, "notification promotion failed", m.clk.Now()).WithCause(err))
		m.publish(events.QueueStateChanged, state)
		return
	}

	metrics.RecordQueueOutcome("displayed", depth)
	logging.Debug().Str("event_id", ev.ID).Int("queued", depth).Msg("Notification ready")
	m.publish(events.NotificationReady, ev)
	m.publish(events.QueueStateChanged, state)
}

func (m *Manager) promoteLocked() (ev models.ChallengeCompletionEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("promotion panicked: %v", r)
		}
	}()

	head := m.queued[0]
	m.queued = m.queued[1:]
	if m.beforePromote != nil {
		m.beforePromote(head)
	}
	m.current = &head
	return head, nil
}

func (m *Manager) depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queued)
}

func (m *Manager) maxSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.MaxSize
}

func (m *Manager) publish(topic events.Topic, payload interface{}) {
	if m.bus != nil {
		m.bus.Publish(topic, payload)
	}
}

func (m *Manager) report(nerr models.NotificationError) {
	if m.reporter != nil {
		m.reporter.Report(nerr)
	}
}
