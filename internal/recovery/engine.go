// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
	"github.com/tomtom215/cheerboard/internal/models"
)

// ErrTimeout is returned when a recovery action outlives GlobalTimeout.
var ErrTimeout = errors.New("recovery: action timed out")

// StreamController is the part of the stream client the engine drives.
type StreamController interface {
	State() models.ConnectionState
	Retrying() bool
	Connect(ctx context.Context) error
	Disconnect()
}

// QueueController is the part of the delivery queue the engine drives.
type QueueController interface {
	State() models.QueueState
	Clear()
	SetSuspended(bool)
}

// Prober checks upstream reachability.
type Prober interface {
	Probe(ctx context.Context) error
}

// Fallback is the polling substitute for the stream.
type Fallback interface {
	Activate(reason string)
	Active() bool
}

// Outcome is the result of handling one error.
type Outcome string

const (
	// OutcomeRecorded: the error is not recoverable and was only recorded.
	OutcomeRecorded Outcome = "recorded"
	OutcomeRecovered Outcome = "recovered"
	// OutcomeExhausted: the retry budget for the error's context is spent.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeSuperseded: ForceRecovery ran while the recovery was in flight.
	OutcomeSuperseded Outcome = "superseded"
	OutcomeCancelled  Outcome = "cancelled"
	// OutcomeUnhandled: no strategy accepted the error.
	OutcomeUnhandled Outcome = "unhandled"
)

// maxContextHistory bounds RecoveryContext.ErrorHistory.
const maxContextHistory = 10

// Config controls an Engine.
type Config struct {
	GlobalTimeout       time.Duration
	MaxGlobalRetries    int
	HistoryLimit        int
	ErrorWindow         time.Duration
	StabilizationWindow time.Duration
}

// ConfigFrom converts the recovery section of the service configuration.
func ConfigFrom(c config.RecoveryConfig) Config {
	return Config{
		GlobalTimeout:       c.GlobalTimeout,
		MaxGlobalRetries:    c.MaxGlobalRetries,
		HistoryLimit:        c.HistoryLimit,
		ErrorWindow:         c.ErrorWindow,
		StabilizationWindow: c.StabilizationWindow,
	}
}

func (c Config) withDefaults() Config {
	if c.GlobalTimeout <= 0 {
		c.GlobalTimeout = 30 * time.Second
	}
	if c.MaxGlobalRetries <= 0 {
		c.MaxGlobalRetries = 5
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
	if c.ErrorWindow <= 0 {
		c.ErrorWindow = time.Minute
	}
	if c.StabilizationWindow <= 0 {
		c.StabilizationWindow = 2 * time.Minute
	}
	return c
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clk = clk }
}

// WithBus publishes recovery and degradation events on bus.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithStream lets the stream strategy restart the client.
func WithStream(s StreamController) Option {
	return func(e *Engine) { e.stream = s }
}

// WithQueue lets emergency mode clear and suspend the queue.
func WithQueue(q QueueController) Option {
	return func(e *Engine) { e.queue = q }
}

// WithProber sets the reachability probe used by the network strategy.
func WithProber(p Prober) Option {
	return func(e *Engine) { e.prober = p }
}

// WithFallback sets the poller activated when the stream is unusable.
func WithFallback(f Fallback) Option {
	return func(e *Engine) { e.fallback = f }
}

// WithStrategies replaces the default strategy list.
func WithStrategies(s ...Strategy) Option {
	return func(e *Engine) { e.strategies = s }
}

// Engine classifies reported faults, retries recoverable ones through an
// ordered strategy list and sheds non-essential behavior as the error rate
// rises.
//
// Degradation over the trailing ErrorWindow:
//
//	any critical error, or more than 10 errors  -> 3 (emergency)
//	more than 2 high errors, or more than 5     -> 2 (critical)
//	more than 2 errors                          -> 1 (warning)
//
// The level only rises when an error is recorded and falls one step per
// error-free StabilizationWindow (see Serve).
//
// Thread Safety: all methods are safe for concurrent use. Strategy actions,
// queue and stream calls and bus publishing happen outside the lock.
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	clk        clock.Clock
	bus        *events.Bus
	stream     StreamController
	queue      QueueController
	prober     Prober
	fallback   Fallback
	strategies []Strategy

	history      []models.NotificationError
	contexts     map[string]*models.RecoveryContext
	level        models.DegradationLevel
	emergency    bool
	lastErrorAt  time.Time
	lastChangeAt time.Time

	// generation is bumped by ForceRecovery; recoveries started under an
	// older generation discard their outcome.
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine at level 0.
func NewEngine(cfg Config, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg.withDefaults(),
		clk:      clock.Real(),
		contexts: make(map[string]*models.RecoveryContext),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategies == nil {
		e.strategies = e.DefaultStrategies()
	}
	metrics.SetDegradationLevel(0)
	return e
}

// Report records nerr and, when recoverable, recovers it in the
// background. Degradation changes are applied before Report returns.
func (e *Engine) Report(nerr models.NotificationError) {
	nerr = e.record(nerr)
	if !nerr.Recoverable {
		return
	}
	if e.ctx.Err() != nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Error().Interface("panic", r).Str("code", nerr.Code).Msg("Recovery goroutine panicked")
			}
		}()
		e.recover(e.ctx, nerr)
	}()
}

// HandleError records nerr and, when recoverable, runs the recovery loop
// to completion.
func (e *Engine) HandleError(ctx context.Context, nerr models.NotificationError) Outcome {
	nerr = e.record(nerr)
	if !nerr.Recoverable {
		return OutcomeRecorded
	}
	return e.recover(ctx, nerr)
}

// record appends nerr to the history and raises the degradation level.
func (e *Engine) record(nerr models.NotificationError) models.NotificationError {
	now := e.clk.Now()
	if nerr.Timestamp.IsZero() {
		nerr.Timestamp = now
	}

	e.mu.Lock()
	e.history = append(e.history, nerr)
	if len(e.history) > e.cfg.HistoryLimit {
		e.history = append(e.history[:0:0], e.history[len(e.history)/2:]...)
	}
	e.lastErrorAt = now
	e.pruneContextsLocked(now)

	prev := e.level
	next := computeLevel(e.history, now, e.cfg.ErrorWindow)
	raised := next > prev
	if raised {
		e.level = next
		e.lastChangeAt = now
	}
	enter := e.level == models.DegradationEmergency && !e.emergency
	if enter {
		e.emergency = true
	}
	e.mu.Unlock()

	metrics.RecordRecoveryError(string(nerr.Type), string(nerr.Severity))
	logEvent := logging.Warn()
	if nerr.Severity.AtLeast(models.SeverityHigh) {
		logEvent = logging.Error()
	}
	logEvent.
		Err(nerr.Cause).
		Str("type", string(nerr.Type)).
		Str("code", nerr.Code).
		Str("severity", string(nerr.Severity)).
		Bool("recoverable", nerr.Recoverable).
		Msg(nerr.Message)

	if raised {
		e.degraded(prev, next, nerr.Code, enter)
	}
	if enter {
		e.enterEmergency(nerr.Code)
	}
	return nerr
}

// pruneContextsLocked forgets contexts whose minute bucket is long gone.
func (e *Engine) pruneContextsLocked(now time.Time) {
	for key, rc := range e.contexts {
		if now.Sub(rc.LastAttemptTime) > 2*e.cfg.ErrorWindow+time.Minute {
			delete(e.contexts, key)
		}
	}
}

func (e *Engine) recover(ctx context.Context, nerr models.NotificationError) Outcome {
	strategy, ok := e.strategyFor(nerr)
	if !ok {
		logging.Warn().Str("code", nerr.Code).Msg("No recovery strategy for error")
		return OutcomeUnhandled
	}

	e.mu.Lock()
	gen := e.generation
	limit := min(strategy.MaxRetries, e.cfg.MaxGlobalRetries)
	e.mu.Unlock()

	key := contextKey(nerr)
	for {
		snap := e.snapshot()
		att, ok, stale := e.beginAttempt(gen, key, nerr, limit, snap)
		if stale {
			return OutcomeSuperseded
		}
		if !ok {
			e.exhausted(strategy, att)
			return OutcomeExhausted
		}

		ev := models.RecoveryEvent{Key: key, Strategy: strategy.Name, Attempt: att.Number, Error: nerr}
		e.publish(events.RecoveryStarted, ev)

		if err := clock.Sleep(ctx, e.clk, strategy.Delay(att.Number-1)); err != nil {
			return OutcomeCancelled
		}
		if e.superseded(gen) {
			return OutcomeSuperseded
		}

		recovered, err := e.run(ctx, strategy, att)
		if e.superseded(gen) {
			metrics.RecordRecoveryAttempt(strategy.Name, "superseded")
			return OutcomeSuperseded
		}
		if recovered {
			e.mu.Lock()
			delete(e.contexts, key)
			e.mu.Unlock()
			metrics.RecordRecoveryAttempt(strategy.Name, "success")
			logging.Info().Str("strategy", strategy.Name).Str("key", key).Int("attempt", att.Number).Msg("Recovery succeeded")
			e.publish(events.RecoverySucceeded, ev)
			return OutcomeRecovered
		}

		result := "failure"
		if errors.Is(err, ErrTimeout) {
			result = "timeout"
		}
		metrics.RecordRecoveryAttempt(strategy.Name, result)
		if err != nil {
			ev.Reason = err.Error()
		}
		logging.Warn().Err(err).Str("strategy", strategy.Name).Str("key", key).Int("attempt", att.Number).Msg("Recovery attempt failed")
		e.publish(events.RecoveryAttemptFailed, ev)

		if ctx.Err() != nil {
			return OutcomeCancelled
		}
	}
}

func (e *Engine) strategyFor(nerr models.NotificationError) (Strategy, bool) {
	for _, s := range e.strategies {
		if s.CanHandle != nil && s.CanHandle(nerr) {
			return s, true
		}
	}
	return Strategy{}, false
}

type systemSnapshot struct {
	streamConnected bool
	queueSize       int
}

func (e *Engine) snapshot() systemSnapshot {
	var s systemSnapshot
	if e.stream != nil {
		s.streamConnected = e.stream.State().IsConnected()
	}
	if e.queue != nil {
		s.queueSize = e.queue.State().QueueSize
	}
	return s
}

// beginAttempt claims the next attempt for key. ok is false once the
// budget is spent; stale is true when ForceRecovery ran since gen.
func (e *Engine) beginAttempt(gen uint64, key string, nerr models.NotificationError, limit int, snap systemSnapshot) (att Attempt, ok, stale bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return Attempt{}, false, true
	}
	rc := e.contexts[key]
	if rc == nil {
		rc = &models.RecoveryContext{Key: key}
		e.contexts[key] = rc
	}
	rc.StreamConnected = snap.streamConnected
	rc.QueueSize = snap.queueSize

	if rc.AttemptCount >= limit {
		return Attempt{Error: nerr, Context: copyContext(rc), Number: rc.AttemptCount}, false, false
	}

	rc.AttemptCount++
	rc.LastAttemptTime = e.clk.Now()
	rc.ErrorHistory = append(rc.ErrorHistory, nerr)
	if len(rc.ErrorHistory) > maxContextHistory {
		rc.ErrorHistory = rc.ErrorHistory[len(rc.ErrorHistory)-maxContextHistory:]
	}
	return Attempt{
		Error:   nerr,
		Context: copyContext(rc),
		Number:  rc.AttemptCount,
		Final:   rc.AttemptCount >= limit,
	}, true, false
}

func copyContext(rc *models.RecoveryContext) models.RecoveryContext {
	c := *rc
	c.ErrorHistory = append([]models.NotificationError(nil), rc.ErrorHistory...)
	return c
}

func (e *Engine) exhausted(s Strategy, att Attempt) {
	metrics.RecordRecoveryAttempt(s.Name, "exhausted")
	logging.Error().
		Str("strategy", s.Name).
		Str("key", att.Context.Key).
		Int("attempts", att.Number).
		Msg("Recovery failed, retry budget exhausted")
	e.publish(events.RecoveryFailed, models.RecoveryEvent{
		Key:      att.Context.Key,
		Strategy: s.Name,
		Attempt:  att.Number,
		Error:    att.Error,
		Reason:   "retry budget exhausted",
	})
}

func (e *Engine) superseded(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen != e.generation
}

type actionResult struct {
	ok  bool
	err error
}

// run executes the strategy action, racing it against GlobalTimeout.
func (e *Engine) run(ctx context.Context, s Strategy, att Attempt) (bool, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan actionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- actionResult{err: fmt.Errorf("recovery action %s panicked: %v", s.Name, r)}
			}
		}()
		ok, err := s.Recover(actx, att)
		done <- actionResult{ok: ok, err: err}
	}()

	expired := make(chan struct{})
	timer := e.clk.AfterFunc(e.cfg.GlobalTimeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-expired:
		return false, ErrTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// contextKey groups errors of the same type and code within one minute.
func contextKey(nerr models.NotificationError) string {
	bucket := nerr.Timestamp.Unix() / 60
	return fmt.Sprintf("%s:%s:%d", nerr.Type, nerr.Code, bucket)
}

// ForceRecovery resets the engine to level 0: history and contexts are
// dropped, emergency mode ends and in-flight recoveries discard their
// outcome.
func (e *Engine) ForceRecovery() {
	now := e.clk.Now()
	e.mu.Lock()
	prev := e.level
	wasEmergency := e.emergency
	e.generation++
	e.level = models.DegradationNormal
	e.emergency = false
	e.history = nil
	e.contexts = make(map[string]*models.RecoveryContext)
	e.lastChangeAt = now
	e.mu.Unlock()

	logging.Info().Str("previous_level", prev.String()).Msg("Forced recovery, degradation reset")
	metrics.SetDegradationLevel(0)
	if wasEmergency {
		e.exitEmergency()
	}
	e.publish(events.SystemStabilized, models.DegradationEvent{
		Level:             models.DegradationNormal,
		LevelName:         models.DegradationNormal.String(),
		PreviousLevel:     prev,
		AnimationsEnabled: true,
		Reason:            "forced",
	})
}

// Level returns the current degradation level.
func (e *Engine) Level() models.DegradationLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Status returns a snapshot for the API.
func (e *Engine) Status() models.RecoveryStatus {
	e.mu.Lock()
	s := models.RecoveryStatus{
		Level:             e.level,
		LevelName:         e.level.String(),
		EmergencyMode:     e.emergency,
		ActiveContexts:    len(e.contexts),
		HistorySize:       len(e.history),
		AnimationsEnabled: e.level.AnimationsEnabled(),
	}
	if !e.lastErrorAt.IsZero() {
		t := e.lastErrorAt
		s.LastErrorAt = &t
	}
	recent := e.history
	if len(recent) > maxContextHistory {
		recent = recent[len(recent)-maxContextHistory:]
	}
	s.RecentErrors = append([]models.NotificationError{}, recent...)
	e.mu.Unlock()

	if e.fallback != nil {
		s.FallbackActive = e.fallback.Active()
	}
	return s
}

// Serve runs the stabilization loop until ctx is done, then cancels
// background recoveries and waits for them.
func (e *Engine) Serve(ctx context.Context) error {
	interval := e.cfg.StabilizationWindow / 12
	if interval < time.Second {
		interval = time.Second
	}
	ticker := e.clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Close()
			return ctx.Err()
		case <-ticker.C():
			e.stabilize()
		}
	}
}

// Close cancels background recoveries and waits for them to return.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// String implements fmt.Stringer for the supervisor.
func (e *Engine) String() string {
	return "recovery-engine"
}

func (e *Engine) publish(topic events.Topic, payload interface{}) {
	if e.bus != nil {
		e.bus.Publish(topic, payload)
	}
}

func (e *Engine) activateFallback(reason string) {
	if e.fallback == nil || e.fallback.Active() {
		return
	}
	safely("fallback activation", func() { e.fallback.Activate(reason) })
}

// safely runs fn, logging instead of propagating a panic.
func safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("operation", what).Msg("Recovery side effect panicked")
		}
	}()
	fn()
}
