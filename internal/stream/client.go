// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
	"github.com/tomtom215/cheerboard/internal/models"
)

var (
	// ErrHeartbeatTimeout is the cause recorded when no traffic arrives
	// within the heartbeat timeout.
	ErrHeartbeatTimeout = errors.New("no traffic within heartbeat timeout")

	// ErrDisconnected is returned by Connect when Disconnect wins a race
	// with an in-flight dial.
	ErrDisconnected = errors.New("stream client disconnected")
)

// Reporter receives faults raised by the client.
type Reporter interface {
	Report(models.NotificationError)
}

// Config controls a Client.
type Config struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	HeartbeatTimeout     time.Duration
	ConnectTimeout       time.Duration
}

// ConfigFrom converts the stream section of the service configuration.
func ConfigFrom(c config.StreamConfig) Config {
	return Config{
		URL:                  c.URL,
		ReconnectInterval:    c.ReconnectInterval,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		HeartbeatTimeout:     c.HeartbeatTimeout,
		ConnectTimeout:       c.ConnectTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 60 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clk = clk }
}

// WithJitter replaces the random reconnect jitter source.
func WithJitter(f func() time.Duration) Option {
	return func(c *Client) { c.jitter = f }
}

// WithBus publishes connection-state-changed events on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Client) { c.bus = bus }
}

// WithReporter routes faults to r.
func WithReporter(r Reporter) Option {
	return func(c *Client) { c.reporter = r }
}

// Client owns one logical push-stream connection.
//
// State machine:
//
//	disconnected -> connecting -> connected | error
//	connected -> error          (transport error or heartbeat timeout)
//	error -> connecting         (scheduled reconnect)
//	any -> disconnected         (Disconnect, or reconnect budget exhausted)
//
// ReconnectAttempts counts failures since the last successful connection.
// It is incremented before the retry decision and the client stops at
// exactly MaxReconnectAttempts, so it never exceeds the maximum.
//
// Every connection attempt gets a new epoch. Reader errors, heartbeat
// expiries and reconnect timers carry the epoch they were created under and
// are ignored once it is stale.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	mu       sync.Mutex
	cfg      Config
	dialer   Dialer
	clk      clock.Clock
	jitter   func() time.Duration
	bus      *events.Bus
	reporter Reporter

	state          models.ConnectionState
	conn           Conn
	epoch          uint64
	reconnectTimer clock.Timer
	heartbeatTimer clock.Timer
	baseCtx        context.Context

	handlerMu   sync.RWMutex
	handlers    map[uint64]func(models.ChallengeCompletionEvent)
	nextHandler uint64
}

// NewClient creates a disconnected client. Call Connect or run Serve.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:      cfg,
		dialer:   NewWebSocketDialer(),
		clk:      clock.Real(),
		jitter:   randomJitter,
		handlers: make(map[uint64]func(models.ChallengeCompletionEvent)),
		baseCtx:  context.Background(),
		state: models.ConnectionState{
			Status:               models.StatusDisconnected,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnEvent registers handler for validated completion events and returns a
// function that removes it. Handlers run on the reader goroutine; a
// panicking handler is reported and does not affect the others.
func (c *Client) OnEvent(handler func(models.ChallengeCompletionEvent)) (cancel func()) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.nextHandler++
	id := c.nextHandler
	c.handlers[id] = handler
	return func() {
		c.handlerMu.Lock()
		defer c.handlerMu.Unlock()
		delete(c.handlers, id)
	}
}

// State returns a snapshot of the connection state.
func (c *Client) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() models.ConnectionState {
	s := c.state
	if s.LastConnected != nil {
		t := *s.LastConnected
		s.LastConnected = &t
	}
	return s
}

// Retrying reports whether a reconnect is scheduled. The recovery engine
// leaves the client alone while it is still working through its own
// backoff.
func (c *Client) Retrying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectTimer != nil
}

// UpdateConfig applies cfg to the next connection attempt.
func (c *Client) UpdateConfig(cfg Config) {
	cfg = cfg.withDefaults()
	c.mu.Lock()
	c.cfg = cfg
	c.state.MaxReconnectAttempts = cfg.MaxReconnectAttempts
	if c.state.ReconnectAttempts > cfg.MaxReconnectAttempts {
		c.state.ReconnectAttempts = cfg.MaxReconnectAttempts
	}
	c.mu.Unlock()

	logging.Info().
		Str("url", cfg.URL).
		Int("max_reconnect_attempts", cfg.MaxReconnectAttempts).
		Msg("Stream client configuration updated")
}

// Connect opens the stream. It returns nil immediately when already
// connecting or connected. The dial is bounded by ConnectTimeout; on
// failure the error path runs (attempt accounting, retry scheduling,
// reporting) and the dial error is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Status == models.StatusConnecting || c.state.Status == models.StatusConnected {
		c.mu.Unlock()
		return nil
	}
	c.stopReconnectLocked()
	c.epoch++
	epoch := c.epoch
	cfg := c.cfg
	c.state.Status = models.StatusConnecting
	c.state.Error = ""
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.publishState(snapshot)

	start := c.clk.Now()
	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	conn, err := c.dialer.Dial(dialCtx, cfg.URL)
	cancel()

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrDisconnected
	}
	if err != nil {
		c.mu.Unlock()
		code := models.CodeConnectionFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = models.CodeConnectionTimeout
		}
		c.handleFailure(epoch, code, err)
		return fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	now := c.clk.Now()
	c.conn = conn
	c.state.Status = models.StatusConnected
	c.state.LastConnected = &now
	c.state.ReconnectAttempts = 0
	c.state.Error = ""
	c.armHeartbeatLocked(epoch)
	snapshot = c.snapshotLocked()
	c.mu.Unlock()

	metrics.StreamConnectDuration.Observe(now.Sub(start).Seconds())
	logging.Info().Str("url", cfg.URL).Msg("Stream connected")
	c.publishState(snapshot)

	go c.readLoop(epoch, conn)
	return nil
}

// Disconnect cancels pending reconnect and heartbeat timers, closes the
// transport and resets the attempt counter. Safe to call at any time.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.epoch++
	c.stopReconnectLocked()
	c.stopHeartbeatLocked()
	c.closeConnLocked()
	changed := c.state.Status != models.StatusDisconnected || c.state.ReconnectAttempts != 0
	c.state.Status = models.StatusDisconnected
	c.state.ReconnectAttempts = 0
	c.state.Error = ""
	c.state.ConnectionID = ""
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		logging.Info().Msg("Stream disconnected")
		c.publishState(snapshot)
	}
}

// Serve connects and keeps the client running until ctx is cancelled. It
// implements suture.Service. Reconnects after failures are driven by the
// client's own backoff and, once that is exhausted, by the recovery engine.
func (c *Client) Serve(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	if err := c.Connect(ctx); err != nil {
		logging.Warn().Err(err).Msg("Initial stream connection failed")
	}

	<-ctx.Done()
	c.Disconnect()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (c *Client) String() string {
	return "stream-client"
}

// handleFailure runs the error path for a failure observed under epoch.
func (c *Client) handleFailure(epoch uint64, code string, cause error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.epoch++
	c.stopHeartbeatLocked()
	c.stopReconnectLocked()
	c.closeConnLocked()

	c.state.ReconnectAttempts++
	attempts := c.state.ReconnectAttempts
	maxAttempts := c.cfg.MaxReconnectAttempts
	c.state.Status = models.StatusError
	c.state.Error = cause.Error()
	errSnapshot := c.snapshotLocked()

	var delay time.Duration
	var final *models.ConnectionState
	if attempts < maxAttempts {
		delay = ReconnectDelay(c.cfg.ReconnectInterval, attempts, c.jitter())
		next := c.epoch
		c.reconnectTimer = c.clk.AfterFunc(delay, func() { c.reconnect(next) })
	} else {
		c.state.Status = models.StatusDisconnected
		s := c.snapshotLocked()
		final = &s
	}
	c.mu.Unlock()

	now := c.clk.Now()
	logging.Warn().
		Err(cause).
		Str("code", code).
		Int("attempts", attempts).
		Int("max_attempts", maxAttempts).
		Dur("retry_in", delay).
		Msg("Stream connection error")

	c.publishState(errSnapshot)
	c.report(models.NewNotificationError(models.ErrorTypeStream, code, models.SeverityMedium,
		"stream connection error", now).WithCause(cause))

	if final != nil {
		c.publishState(*final)
		c.report(models.NewNotificationError(models.ErrorTypeStream, models.CodeMaxReconnectAttemptsExceeded,
			models.SeverityHigh, fmt.Sprintf("gave up after %d reconnect attempts", attempts), now).WithCause(cause))
	}
}

func (c *Client) reconnect(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.state.Status != models.StatusError {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	ctx := c.baseCtx
	c.mu.Unlock()

	if err := c.Connect(ctx); err != nil {
		logging.Debug().Err(err).Msg("Scheduled stream reconnect failed")
	}
}

func (c *Client) readLoop(epoch uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleFailure(epoch, models.CodeConnectionLost, err)
			return
		}
		if !c.touch(epoch) {
			return
		}
		c.handleMessage(data)
	}
}

// touch re-arms the heartbeat for a live epoch.
func (c *Client) touch(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.armHeartbeatLocked(epoch)
	return true
}

func (c *Client) handleMessage(data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		metrics.StreamEventsDropped.WithLabelValues("invalid_json").Inc()
		logging.Warn().Err(err).Int("bytes", len(data)).Msg("Dropping malformed stream message")
		c.report(models.NewNotificationError(models.ErrorTypeValidation, models.CodeInvalidJSON,
			models.SeverityMedium, "malformed stream message", c.clk.Now()).WithCause(err))
		return
	}
	metrics.RecordStreamMessage(msg.Type)

	switch msg.Type {
	case models.MessageTypeHeartbeat:
		// liveness only
	case models.MessageTypeConnected:
		c.recordConnectionID(msg)
	case models.MessageTypeChallengeCompleted:
		c.handleCompletion(msg)
	default:
		logging.Debug().Str("type", msg.Type).Msg("Ignoring unknown stream message type")
	}
}

func (c *Client) recordConnectionID(msg models.StreamMessage) {
	id := msg.ConnectionID
	if len(msg.Data) > 0 {
		var data models.ConnectedData
		if err := json.Unmarshal(msg.Data, &data); err == nil && data.ConnectionID != "" {
			id = data.ConnectionID
		}
	}
	if id == "" {
		return
	}

	c.mu.Lock()
	c.state.ConnectionID = id
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	logging.Info().Str("connection_id", id).Msg("Stream session established")
	c.publishState(snapshot)
}

func (c *Client) handleCompletion(msg models.StreamMessage) {
	ev, issues, ok := ParseCompletion(msg, c.clk.Now())
	if !ok {
		metrics.StreamEventsDropped.WithLabelValues("validation").Inc()
		logging.Warn().
			Str("event_id", msg.ID).
			Interface("issues", issues).
			Msg("Dropping invalid challenge completion")
		c.report(models.NewNotificationError(models.ErrorTypeValidation, models.CodeInvalidEvent,
			highestSeverity(issues), summarize(issues), c.clk.Now()))
		return
	}
	if len(issues) > 0 {
		logging.Warn().
			Str("event_id", ev.ID).
			Interface("issues", issues).
			Msg("Forwarding challenge completion with validation warnings")
	}
	c.emit(ev)
}

func (c *Client) emit(ev models.ChallengeCompletionEvent) {
	c.handlerMu.RLock()
	handlers := make([]func(models.ChallengeCompletionEvent), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.handlerMu.RUnlock()

	for _, h := range handlers {
		c.invoke(h, ev)
	}
}

func (c *Client) invoke(h func(models.ChallengeCompletionEvent), ev models.ChallengeCompletionEvent) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("event_id", ev.ID).Msg("Stream event handler panicked")
			c.report(models.NewNotificationError(models.ErrorTypeProcessing, models.CodeHandlerPanic,
				models.SeverityMedium, fmt.Sprintf("event handler panicked: %v", r), c.clk.Now()))
		}
	}()
	h(ev)
}

func (c *Client) armHeartbeatLocked(epoch uint64) {
	c.stopHeartbeatLocked()
	c.heartbeatTimer = c.clk.AfterFunc(c.cfg.HeartbeatTimeout, func() {
		c.handleFailure(epoch, models.CodeHeartbeatTimeout, ErrHeartbeatTimeout)
	})
}

func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatTimer != nil {
		c.heartbeatTimer.Stop()
		c.heartbeatTimer = nil
	}
}

func (c *Client) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) closeConnLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("Stream: failed to close transport")
	}
	c.conn = nil
}

func (c *Client) publishState(s models.ConnectionState) {
	metrics.RecordConnectionState(string(s.Status), s.ReconnectAttempts)
	if c.bus != nil {
		c.bus.Publish(events.ConnectionStateChanged, s)
	}
}

func (c *Client) report(nerr models.NotificationError) {
	if c.reporter != nil {
		c.reporter.Report(nerr)
	}
}
