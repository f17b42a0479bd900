// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package poller

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cheerboard/internal/cache"
	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/stream"
)

// activationLookback is how far back the first poll after activation
// reaches. The queue's dedup absorbs overlap with events already streamed.
const activationLookback = 5 * time.Minute

// completionNamespace seeds synthetic ids for records without one, so a
// record polled twice gets the same id.
var completionNamespace = uuid.MustParse("6f1c3c5e-8f7a-4d53-9a53-2c1b7b6f0c11")

// Reporter receives faults raised by the poller.
type Reporter interface {
	Report(models.NotificationError)
}

// Config controls a Poller.
type Config struct {
	Client   ClientConfig
	Interval time.Duration
}

// ConfigFrom converts the poller section of the service configuration.
func ConfigFrom(c config.PollerConfig) Config {
	return Config{
		Client: ClientConfig{
			BaseURL:           c.BaseURL,
			Timeout:           c.Timeout,
			RequestsPerSecond: c.RequestsPerSecond,
			MaxRetries:        c.MaxRetries,
		},
		Interval: c.Interval,
	}
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(p *Poller) { p.clk = clk }
}

// WithReporter routes faults to r.
func WithReporter(r Reporter) Option {
	return func(p *Poller) { p.reporter = r }
}

// WithNameCache sets the cache used for player and challenge names.
func WithNameCache(c cache.Store[Profile]) Option {
	return func(p *Poller) { p.names = c }
}

// Poller substitutes REST polling for the push stream while active. It is
// idle until Activate and goes idle again on Deactivate.
//
// Thread Safety: all methods are safe for concurrent use.
type Poller struct {
	client   *Client
	interval time.Duration
	clk      clock.Clock
	reporter Reporter
	names    cache.Store[Profile]

	mu     sync.Mutex
	active bool
	since  time.Time
	sink   func(models.ChallengeCompletionEvent)
	wake   chan struct{}
}

// New creates an inactive poller.
func New(cfg Config, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	p := &Poller{
		client:   NewClient(cfg.Client),
		interval: cfg.Interval,
		clk:      clock.Real(),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.names == nil {
		p.names = cache.NewBounded[Profile](cache.Config{Name: "names", Clock: p.clk})
	}
	return p
}

// OnEvent sets the destination for polled events.
func (p *Poller) OnEvent(sink func(models.ChallengeCompletionEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// Activate starts polling. Activating an active poller is a no-op.
func (p *Poller) Activate(reason string) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	if p.since.IsZero() {
		p.since = p.clk.Now().Add(-activationLookback)
	}
	p.mu.Unlock()

	metrics.SetFallbackPolling(true)
	logging.Warn().Str("reason", reason).Dur("interval", p.interval).Msg("Fallback polling activated")
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Deactivate stops polling after any poll in progress.
func (p *Poller) Deactivate() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.mu.Unlock()

	metrics.SetFallbackPolling(false)
	logging.Info().Msg("Fallback polling deactivated")
}

// Active reports whether polling is on.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Serve polls every interval while active until ctx is done.
func (p *Poller) Serve(ctx context.Context) error {
	ticker := p.clk.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		case <-ticker.C():
		}
		if p.Active() {
			p.Poll(ctx)
		}
	}
}

// String implements fmt.Stringer for the supervisor.
func (p *Poller) String() string {
	return "fallback-poller"
}

// Poll fetches completions since the last poll and forwards them. It
// returns the number of events forwarded.
func (p *Poller) Poll(ctx context.Context) int {
	p.mu.Lock()
	since := p.since
	sink := p.sink
	p.mu.Unlock()
	if since.IsZero() {
		since = p.clk.Now().Add(-activationLookback)
	}

	records, err := p.client.Completions(ctx, since)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn().Err(err).Msg("Fallback poll failed")
			p.report(models.NewNotificationError(models.ErrorTypeNetwork, models.CodePollFailed,
				models.SeverityMedium, "fallback poll failed", p.clk.Now()).WithCause(err))
		}
		return 0
	}

	now := p.clk.Now()
	latest := since
	forwarded := 0
	for _, raw := range records {
		ev, ok := p.parse(raw, now)
		if !ok {
			continue
		}
		p.enrich(ctx, &ev)
		if ev.CompletedAt.After(latest) {
			latest = ev.CompletedAt
		}
		if sink != nil {
			sink(ev)
		}
		forwarded++
	}

	p.mu.Lock()
	if latest.After(p.since) {
		p.since = latest
	}
	p.mu.Unlock()

	logging.Debug().Int("records", len(records)).Int("forwarded", forwarded).Msg("Fallback poll complete")
	return forwarded
}

type recordID struct {
	ID          string      `json:"id"`
	PlayerID    interface{} `json:"playerId"`
	ChallengeID interface{} `json:"challengeId"`
	CompletedAt interface{} `json:"completedAt"`
}

// parse validates one record the same way as a streamed completion.
func (p *Poller) parse(raw json.RawMessage, now time.Time) (models.ChallengeCompletionEvent, bool) {
	var rid recordID
	if err := json.Unmarshal(raw, &rid); err != nil {
		logging.Warn().Err(err).Msg("Skipping undecodable polled record")
		return models.ChallengeCompletionEvent{}, false
	}
	id := rid.ID
	if id == "" {
		seed, _ := json.Marshal([]interface{}{rid.PlayerID, rid.ChallengeID, rid.CompletedAt})
		id = uuid.NewSHA1(completionNamespace, seed).String()
	}

	msg := models.StreamMessage{
		ID:        id,
		Type:      models.MessageTypeChallengeCompleted,
		Data:      raw,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
	ev, issues, ok := stream.ParseCompletion(msg, now)
	if !ok {
		logging.Warn().Str("event_id", id).Interface("issues", issues).Msg("Skipping invalid polled record")
		return ev, false
	}
	return ev, true
}

// enrich replaces id fallbacks with names from the API. Lookup failures
// leave the fallback in place.
func (p *Poller) enrich(ctx context.Context, ev *models.ChallengeCompletionEvent) {
	if ev.PlayerName == ev.PlayerID {
		if prof, err := p.names.GetOrLoad(ctx, cache.GenerateKey("player", ev.PlayerID), func(ctx context.Context) (Profile, error) {
			return p.client.Player(ctx, ev.PlayerID)
		}); err == nil && prof.Name != "" {
			ev.PlayerName = prof.Name
		}
	}
	if ev.ChallengeName == ev.ChallengeID {
		if prof, err := p.names.GetOrLoad(ctx, cache.GenerateKey("challenge", ev.ChallengeID), func(ctx context.Context) (Profile, error) {
			return p.client.Challenge(ctx, ev.ChallengeID)
		}); err == nil && prof.Name != "" {
			ev.ChallengeName = prof.Name
		}
	}
}

func (p *Poller) report(nerr models.NotificationError) {
	if p.reporter != nil {
		p.reporter.Report(nerr)
	}
}
