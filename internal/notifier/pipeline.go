// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package notifier

import (
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/cheerboard/internal/api"
	"github.com/tomtom215/cheerboard/internal/cache"
	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/poller"
	"github.com/tomtom215/cheerboard/internal/queue"
	"github.com/tomtom215/cheerboard/internal/recovery"
	"github.com/tomtom215/cheerboard/internal/relay"
	"github.com/tomtom215/cheerboard/internal/stream"
	"github.com/tomtom215/cheerboard/internal/supervisor"
	"github.com/tomtom215/cheerboard/internal/websocket"
)

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	clk            clock.Clock
	dialer         stream.Dialer
	relayPublisher message.Publisher
}

// WithClock replaces the real clock in every component.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// WithStreamDialer replaces the stream client's websocket dialer.
func WithStreamDialer(d stream.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithRelayPublisher makes the relay publish to pub instead of the
// configured backend.
func WithRelayPublisher(pub message.Publisher) Option {
	return func(o *options) { o.relayPublisher = pub }
}

// Pipeline owns the kiosk's components and the connections between them.
//
// Events flow stream / poller / webhook -> queue -> bus -> hub and relay.
// Every component reports faults to the recovery engine, which drives the
// stream, the queue and the poller in turn.
//
// Poller is nil without poller.base_url and Relay is nil unless
// relay.enabled is set.
type Pipeline struct {
	cfg *config.Manager
	clk clock.Clock

	Bus      *events.Bus
	Stream   *stream.Client
	Queue    *queue.Manager
	Recovery *recovery.Engine
	Poller   *poller.Poller
	Names    *cache.Bounded[poller.Profile]
	Hub      *websocket.Hub
	Relay    *relay.Relay

	closeOnce sync.Once
	detach    []func()
}

// New builds and connects every component. Nothing runs until the
// pipeline's services are supervised (see Supervise).
func New(mgr *config.Manager, opts ...Option) (*Pipeline, error) {
	o := options{clk: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := mgr.Get()

	p := &Pipeline{
		cfg: mgr,
		clk: o.clk,
		Bus: events.NewBus(o.clk.Now),
	}

	p.Queue = queue.NewManager(queue.ConfigFrom(cfg.Queue),
		queue.WithClock(o.clk),
		queue.WithBus(p.Bus),
		queue.WithReporter(p),
	)

	streamOpts := []stream.Option{
		stream.WithClock(o.clk),
		stream.WithBus(p.Bus),
		stream.WithReporter(p),
	}
	if o.dialer != nil {
		streamOpts = append(streamOpts, stream.WithDialer(o.dialer))
	}
	p.Stream = stream.NewClient(stream.ConfigFrom(cfg.Stream), streamOpts...)
	p.detach = append(p.detach, p.Stream.OnEvent(func(ev models.ChallengeCompletionEvent) {
		p.Ingest(ev)
	}))

	p.Names = cache.NewBounded[poller.Profile](cache.Config{
		Name:            "names",
		MaxSizeBytes:    cfg.Cache.MaxSizeBytes(),
		MaxEntries:      cfg.Cache.MaxEntries,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Clock:           o.clk,
	})

	engineOpts := []recovery.Option{
		recovery.WithClock(o.clk),
		recovery.WithBus(p.Bus),
		recovery.WithStream(p.Stream),
		recovery.WithQueue(p.Queue),
	}
	if url := cfg.EffectiveProbeURL(); url != "" {
		engineOpts = append(engineOpts, recovery.WithProber(recovery.NewHTTPProber(url, cfg.Recovery.ProbeTimeout)))
	}
	if cfg.Poller.BaseURL != "" {
		p.Poller = poller.New(poller.ConfigFrom(cfg.Poller),
			poller.WithClock(o.clk),
			poller.WithReporter(p),
			poller.WithNameCache(p.Names),
		)
		p.Poller.OnEvent(func(ev models.ChallengeCompletionEvent) { p.Ingest(ev) })
		engineOpts = append(engineOpts, recovery.WithFallback(p.Poller))
		p.detach = append(p.detach, p.Bus.Subscribe(events.ConnectionStateChanged, p.onConnectionState))
	}
	p.Recovery = recovery.NewEngine(recovery.ConfigFrom(cfg.Recovery), engineOpts...)

	p.Hub = websocket.NewHub(
		websocket.WithSnapshot(p.Snapshot),
		websocket.WithDismissHandler(p.Dismiss),
	)
	p.detach = append(p.detach, p.Hub.Attach(p.Bus))

	if cfg.Relay.Enabled {
		var relayOpts []relay.Option
		if o.relayPublisher != nil {
			relayOpts = append(relayOpts, relay.WithPublisher(o.relayPublisher))
		}
		r, err := relay.New(relay.ConfigFrom(cfg.Relay), relayOpts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create relay: %w", err)
		}
		p.Relay = r
		p.detach = append(p.detach, r.Attach(p.Bus))
	}

	mgr.Subscribe(p.applyConfig)

	logging.Info().
		Str("stream_url", cfg.Stream.URL).
		Bool("fallback_polling", p.Poller != nil).
		Bool("relay", p.Relay != nil).
		Int("queue_max_size", cfg.Queue.MaxSize).
		Msg("Notification pipeline created")
	return p, nil
}

// Report forwards faults from the stream, the queue and the poller to the
// recovery engine.
func (p *Pipeline) Report(nerr models.NotificationError) {
	if p.Recovery != nil {
		p.Recovery.Report(nerr)
	}
}

// Ingest hands a validated event to the queue. It reports whether the
// event was admitted.
func (p *Pipeline) Ingest(ev models.ChallengeCompletionEvent) bool {
	return p.Queue.Enqueue(ev)
}

// Dismiss dismisses the current notification, or the one with id if it
// is current.
func (p *Pipeline) Dismiss(id string) bool {
	if id == "" {
		return p.Queue.DismissCurrent()
	}
	return p.Queue.DismissByID(id)
}

// Snapshot returns the combined state sent to newly joined displays.
func (p *Pipeline) Snapshot() models.Snapshot {
	return models.Snapshot{
		Queue:       p.Queue.State(),
		Connection:  p.Stream.State(),
		Recovery:    p.Recovery.Status(),
		GeneratedAt: p.clk.Now(),
	}
}

// CacheStats returns the statistics of every named cache.
func (p *Pipeline) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{"names": p.Names.Stats()}
}

// Handler builds the HTTP handler over the pipeline.
func (p *Pipeline) Handler() *api.Handler {
	deps := api.Deps{
		Queue:      p.Queue,
		Stream:     p.Stream,
		Recovery:   p.Recovery,
		Ingest:     p.Ingest,
		CacheStats: p.CacheStats,
		Hub:        p.Hub,
		Clock:      p.clk,
	}
	if p.Poller != nil {
		deps.Fallback = p.Poller
	}
	return api.NewHandler(p.cfg.Get, deps)
}

// Supervise adds the pipeline's long-running components to tree.
func (p *Pipeline) Supervise(tree *supervisor.SupervisorTree) {
	tree.AddIngestService(p.Stream)
	tree.AddIngestService(p.Recovery)
	tree.AddIngestService(p.Names)
	if p.Poller != nil {
		tree.AddIngestService(p.Poller)
	}

	tree.AddDeliveryService(p.Hub)
	if p.Relay != nil {
		tree.AddDeliveryService(p.Relay)
	}
}

// Close detaches the bus subscribers and releases the relay publisher.
// Supervised components stop with the tree's context.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		for _, d := range p.detach {
			d()
		}
		if p.Relay != nil {
			if err := p.Relay.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close relay")
			}
		}
	})
}

// onConnectionState turns fallback polling off once the stream delivers
// again. Events polled during the overlap are absorbed by queue dedup.
func (p *Pipeline) onConnectionState(ev events.Event) {
	state, ok := ev.Payload.(models.ConnectionState)
	if !ok || !state.IsConnected() {
		return
	}
	if p.Poller.Active() {
		p.Poller.Deactivate()
	}
}

// applyConfig pushes a reloaded configuration into the components that
// support it. Recovery, cache, poller and relay settings need a restart.
func (p *Pipeline) applyConfig(cfg *config.Config) {
	p.Stream.UpdateConfig(stream.ConfigFrom(cfg.Stream))
	p.Queue.UpdateConfig(queue.ConfigFrom(cfg.Queue))
}
