// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/cheerboard/internal/breaker"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/metrics"
)

// MetadataEventType is the message metadata key holding the event name.
const MetadataEventType = "event_type"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("relay is closed")

// Config controls a Relay.
type Config struct {
	// NATSURL selects the NATS backend. Empty uses an in-process channel.
	NATSURL     string
	TopicPrefix string

	// Buffer is the number of events held while waiting to be published.
	Buffer int

	MaxReconnects int
	ReconnectWait time.Duration
}

// ConfigFrom converts the relay section of the service configuration.
func ConfigFrom(c config.RelayConfig) Config {
	return Config{NATSURL: c.NATSURL, TopicPrefix: c.TopicPrefix}
}

func (c Config) withDefaults() Config {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "cheerboard"
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	return c
}

// Option configures a Relay.
type Option func(*Relay)

// WithPublisher uses pub instead of building one from the config.
func WithPublisher(pub message.Publisher) Option {
	return func(r *Relay) { r.publisher = pub }
}

// Envelope is the body of every relayed message.
type Envelope struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

// Relay forwards pipeline events to a watermill publisher under
// <prefix>.<event-name> topics.
//
// Thread Safety: all methods are safe for concurrent use.
type Relay struct {
	publisher message.Publisher
	prefix    string
	cb        *breaker.Breaker[struct{}]
	pending   chan events.Event

	mu     sync.RWMutex
	closed bool
}

// New creates a relay. Without WithPublisher it connects to NATS when
// NATSURL is set and otherwise publishes to an in-process channel.
func New(cfg Config, opts ...Option) (*Relay, error) {
	cfg = cfg.withDefaults()
	r := &Relay{
		prefix:  cfg.TopicPrefix,
		pending: make(chan events.Event, cfg.Buffer),
	}
	for _, opt := range opts {
		opt(r)
	}

	settings := breaker.DefaultSettings()
	settings.MinRequests = 5
	settings.Timeout = 30 * time.Second
	r.cb = breaker.New[struct{}]("relay-publish", settings)

	if r.publisher != nil {
		return r, nil
	}

	logger := logging.NewWatermillLogger()
	if cfg.NATSURL == "" {
		r.publisher = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(cfg.Buffer)}, logger)
		logging.Info().Str("prefix", r.prefix).Msg("Relay using in-process channel")
		return r, nil
	}

	pub, err := newNATSPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	r.publisher = pub
	logging.Info().Str("url", cfg.NATSURL).Str("prefix", r.prefix).Msg("Relay connected to NATS")
	return r, nil
}

func newNATSPublisher(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("cheerboard-relay"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	return pub, nil
}

// Topic returns the relay topic for an event.
func (r *Relay) Topic(t events.Topic) string {
	return r.prefix + "." + string(t)
}

// Attach queues every bus event for publishing by Serve. Events are
// dropped when the buffer is full.
func (r *Relay) Attach(bus *events.Bus) (detach func()) {
	return bus.SubscribeAll(func(ev events.Event) {
		select {
		case r.pending <- ev:
		default:
			metrics.RelayPublished.WithLabelValues(string(ev.Topic), "dropped").Inc()
			logging.Warn().Str("topic", string(ev.Topic)).Msg("Relay buffer full, dropping event")
		}
	})
}

// Serve publishes queued events until ctx is done, then closes the
// publisher.
func (r *Relay) Serve(ctx context.Context) error {
	defer func() {
		if err := r.Close(); err != nil {
			logging.Warn().Err(err).Msg("Relay close failed")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.pending:
			if err := r.Publish(ev); err != nil && !errors.Is(err, ErrClosed) {
				logging.Warn().Err(err).Str("topic", string(ev.Topic)).Msg("Relay publish failed")
			}
		}
	}
}

// String implements fmt.Stringer for the supervisor.
func (r *Relay) String() string {
	return "event-relay"
}

// Publish sends one event. The publish is guarded by a circuit breaker.
func (r *Relay) Publish(ev events.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	body, err := json.Marshal(Envelope{Type: string(ev.Topic), Time: ev.Time, Data: ev.Payload})
	if err != nil {
		metrics.RelayPublished.WithLabelValues(string(ev.Topic), "encode_error").Inc()
		return fmt.Errorf("encode %s: %w", ev.Topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), body)
	msg.Metadata.Set(MetadataEventType, string(ev.Topic))

	topic := r.Topic(ev.Topic)
	_, err = r.cb.Execute(func() (struct{}, error) {
		return struct{}{}, r.publisher.Publish(topic, msg)
	})
	if err != nil {
		metrics.RelayPublished.WithLabelValues(string(ev.Topic), "error").Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.RelayPublished.WithLabelValues(string(ev.Topic), "success").Inc()
	return nil
}

// Close closes the publisher. Further publishes return ErrClosed.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.publisher.Close()
}
