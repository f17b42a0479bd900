// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package notifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/cheerboard/internal/api"
	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/relay"
	"github.com/tomtom215/cheerboard/internal/stream"
	"github.com/tomtom215/cheerboard/internal/supervisor"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var baseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

const completionFrame = `{
	"id": "evt-1",
	"type": "challenge_completed",
	"data": {
		"playerId": "p1",
		"playerName": "Ada",
		"challengeId": "c1",
		"challengeName": "First Steps",
		"completedAt": "2026-03-14T11:59:00Z",
		"points": 50
	},
	"timestamp": "2026-03-14T11:59:01Z"
}`

// memConn is an in-memory stream transport.
type memConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *memConn) ReadMessage() ([]byte, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *memConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type memDialer struct {
	mu    sync.Mutex
	conns []*memConn
}

func (d *memDialer) Dial(context.Context, string) (stream.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &memConn{msgs: make(chan []byte, 8), closed: make(chan struct{})}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *memDialer) send(t *testing.T, frame string) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("no stream connection")
	}
	d.conns[len(d.conns)-1].msgs <- []byte(frame)
}

func testConfig() *config.Config {
	return &config.Config{
		Stream: config.StreamConfig{
			URL:                  "ws://stream.test/events",
			ReconnectInterval:    time.Second,
			MaxReconnectAttempts: 3,
			HeartbeatTimeout:     time.Minute,
			ConnectTimeout:       time.Second,
		},
		Queue: config.QueueConfig{MaxSize: 5, PromotionDelay: 300 * time.Millisecond, DedupCapacity: 100},
		Cache: config.CacheConfig{MaxSizeMB: 1, MaxEntries: 100, DefaultTTL: time.Minute, CleanupInterval: time.Minute},
		Recovery: config.RecoveryConfig{
			GlobalTimeout:       time.Second,
			MaxGlobalRetries:    3,
			HistoryLimit:        100,
			ErrorWindow:         time.Minute,
			StabilizationWindow: 2 * time.Minute,
			ProbeURL:            "http://127.0.0.1:1/health",
		},
		Poller:  config.PollerConfig{BaseURL: "http://127.0.0.1:1/api", Interval: time.Minute, RequestsPerSecond: 1, Timeout: time.Second},
		Webhook: config.WebhookConfig{Enabled: true, RateLimit: 100},
		Relay:   config.RelayConfig{TopicPrefix: "kiosk"},
		Server:  config.ServerConfig{Timeout: time.Second, CORSOrigins: []string{"*"}},
	}
}

type harness struct {
	p      *Pipeline
	clk    *clock.Fake
	dialer *memDialer
}

func newHarness(t *testing.T, cfg *config.Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{clk: clock.NewFake(baseTime), dialer: &memDialer{}}
	opts = append([]Option{WithClock(h.clk), WithStreamDialer(h.dialer)}, opts...)
	p, err := New(config.NewManager(cfg, ""), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(p.Close)
	t.Cleanup(p.Recovery.Close)
	h.p = p
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sampleEvent(id string) models.ChallengeCompletionEvent {
	return models.ChallengeCompletionEvent{
		ID:          id,
		PlayerID:    "p1",
		PlayerName:  "Ada",
		ChallengeID: "c1",
		CompletedAt: baseTime.Add(-time.Minute),
		Timestamp:   baseTime,
	}
}

func TestPipeline_StreamEventReachesDisplay(t *testing.T) {
	h := newHarness(t, testConfig())

	var ready atomic.Value
	h.p.Bus.Subscribe(events.NotificationReady, func(ev events.Event) { ready.Store(ev.Payload) })

	if err := h.p.Stream.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	h.dialer.send(t, completionFrame)

	waitFor(t, "event queued", func() bool { return h.p.Queue.State().QueueSize == 1 })
	h.clk.Advance(0)

	state := h.p.Queue.State()
	if state.CurrentNotification == nil || state.CurrentNotification.ID != "evt-1" {
		t.Fatalf("current = %+v, want evt-1", state.CurrentNotification)
	}
	if ready.Load() == nil {
		t.Error("notification-ready was not published")
	}

	// The same event from the stream again is absorbed by dedup.
	h.dialer.send(t, completionFrame)
	time.Sleep(20 * time.Millisecond)
	if got := h.p.Queue.State().QueueSize; got != 0 {
		t.Errorf("queue size after duplicate = %d, want 0", got)
	}
}

func TestPipeline_StreamConnectDeactivatesFallback(t *testing.T) {
	h := newHarness(t, testConfig())
	if h.p.Poller == nil {
		t.Fatal("poller not created with a base URL")
	}

	h.p.Poller.Activate("test")
	if !h.p.Poller.Active() {
		t.Fatal("poller not active")
	}
	if err := h.p.Stream.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if h.p.Poller.Active() {
		t.Error("poller still active after the stream connected")
	}
}

func TestPipeline_NoPollerWithoutBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.Poller.BaseURL = ""
	h := newHarness(t, cfg)
	if h.p.Poller != nil {
		t.Error("poller created without a base URL")
	}
}

func TestPipeline_DismissAndSnapshot(t *testing.T) {
	h := newHarness(t, testConfig())

	if !h.p.Ingest(sampleEvent("a")) || !h.p.Ingest(sampleEvent("b")) {
		t.Fatal("Ingest() rejected a new event")
	}
	if h.p.Ingest(sampleEvent("a")) {
		t.Error("Ingest() admitted a duplicate")
	}
	h.clk.Advance(0)

	snap := h.p.Snapshot()
	if snap.Queue.CurrentNotification == nil || snap.Queue.CurrentNotification.ID != "a" {
		t.Fatalf("snapshot current = %+v", snap.Queue.CurrentNotification)
	}
	if snap.Queue.QueueSize != 1 || snap.Connection.Status != models.StatusDisconnected || !snap.GeneratedAt.Equal(baseTime) {
		t.Errorf("snapshot = %+v", snap)
	}

	if h.p.Dismiss("b") {
		t.Error("Dismiss(b) succeeded while a is current")
	}
	if !h.p.Dismiss("") {
		t.Error("Dismiss(\"\") failed")
	}
	h.clk.Advance(300 * time.Millisecond)
	if cur := h.p.Queue.State().CurrentNotification; cur == nil || cur.ID != "b" {
		t.Errorf("current after dismiss = %+v, want b", cur)
	}
}

func TestPipeline_ReportReachesRecovery(t *testing.T) {
	h := newHarness(t, testConfig())
	h.p.Report(models.NewNotificationError(models.ErrorTypeValidation, models.CodeInvalidEvent,
		models.SeverityLow, "bad event", baseTime))

	if got := h.p.Recovery.Status().HistorySize; got != 1 {
		t.Errorf("recovery history = %d, want 1", got)
	}
}

func TestPipeline_CacheStats(t *testing.T) {
	h := newHarness(t, testConfig())
	stats := h.p.CacheStats()
	names, ok := stats["names"]
	if !ok {
		t.Fatalf("stats = %v, want names cache", stats)
	}
	if names.MaxEntries != 100 || names.MaxSizeBytes != 1024*1024 {
		t.Errorf("names stats = %+v", names)
	}
}

func TestPipeline_Handler(t *testing.T) {
	h := newHarness(t, testConfig())
	router := api.NewRouter(h.p.Handler()).Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("state status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status before connect = %d, want 503", rec.Code)
	}
}

func TestPipeline_RelayForwardsEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.Enabled = true

	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, logging.NewWatermillLogger())
	t.Cleanup(func() { _ = ps.Close() })
	msgs, err := ps.Subscribe(context.Background(), "kiosk."+string(events.NotificationReady))
	if err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, cfg, WithRelayPublisher(ps))
	if h.p.Relay == nil {
		t.Fatal("relay not created")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.p.Relay.Serve(ctx) }()

	h.p.Ingest(sampleEvent("relay-1"))
	h.clk.Advance(0)

	select {
	case msg := <-msgs:
		msg.Ack()
		if got := msg.Metadata.Get(relay.MetadataEventType); got != string(events.NotificationReady) {
			t.Errorf("event_type = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not publish notification-ready")
	}
}

func TestPipeline_ConfigReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(maxSize string) {
		body := "queue:\n  max_size: " + maxSize + "\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("4")

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	mgr := config.NewManager(cfg, path)
	p, err := New(mgr, WithClock(clock.NewFake(baseTime)), WithStreamDialer(&memDialer{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(p.Close)
	t.Cleanup(p.Recovery.Close)

	if got := p.Queue.State().MaxQueueSize; got != 4 {
		t.Fatalf("initial max size = %d, want 4", got)
	}

	write("2")
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := p.Queue.State().MaxQueueSize; got != 2 {
		t.Errorf("max size after reload = %d, want 2", got)
	}
}

func TestPipeline_Supervise(t *testing.T) {
	h := newHarness(t, testConfig())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	h.p.Supervise(tree)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, "stream connected", func() bool { return h.p.Stream.State().IsConnected() })

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
	if h.p.Stream.State().Status != models.StatusDisconnected {
		t.Errorf("stream status after shutdown = %s", h.p.Stream.State().Status)
	}
}
