// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cheerboard/internal/events"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a hub that stops when the test ends.
func setupHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	hub := NewHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a client without a connection.
func createTestClient(hub *Hub) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 256)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.GetClientCount(), want)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"empty clients", len(hub.clients) == 0, "clients map should be empty"},
		{"name", hub.String() == "websocket-hub", "unexpected service name"},
	}

	for _, c := range checks {
		if !c.check {
			t.Errorf("%s: %s", c.name, c.errMsg)
		}
	}
}

func TestHub_SnapshotOnRegister(t *testing.T) {
	current := models.ChallengeCompletionEvent{ID: "evt-1", PlayerName: "Ada"}
	hub := setupHub(t, WithSnapshot(func() models.Snapshot {
		return models.Snapshot{Queue: models.QueueState{CurrentNotification: &current, IsDisplaying: true}}
	}))

	client := createTestClient(hub)
	hub.Register <- client

	msg := receive(t, client)
	if msg.Type != MessageTypeSnapshot {
		t.Fatalf("first message type = %q, want %q", msg.Type, MessageTypeSnapshot)
	}
	snap, ok := msg.Data.(models.Snapshot)
	if !ok {
		t.Fatalf("snapshot data is %T", msg.Data)
	}
	if snap.Queue.CurrentNotification == nil || snap.Queue.CurrentNotification.ID != "evt-1" {
		t.Errorf("snapshot queue = %+v, want evt-1 current", snap.Queue)
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := setupHub(t)
	clients := []*Client{createTestClient(hub), createTestClient(hub), createTestClient(hub)}
	for _, c := range clients {
		hub.Register <- c
	}
	waitForClients(t, hub, len(clients))

	hub.BroadcastJSON(string(events.NotificationReady), map[string]string{"id": "evt-1"})

	for i, c := range clients {
		msg := receive(t, c)
		if msg.Type != string(events.NotificationReady) {
			t.Errorf("client %d got type %q", i, msg.Type)
		}
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	hub.Register <- client
	waitForClients(t, hub, 1)

	hub.Unregister <- client
	waitForClients(t, hub, 0)

	if _, ok := <-client.send; ok {
		t.Error("send channel still open after unregister")
	}

	// Unregistering again is harmless.
	hub.Unregister <- client
	waitForClients(t, hub, 0)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := setupHub(t)
	slow := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 1)}
	fast := createTestClient(hub)
	hub.Register <- slow
	hub.Register <- fast
	waitForClients(t, hub, 2)

	hub.BroadcastJSON("first", nil)
	hub.BroadcastJSON("second", nil)
	waitForClients(t, hub, 1)

	if got := receive(t, fast); got.Type != "first" {
		t.Errorf("fast client first message = %q", got.Type)
	}
	if got := receive(t, fast); got.Type != "second" {
		t.Errorf("fast client second message = %q", got.Type)
	}
}

func TestHub_AttachForwardsBusEvents(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	hub.Register <- client
	waitForClients(t, hub, 1)

	bus := events.NewBus(time.Now)
	detach := hub.Attach(bus)
	bus.Publish(events.QueueOverflow, map[string]int{"maxQueueSize": 10})

	msg := receive(t, client)
	if msg.Type != string(events.QueueOverflow) {
		t.Errorf("type = %q, want %q", msg.Type, events.QueueOverflow)
	}

	detach()
	bus.Publish(events.QueueOverflow, nil)
	select {
	case msg := <-client.send:
		t.Errorf("received %q after detach", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ServeStopsAndClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	client := createTestClient(hub)
	hub.Register <- client
	waitForClients(t, hub, 1)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("clients after shutdown = %d", hub.GetClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("client send channel still open")
	}
}

func TestHub_HandleDismiss(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	hub := NewHub(WithDismissHandler(func(id string) bool {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, id)
		return id != "missing"
	}))

	tests := []struct {
		name      string
		data      string
		want      bool
		wantErr   bool
		wantCalls int
	}{
		{"empty payload dismisses current", ``, true, false, 1},
		{"null payload", `null`, true, false, 2},
		{"by id", `{"id":"evt-1"}`, true, false, 3},
		{"unknown id", `{"id":"missing"}`, false, false, 4},
		{"malformed", `{"id":`, false, true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hub.handleDismiss(json.RawMessage(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("dismissed = %v, want %v", got, tt.want)
			}
			mu.Lock()
			n := len(calls)
			mu.Unlock()
			if n != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}

	if got, err := NewHub().handleDismiss(nil); got || err != nil {
		t.Errorf("hub without handler = (%v, %v), want (false, nil)", got, err)
	}
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypePong})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	if string(data) != `{"type":"pong","data":null}` {
		t.Errorf("MarshalMessage() = %s", data)
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel2()
	<-expired.Done()

	tests := []struct {
		name string
		ctx  context.Context
		want ShutdownReason
	}{
		{"canceled", canceled, ShutdownReasonContextCanceled},
		{"deadline", expired, ShutdownReasonContextDeadline},
	}
	for _, tt := range tests {
		if got := getShutdownReason(tt.ctx); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}
