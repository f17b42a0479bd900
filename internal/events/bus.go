// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package events is the in-process publish/subscribe bus that carries the
// pipeline's outbound events to the display hub, the relay and internal
// observers.
//
// Dispatch is synchronous on the publisher's goroutine and each handler
// call is isolated: a panicking subscriber is logged and skipped so the
// remaining subscribers still run. Publishers never hold their own locks
// while publishing.
package events

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/cheerboard/internal/logging"
)

// Topic names an outbound event.
type Topic string

const (
	NotificationReady      Topic = "notification-ready"
	NotificationDismissed  Topic = "notification-dismissed"
	QueueOverflow          Topic = "queue-overflow"
	QueueStateChanged      Topic = "queue-state-changed"
	ConnectionStateChanged Topic = "connection-state-changed"
	RecoveryStarted        Topic = "recovery-started"
	RecoverySucceeded      Topic = "recovery-succeeded"
	RecoveryAttemptFailed  Topic = "recovery-attempt-failed"
	RecoveryFailed         Topic = "recovery-failed"
	DegradationActivated   Topic = "degradation-activated"
	SystemStabilized       Topic = "system-stabilized"
)

// AllTopics lists every topic in a stable order.
var AllTopics = []Topic{
	NotificationReady,
	NotificationDismissed,
	QueueOverflow,
	QueueStateChanged,
	ConnectionStateChanged,
	RecoveryStarted,
	RecoverySucceeded,
	RecoveryAttemptFailed,
	RecoveryFailed,
	DegradationActivated,
	SystemStabilized,
}

// Event is one published occurrence.
type Event struct {
	Topic   Topic       `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"data"`
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a typed publish/subscribe bus. The zero value is not usable; use
// NewBus.
type Bus struct {
	mu     sync.RWMutex
	topics map[Topic][]subscription
	all    []subscription
	nextID uint64
	now    func() time.Time
}

// NewBus creates an empty bus. now stamps published events and defaults
// to time.Now.
func NewBus(now func() time.Time) *Bus {
	if now == nil {
		now = time.Now
	}
	return &Bus{
		topics: make(map[Topic][]subscription),
		now:    now,
	}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: h})
	return func() { b.remove(topic, id) }
}

// SubscribeAll registers h for every topic.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})
	return func() { b.remove("", id) }
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if topic == "" {
		b.all = without(b.all, id)
		return
	}
	b.topics[topic] = without(b.topics[topic], id)
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish delivers payload to every subscriber of topic, in subscription
// order, then to every SubscribeAll handler.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	ev := Event{Topic: topic, Time: b.now(), Payload: payload}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.topics[topic])+len(b.all))
	subs = append(subs, b.topics[topic]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	sort.SliceStable(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, s := range subs {
		dispatch(s.handler, ev)
	}
}

// SubscriberCount returns the number of handlers that would receive topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic]) + len(b.all)
}

func dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("topic", string(ev.Topic)).
				Interface("panic", r).
				Msg("Event subscriber panicked")
		}
	}()
	h(ev)
}
