// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Timers fire in deadline order from
// within Advance, on the caller's goroutine, so chained timers scheduled
// by a callback fire in the same Advance call when they fall inside the
// advanced span.
type Fake struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	seq     uint64
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	clock  *Fake
	at     time.Time
	seq    uint64
	fn     func()
	ch     chan time.Time
	period time.Duration
	done   bool
}

// NewFake returns a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn to run when the clock passes now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return f.add(d, fn, nil, 0)
}

// After returns a channel that receives the fake time once d has elapsed.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.add(d, nil, ch, 0)
	return ch
}

// NewTicker returns a ticker driven by Advance.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	ch := make(chan time.Time, 1)
	return &fakeTicker{w: f.add(d, nil, ch, d)}
}

func (f *Fake) add(d time.Duration, fn func(), ch chan time.Time, period time.Duration) *fakeWaiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	w := &fakeWaiter{clock: f, at: f.now.Add(d), seq: f.seq, fn: fn, ch: ch, period: period}
	f.waiters = append(f.waiters, w)
	f.cond.Broadcast()
	return w
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls within the span.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		w := f.nextDueLocked(target)
		if w == nil {
			break
		}
		f.now = w.at
		if w.period > 0 {
			w.at = w.at.Add(w.period)
		} else {
			w.done = true
			f.removeLocked(w)
		}
		now := f.now
		f.mu.Unlock()
		w.fire(now)
		f.mu.Lock()
	}
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

// Pending returns the number of scheduled, unfired timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// BlockUntil waits until at least n timers are pending. Tests use it to
// synchronise with goroutines that schedule timers asynchronously.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.waiters) < n {
		f.cond.Wait()
	}
}

func (f *Fake) nextDueLocked(target time.Time) *fakeWaiter {
	if len(f.waiters) == 0 {
		return nil
	}
	sort.SliceStable(f.waiters, func(i, j int) bool {
		if f.waiters[i].at.Equal(f.waiters[j].at) {
			return f.waiters[i].seq < f.waiters[j].seq
		}
		return f.waiters[i].at.Before(f.waiters[j].at)
	})
	w := f.waiters[0]
	if w.at.After(target) {
		return nil
	}
	return w
}

func (f *Fake) removeLocked(w *fakeWaiter) {
	for i, x := range f.waiters {
		if x == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (w *fakeWaiter) fire(now time.Time) {
	if w.fn != nil {
		w.fn()
		return
	}
	select {
	case w.ch <- now:
	default:
	}
}

// Stop cancels the waiter.
func (w *fakeWaiter) Stop() bool {
	f := w.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.done {
		return false
	}
	w.done = true
	f.removeLocked(w)
	return true
}

type fakeTicker struct {
	w *fakeWaiter
}

func (t *fakeTicker) C() <-chan time.Time { return t.w.ch }
func (t *fakeTicker) Stop()               { t.w.Stop() }
