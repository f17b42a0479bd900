// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package recovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/cheerboard/internal/breaker"
	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/queue"
)

func TestRecoverStream(t *testing.T) {
	errDial := errors.New("dial refused")
	tests := []struct {
		name            string
		stream          *fakeStream
		wantOK          bool
		wantErr         error
		wantConnects    int
		wantDisconnects int
	}{
		{"still retrying", &fakeStream{status: models.StatusError, retrying: true}, true, nil, 0, 0},
		{"already connected", &fakeStream{status: models.StatusConnected}, true, nil, 0, 0},
		{"restart succeeds", &fakeStream{status: models.StatusDisconnected}, true, nil, 1, 1},
		{"restart fails", &fakeStream{status: models.StatusError, connectErr: errDial}, false, errDial, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{}, WithStream(tt.stream))
			ok, err := h.engine.recoverStream(context.Background(), Attempt{Number: 1})
			if ok != tt.wantOK || !errors.Is(err, tt.wantErr) {
				t.Fatalf("recoverStream() = %v, %v; want %v, %v", ok, err, tt.wantOK, tt.wantErr)
			}
			if tt.stream.connects != tt.wantConnects || tt.stream.disconnects != tt.wantDisconnects {
				t.Errorf("connects/disconnects = %d/%d, want %d/%d",
					tt.stream.connects, tt.stream.disconnects, tt.wantConnects, tt.wantDisconnects)
			}
		})
	}

	t.Run("no stream", func(t *testing.T) {
		h := newHarness(t, Config{})
		if _, err := h.engine.recoverStream(context.Background(), Attempt{}); !errors.Is(err, ErrNoStream) {
			t.Errorf("err = %v, want ErrNoStream", err)
		}
	})
}

func TestRecoverNetwork(t *testing.T) {
	errDown := errors.New("unreachable")
	att := Attempt{Error: models.NotificationError{Type: models.ErrorTypeNetwork, Code: models.CodeNetworkUnreachable}}

	t.Run("reachable", func(t *testing.T) {
		p, fb := &fakeProber{}, &fakeFallback{}
		h := newHarness(t, Config{}, WithProber(p), WithFallback(fb))
		ok, err := h.engine.recoverNetwork(context.Background(), att)
		if !ok || err != nil {
			t.Fatalf("recoverNetwork() = %v, %v", ok, err)
		}
		if fb.Active() {
			t.Error("fallback activated for a reachable upstream")
		}
		if p.calls != 1 {
			t.Errorf("probe calls = %d, want 1", p.calls)
		}
	})

	t.Run("unreachable activates fallback", func(t *testing.T) {
		fb := &fakeFallback{}
		h := newHarness(t, Config{}, WithProber(&fakeProber{err: errDown}), WithFallback(fb))
		ok, err := h.engine.recoverNetwork(context.Background(), att)
		if !ok || err != nil {
			t.Fatalf("recoverNetwork() = %v, %v", ok, err)
		}
		if !fb.Active() || len(fb.reasons) != 1 || fb.reasons[0] != models.CodeNetworkUnreachable {
			t.Errorf("fallback = active %v reasons %v", fb.Active(), fb.reasons)
		}
	})

	t.Run("unreachable without fallback", func(t *testing.T) {
		h := newHarness(t, Config{}, WithProber(&fakeProber{err: errDown}))
		ok, err := h.engine.recoverNetwork(context.Background(), att)
		if ok || !errors.Is(err, errDown) {
			t.Errorf("recoverNetwork() = %v, %v; want false, %v", ok, err, errDown)
		}
	})

	t.Run("no probe", func(t *testing.T) {
		fb := &fakeFallback{}
		h := newHarness(t, Config{}, WithFallback(fb))
		ok, _ := h.engine.recoverNetwork(context.Background(), att)
		if !ok || !fb.Active() {
			t.Errorf("recoverNetwork() = %v, fallback active %v", ok, fb.Active())
		}
	})
}

func TestRecoverFallback(t *testing.T) {
	t.Run("healthy system recovers", func(t *testing.T) {
		h := newHarness(t, Config{}, WithStream(&fakeStream{status: models.StatusConnected}))
		ok, err := h.engine.recoverFallback(context.Background(), Attempt{Number: 1})
		if !ok || err != nil {
			t.Errorf("recoverFallback() = %v, %v", ok, err)
		}
	})

	t.Run("no delivery path fails", func(t *testing.T) {
		h := newHarness(t, Config{}, WithStream(&fakeStream{status: models.StatusError}), WithFallback(&fakeFallback{}))
		ok, _ := h.engine.recoverFallback(context.Background(), Attempt{Number: 1})
		if ok {
			t.Error("recoverFallback() succeeded with no delivery path")
		}
	})

	t.Run("fallback polling counts as delivering", func(t *testing.T) {
		h := newHarness(t, Config{}, WithStream(&fakeStream{status: models.StatusError}), WithFallback(&fakeFallback{active: true}))
		if ok, _ := h.engine.recoverFallback(context.Background(), Attempt{Number: 1}); !ok {
			t.Error("recoverFallback() failed while polling")
		}
	})

	t.Run("final attempt escalates", func(t *testing.T) {
		q := queue.NewManager(queue.Config{MaxSize: 5})
		h := newHarness(t, Config{}, WithQueue(q))
		ok, err := h.engine.recoverFallback(context.Background(), Attempt{
			Error:  models.NotificationError{Code: models.CodeInitializationFailed},
			Number: 3,
			Final:  true,
		})
		if !ok || err != nil {
			t.Fatalf("recoverFallback() = %v, %v", ok, err)
		}
		st := h.engine.Status()
		if st.Level != models.DegradationEmergency || !st.EmergencyMode {
			t.Errorf("Status() = %+v, want emergency", st)
		}
		if !q.State().Suspended {
			t.Error("queue not suspended")
		}
	})
}

func TestHTTPProber(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.URL+"/health", time.Second)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() = %v", err)
	}

	status.Store(http.StatusNotFound)
	if err := p.Probe(context.Background()); err != nil {
		t.Errorf("Probe() with 404 = %v, want reachable", err)
	}

	status.Store(http.StatusServiceUnavailable)
	for i := 0; i < 5; i++ {
		if err := p.Probe(context.Background()); err == nil {
			t.Fatalf("Probe() %d with 503 = nil", i)
		}
	}

	if err := p.Probe(context.Background()); !breaker.IsRejected(err) {
		t.Errorf("Probe() after repeated failures = %v, want circuit open", err)
	}
}
