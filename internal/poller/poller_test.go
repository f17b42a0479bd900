// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package poller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cheerboard/internal/cache"
	"github.com/tomtom215/cheerboard/internal/clock"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var baseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu          sync.Mutex
	completions string
	status      int
	hits        map[string]int
	lastSince   string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{status: http.StatusOK, hits: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/completions", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		api.hits["completions"]++
		api.lastSince = r.URL.Query().Get("since")
		if api.status != http.StatusOK {
			w.WriteHeader(api.status)
			return
		}
		_, _ = io.WriteString(w, api.completions)
	})
	mux.HandleFunc("/players/", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.hits["players"]++
		api.mu.Unlock()
		if r.URL.Path != "/players/p1" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"id":"p1","name":"Ada"}`)
	})
	mux.HandleFunc("/challenges/", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.hits["challenges"]++
		api.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":"c1","name":"First Steps"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) set(status int, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
	a.completions = body
}

func (a *fakeAPI) since() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSince
}

func (a *fakeAPI) count(endpoint string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[endpoint]
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []models.NotificationError
}

func (r *recordingReporter) Report(nerr models.NotificationError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, nerr)
}

func (r *recordingReporter) all() []models.NotificationError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.NotificationError(nil), r.errs...)
}

func testConfig(url string) Config {
	return Config{
		Client: ClientConfig{
			BaseURL:           url,
			Timeout:           time.Second,
			RequestsPerSecond: 1000,
			MaxRetries:        2,
			RetryInterval:     time.Millisecond,
		},
		Interval: 15 * time.Second,
	}
}

const twoCompletions = `{"completions":[
	{"id":"evt-1","playerId":"p1","challengeId":"c1","completedAt":"2026-03-14T11:58:00Z","points":10},
	{"id":"evt-2","playerId":"p2","playerName":"Grace","challengeId":"c1","challengeName":"Named","completedAt":"2026-03-14T11:59:00Z"}
]}`

func TestPoller_PollForwardsAndEnriches(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(http.StatusOK, twoCompletions)
	clk := clock.NewFake(baseTime)

	p := New(testConfig(srv.URL), WithClock(clk))
	var got []models.ChallengeCompletionEvent
	p.OnEvent(func(ev models.ChallengeCompletionEvent) { got = append(got, ev) })

	if n := p.Poll(context.Background()); n != 2 {
		t.Fatalf("Poll() = %d, want 2", n)
	}
	if len(got) != 2 {
		t.Fatalf("forwarded %d events, want 2", len(got))
	}

	first := got[0]
	if first.ID != "evt-1" || first.PlayerName != "Ada" || first.ChallengeName != "First Steps" {
		t.Errorf("first = %+v, want enriched names", first)
	}
	if first.PointsValue() != 10 {
		t.Errorf("points = %d, want 10", first.PointsValue())
	}
	if second := got[1]; second.PlayerName != "Grace" || second.ChallengeName != "Named" {
		t.Errorf("second = %+v, want names from the record", second)
	}
	if want := baseTime.Add(-activationLookback).Format(time.RFC3339Nano); api.since() != want {
		t.Errorf("since = %q, want %q", api.since(), want)
	}

	// The cursor advances to the newest completion and names come from
	// the cache.
	p.Poll(context.Background())
	if want := "2026-03-14T11:59:00Z"; api.since() != want {
		t.Errorf("second since = %q, want %q", api.since(), want)
	}
	if n := api.count("players"); n != 1 {
		t.Errorf("player lookups = %d, want 1", n)
	}
	if n := api.count("challenges"); n != 1 {
		t.Errorf("challenge lookups = %d, want 1", n)
	}
}

func TestPoller_UnknownPlayerKeepsFallback(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(http.StatusOK, `{"completions":[{"id":"evt-9","playerId":"ghost","challengeId":"c1","completedAt":"2026-03-14T11:58:00Z"}]}`)

	p := New(testConfig(srv.URL), WithClock(clock.NewFake(baseTime)))
	var got models.ChallengeCompletionEvent
	p.OnEvent(func(ev models.ChallengeCompletionEvent) { got = ev })
	p.Poll(context.Background())

	if got.PlayerName != "ghost" {
		t.Errorf("PlayerName = %q, want id fallback", got.PlayerName)
	}
	// 404 is permanent: one request, no retries.
	if n := api.count("players"); n != 1 {
		t.Errorf("player lookups = %d, want 1", n)
	}
}

func TestPoller_SyntheticIDIsStable(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(http.StatusOK, `{"completions":[{"playerId":"p1","playerName":"Ada","challengeId":"c1","challengeName":"X","completedAt":"2026-03-14T11:58:00Z"}]}`)

	p := New(testConfig(srv.URL), WithClock(clock.NewFake(baseTime)))
	var ids []string
	p.OnEvent(func(ev models.ChallengeCompletionEvent) { ids = append(ids, ev.ID) })
	p.Poll(context.Background())
	p.Poll(context.Background())

	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Errorf("synthetic ids = %v, want equal and non-empty", ids)
	}
}

func TestPoller_SkipsInvalidRecords(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(http.StatusOK, `{"completions":[
		{"id":"bad-1","challengeId":"c1","completedAt":"2026-03-14T11:58:00Z"},
		{"id":"bad-2","playerId":"p1","challengeId":"c1","completedAt":"yesterday"},
		{"id":"ok","playerId":"p1","playerName":"Ada","challengeId":"c1","challengeName":"X","completedAt":"2026-03-14T11:58:00Z"}
	]}`)

	p := New(testConfig(srv.URL), WithClock(clock.NewFake(baseTime)))
	var got []string
	p.OnEvent(func(ev models.ChallengeCompletionEvent) { got = append(got, ev.ID) })

	if n := p.Poll(context.Background()); n != 1 || len(got) != 1 || got[0] != "ok" {
		t.Errorf("Poll() = %d, forwarded %v; want only ok", n, got)
	}
}

func TestPoller_FailureReportsPollFailed(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(http.StatusBadGateway, "")
	rep := &recordingReporter{}

	p := New(testConfig(srv.URL), WithClock(clock.NewFake(baseTime)), WithReporter(rep))
	if n := p.Poll(context.Background()); n != 0 {
		t.Fatalf("Poll() = %d, want 0", n)
	}

	// MaxRetries 2: the first request plus two retries.
	if n := api.count("completions"); n != 3 {
		t.Errorf("completions requests = %d, want 3", n)
	}
	errs := rep.all()
	if len(errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(errs))
	}
	if e := errs[0]; e.Type != models.ErrorTypeNetwork || e.Code != models.CodePollFailed || !e.Recoverable {
		t.Errorf("reported %+v, want recoverable network/POLL_FAILED", e)
	}
}

func TestPoller_ActivateDeactivate(t *testing.T) {
	_, srv := newFakeAPI(t)
	p := New(testConfig(srv.URL))

	if p.Active() {
		t.Fatal("new poller is active")
	}
	p.Activate("test")
	p.Activate("again")
	if !p.Active() {
		t.Fatal("Activate did not activate")
	}
	p.Deactivate()
	p.Deactivate()
	if p.Active() {
		t.Fatal("Deactivate did not deactivate")
	}
}

func TestPoller_ServePollsOnlyWhileActive(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(http.StatusOK, `{"completions":[]}`)
	clk := clock.NewFake(baseTime)
	p := New(testConfig(srv.URL), WithClock(clk))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()
	clk.BlockUntil(1)

	// Inactive: ticks do not poll.
	clk.Advance(15 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n := api.count("completions"); n != 0 {
		t.Fatalf("polled %d times while inactive", n)
	}

	// Activation polls immediately.
	p.Activate("test")
	waitFor(t, func() bool { return api.count("completions") == 1 })

	clk.Advance(15 * time.Second)
	waitFor(t, func() bool { return api.count("completions") == 2 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestPoller_UsesProvidedNameCache(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(http.StatusOK, twoCompletions)
	names := cache.NewBounded[Profile](cache.Config{Name: "test-names"})
	names.Set(cache.GenerateKey("player", "p1"), Profile{ID: "p1", Name: "Cached Ada"})

	p := New(testConfig(srv.URL), WithClock(clock.NewFake(baseTime)), WithNameCache(names))
	var got []models.ChallengeCompletionEvent
	p.OnEvent(func(ev models.ChallengeCompletionEvent) { got = append(got, ev) })
	p.Poll(context.Background())

	if len(got) == 0 || got[0].PlayerName != "Cached Ada" {
		t.Fatalf("events = %+v, want first with the cached name", got)
	}
	if n := api.count("players"); n != 0 {
		t.Errorf("player lookups = %d, want 0", n)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
