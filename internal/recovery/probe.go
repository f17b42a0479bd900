// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package recovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/cheerboard/internal/breaker"
)

// HTTPProber checks reachability with a GET that any non-5xx answer
// satisfies. Repeated failures open a circuit breaker so an unreachable
// upstream is not hammered by every network error.
type HTTPProber struct {
	url    string
	client *http.Client
	cb     *breaker.Breaker[struct{}]
}

// NewHTTPProber creates a prober for url.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		url:    url,
		client: &http.Client{Timeout: timeout},
		cb: breaker.New[struct{}]("reachability-probe", breaker.Settings{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  3,
			FailureRatio: 0.6,
		}),
	}
}

// Probe returns nil when the upstream answered.
func (p *HTTPProber) Probe(ctx context.Context) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
		if err != nil {
			return struct{}{}, fmt.Errorf("build probe request: %w", err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("probe %s: %w", p.url, err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= http.StatusInternalServerError {
			return struct{}{}, fmt.Errorf("probe %s: status %d", p.url, resp.StatusCode)
		}
		return struct{}{}, nil
	})
	return err
}
