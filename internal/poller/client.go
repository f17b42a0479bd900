// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cheerboard/internal/breaker"
	"github.com/tomtom215/cheerboard/internal/metrics"
)

// ErrNotFound is returned for a 404 from the gamification API.
var ErrNotFound = errors.New("poller: resource not found")

// Profile is the subset of a player or challenge resource used to fill in
// display names.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// completionsResponse is the body of GET /completions.
type completionsResponse struct {
	Completions []json.RawMessage `json:"completions"`
}

// ClientConfig controls a Client.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int

	// RetryInterval is the first backoff interval between retries.
	RetryInterval time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
	return c
}

// Client reads the gamification REST API. Requests are rate limited,
// retried with exponential backoff and guarded by a circuit breaker.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *breaker.Breaker[[]byte]
}

// NewClient creates a REST client.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	settings := breaker.DefaultSettings()
	settings.IsSuccessful = func(err error) bool {
		var se *statusError
		return err == nil || (errors.As(err, &se) && se.code < http.StatusInternalServerError)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		cb:         breaker.New[[]byte]("gamification-api", settings),
	}
}

// Completions returns raw completion records newer than since.
func (c *Client) Completions(ctx context.Context, since time.Time) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	body, err := c.get(ctx, "completions", "/completions?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var resp completionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode completions: %w", err)
	}
	return resp.Completions, nil
}

// Player returns a player profile.
func (c *Client) Player(ctx context.Context, id string) (Profile, error) {
	return c.profile(ctx, "players", id)
}

// Challenge returns a challenge profile.
func (c *Client) Challenge(ctx context.Context, id string) (Profile, error) {
	return c.profile(ctx, "challenges", id)
}

func (c *Client) profile(ctx context.Context, kind, id string) (Profile, error) {
	body, err := c.get(ctx, kind, "/"+kind+"/"+url.PathEscape(id))
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return p, nil
}

// get fetches path with rate limiting and retries. Client errors (4xx) and
// an open circuit are not retried.
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)

	body, err := backoff.RetryWithData(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		data, err := c.cb.Execute(func() ([]byte, error) {
			return c.do(ctx, path)
		})
		switch {
		case err == nil:
			metrics.PollerRequests.WithLabelValues(endpoint, "success").Inc()
			return data, nil
		case breaker.IsRejected(err):
			metrics.PollerRequests.WithLabelValues(endpoint, "rejected").Inc()
			return nil, backoff.Permanent(err)
		}
		metrics.PollerRequests.WithLabelValues(endpoint, "failure").Inc()
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError && se.code != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("gamification api %s: %w", endpoint, err)
	}
	return body, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("status %d", e.code)
	}
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	if e.code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
