// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package recovery

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tomtom215/cheerboard/internal/models"
)

// Strategy names.
const (
	StrategyStream     = "stream-reconnection"
	StrategyNetwork    = "network-recovery"
	StrategyProcessing = "processing-recovery"
	StrategyValidation = "validation-recovery"
	StrategyFallback   = "fallback-recovery"
)

// ErrNoStream is returned by the stream strategy when no client is wired.
var ErrNoStream = errors.New("recovery: no stream client")

// Attempt is what a recovery action sees.
type Attempt struct {
	Error   models.NotificationError
	Context models.RecoveryContext

	// Number is 1 for the first attempt.
	Number int

	// Final is true when no further attempt will be made for this context.
	Final bool
}

// Action performs one recovery attempt and reports whether it succeeded.
type Action func(ctx context.Context, a Attempt) (bool, error)

// Strategy is one entry of the ordered strategy list. The first strategy
// whose CanHandle accepts an error is the only one used for it.
type Strategy struct {
	Name              string
	CanHandle         func(models.NotificationError) bool
	Recover           Action
	MaxRetries        int
	BackoffMultiplier float64
	InitialDelay      time.Duration
}

// Delay returns the wait before the attempt that follows attempts earlier
// ones: InitialDelay * BackoffMultiplier^attempts.
func (s Strategy) Delay(attempts int) time.Duration {
	if s.InitialDelay <= 0 {
		return 0
	}
	mult := s.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(s.InitialDelay) * math.Pow(mult, float64(attempts)))
}

func ofType(t models.ErrorType) func(models.NotificationError) bool {
	return func(e models.NotificationError) bool { return e.Type == t }
}

// DefaultStrategies returns the built-in strategies bound to e, in
// evaluation order. The last one accepts every error.
func (e *Engine) DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:              StrategyStream,
			CanHandle:         ofType(models.ErrorTypeStream),
			Recover:           e.recoverStream,
			MaxRetries:        3,
			BackoffMultiplier: 2,
			InitialDelay:      2 * time.Second,
		},
		{
			Name:              StrategyNetwork,
			CanHandle:         ofType(models.ErrorTypeNetwork),
			Recover:           e.recoverNetwork,
			MaxRetries:        3,
			BackoffMultiplier: 2,
			InitialDelay:      time.Second,
		},
		{
			Name:              StrategyProcessing,
			CanHandle:         ofType(models.ErrorTypeProcessing),
			Recover:           succeed,
			MaxRetries:        2,
			BackoffMultiplier: 1.5,
			InitialDelay:      500 * time.Millisecond,
		},
		{
			Name:              StrategyValidation,
			CanHandle:         ofType(models.ErrorTypeValidation),
			Recover:           succeed,
			MaxRetries:        1,
			BackoffMultiplier: 1,
		},
		{
			Name:              StrategyFallback,
			CanHandle:         func(models.NotificationError) bool { return true },
			Recover:           e.recoverFallback,
			MaxRetries:        3,
			BackoffMultiplier: 2,
			InitialDelay:      time.Second,
		},
	}
}

func succeed(context.Context, Attempt) (bool, error) {
	return true, nil
}

// recoverStream restarts the stream client unless it is connected or still
// inside its own reconnect backoff.
func (e *Engine) recoverStream(ctx context.Context, _ Attempt) (bool, error) {
	if e.stream == nil {
		return false, ErrNoStream
	}
	if e.stream.Retrying() || e.stream.State().IsConnected() {
		return true, nil
	}
	e.stream.Disconnect()
	if err := e.stream.Connect(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// recoverNetwork probes upstream reachability. An unreachable upstream
// switches delivery to fallback polling and counts as recovered.
func (e *Engine) recoverNetwork(ctx context.Context, a Attempt) (bool, error) {
	if e.prober != nil {
		err := e.prober.Probe(ctx)
		if err == nil {
			return true, nil
		}
		if e.fallback == nil {
			return false, err
		}
	} else if e.fallback == nil {
		return false, errors.New("recovery: no probe or fallback configured")
	}
	e.activateFallback(a.Error.Code)
	return true, nil
}

// recoverFallback treats the system as recovered while the stream (or
// fallback polling) is delivering and the level is below critical. On the
// final attempt it escalates to emergency mode.
func (e *Engine) recoverFallback(_ context.Context, a Attempt) (bool, error) {
	if a.Final {
		e.escalate(a.Error.Code)
		return true, nil
	}
	delivering := e.fallback != nil && e.fallback.Active()
	if e.stream != nil && e.stream.State().IsConnected() {
		delivering = true
	}
	if e.stream == nil && e.fallback == nil {
		delivering = true
	}
	return delivering && e.Level() < models.DegradationCritical, nil
}
