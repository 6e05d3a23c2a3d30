// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to the session manager and tracking hosts.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without calling the guarded function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after threshold consecutive counted failures and lets
// a single probe through once resetTimeout has elapsed.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	probing      bool
	clock        Clock
	counts       func(error) bool
}

type Option func(*CircuitBreaker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithFailureFilter decides which errors count toward tripping. Errors it
// rejects are returned to the caller but leave the breaker untouched.
func WithFailureFilter(f func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = f }
}

// New creates a closed breaker.
func New(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	cb := &CircuitBreaker{
		name:         name,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		counts: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, ok := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	cb.record(err, probe)
	return err
}

func (cb *CircuitBreaker) allow() (probe bool, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.resetTimeout {
			return false, false
		}
		cb.transitionTo(StateHalfOpen)
	}
	if cb.probing {
		return false, false
	}
	cb.probing = true
	return true, true
}

func (cb *CircuitBreaker) record(err error, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}

	if err == nil {
		cb.failures = 0
		if cb.state != StateClosed {
			cb.transitionTo(StateClosed)
		}
		return
	}
	if !cb.counts(err) {
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.threshold:
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.transitionTo(StateOpen)
	}
}

// Caller holds mu.
func (cb *CircuitBreaker) transitionTo(next State) {
	if cb.state == next {
		return
	}
	logger := log.WithComponent("resilience")
	logger.Info().
		Str("breaker", cb.name).
		Str(log.FieldOldState, string(cb.state)).
		Str(log.FieldNewState, string(next)).
		Msg("circuit breaker state change")
	cb.state = next
	if next == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(next))
}

// State returns the current state without advancing it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probing = false
	cb.transitionTo(StateClosed)
}
