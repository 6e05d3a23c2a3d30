// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Unix(1000, 0)}
	cb := New("test", 3, 10*time.Second, WithClock(clock))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	}
	assert.Equal(t, StateClosed, cb.State())
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New("test", 2, time.Second)
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, ok))
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clock := &mockClock{now: time.Unix(1000, 0)}
	cb := New("test", 1, 10*time.Second, WithClock(clock))
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(11 * time.Second)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State(), "failed half-open trial reopens")

	clock.now = clock.now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerSingleProbeInFlight(t *testing.T) {
	clock := &mockClock{now: time.Unix(1000, 0)}
	cb := New("test", 1, time.Second, WithClock(clock))
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	clock.now = clock.now.Add(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	entered := make(chan struct{})
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	require.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerFailureFilter(t *testing.T) {
	errClient := errors.New("client error")
	cb := New("test", 1, time.Second, WithFailureFilter(func(err error) bool {
		return !errors.Is(err, errClient)
	}))
	ctx := context.Background()
	require.ErrorIs(t, cb.Execute(ctx, func(context.Context) error { return errClient }), errClient)
	assert.Equal(t, StateClosed, cb.State())
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}
