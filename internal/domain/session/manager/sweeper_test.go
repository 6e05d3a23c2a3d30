// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/config"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/session/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func TestSweeperRemovesTerminalSessionsAfterRetention(t *testing.T) {
	clock := &testClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := newTestFactory(t, &fakeCSM{res: &ports.Resolution{Code: model.CodeMalformedURL}}, WithClock(clock.Now))
	s, _ := startSession(t, f, model.ModeVOD, config.DefaultProperties())
	require.Equal(t, model.ResultFailed, s.Result())

	sw := &Sweeper{Factory: f, Conf: SweeperConfig{Retention: time.Minute}}

	sw.Now = func() time.Time { return clock.Now().Add(30 * time.Second) }
	assert.Zero(t, sw.SweepOnce(context.Background()))

	sw.Now = func() time.Time { return clock.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, sw.SweepOnce(context.Background()))
	_, ok := f.Session(s.Token())
	assert.False(t, ok)
}

func TestSweeperRemovesIdleSessions(t *testing.T) {
	clock := &testClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := newTestFactory(t, &fakeCSM{res: initialised()}, WithClock(clock.Now))
	idle, _ := startSession(t, f, model.ModeVOD, config.DefaultProperties())
	busy, _ := startSession(t, f, model.ModeVOD, config.DefaultProperties())

	clock.mu.Lock()
	clock.t = clock.t.Add(9 * time.Minute)
	clock.mu.Unlock()
	require.NoError(t, busy.PlayheadDidChange(1))

	sw := &Sweeper{
		Factory: f,
		Conf:    SweeperConfig{Retention: time.Hour, IdleTimeout: 5 * time.Minute},
		Now:     func() time.Time { return clock.Now().Add(time.Minute) },
	}
	assert.Equal(t, 1, sw.SweepOnce(context.Background()))
	_, ok := f.Session(idle.Token())
	assert.False(t, ok)
	_, ok = f.Session(busy.Token())
	assert.True(t, ok)
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	f := newTestFactory(t, &fakeCSM{res: initialised()})
	sw := &Sweeper{Factory: f, Conf: SweeperConfig{Interval: 5 * time.Millisecond, Retention: time.Hour}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
