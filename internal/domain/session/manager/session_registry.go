// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// sessionRegistry tracks a session's helper goroutines (initialisation,
// polling, keep-alive, prefetch) and joins them on shutdown.
type sessionRegistry struct {
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
	running atomic.Int32
}

// Go starts fn unless the registry is closing.
func (r *sessionRegistry) Go(fn func()) bool {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.running.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.running.Add(-1)
		fn()
	}()
	return true
}

// Running is the number of helpers that have not returned yet.
func (r *sessionRegistry) Running() int { return int(r.running.Load()) }

// CloseAndWait rejects new helpers and waits for the running ones, bounded by ctx.
func (r *sessionRegistry) CloseAndWait(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session helpers did not stop: %w", ctx.Err())
	}
}
