// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
)

var ErrClosed = errors.New("bus: closed")

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

const dropLogEvery = 100

var dropCount atomic.Uint64

// Subscription is one subscriber's view of the stream. C is closed when the
// subscription or the bus is closed.
type Subscription interface {
	C() <-chan Event
	Close() error
}

// MemoryBus fans events out to subscribers in publish order. Publish blocks
// while a subscriber's buffer is full, until ctx is done.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []*memSub
	closed bool
	buffer int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{buffer: DefaultBuffer}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		case <-s.done:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(string(ev.Kind), reason)
			if count := dropCount.Add(1); count%dropLogEvery == 0 {
				logger := log.WithComponent("bus")
				logger.Warn().
					Str("kind", string(ev.Kind)).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("event bus dropped events for slow subscribers")
			}
			return fmt.Errorf("publish %s: %w", ev.Kind, ctx.Err())
		}
	}
	return nil
}

// Subscribe registers a subscriber. It is closed automatically when ctx is
// done.
func (b *MemoryBus) Subscribe(ctx context.Context) (Subscription, error) {
	s := &memSub{b: b, ch: make(chan Event, b.buffer), done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	context.AfterFunc(ctx, func() { _ = s.Close() })
	return s, nil
}

// Close closes every subscription and rejects further publishes.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := append([]*memSub(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

// Len returns the number of live subscriptions.
func (b *MemoryBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type memSub struct {
	b    *MemoryBus
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *memSub) C() <-chan Event { return s.ch }

func (s *memSub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		out := s.b.subs[:0]
		for _, c := range s.b.subs {
			if c != s {
				out = append(out, c)
			}
		}
		s.b.subs = out
		close(s.ch)
	})
	return nil
}
