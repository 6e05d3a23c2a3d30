// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outbox

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore keeps entries for the life of the process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Put(_ context.Context, e Entry) error {
	if e.ID == "" {
		return ErrInvalidKey
	}
	e.Headers = maps.Clone(e.Headers)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *MemoryStore) Due(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	s.mu.Lock()
	all := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.Unlock()
	return sortDue(all, now, limit), nil
}

func (s *MemoryStore) Ack(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Retry(_ context.Context, id string, next time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Attempts++
	e.NextAttempt = next
	e.LastError = lastErr
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Close() error { return nil }
