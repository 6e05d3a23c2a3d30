// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package outbox persists tracking beacons that could not be delivered so
// they can be replayed later.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrNotFound   = errors.New("outbox: entry not found")
	ErrInvalidKey = errors.New("outbox: entry id is required")
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Entry is one undelivered beacon.
type Entry struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionId,omitempty"`
	URL         string            `json:"url"`
	Event       string            `json:"event"`
	Category    string            `json:"category,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Attempts    int               `json:"attempts"`
	LastError   string            `json:"lastError,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	NextAttempt time.Time         `json:"nextAttempt"`
}

// Store is implemented by every backend. Due returns entries whose next
// attempt is not after now, oldest first.
type Store interface {
	Put(ctx context.Context, e Entry) error
	Due(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	Ack(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, next time.Time, lastErr string) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Path      string
	RedisAddr string
	RedisKey  string
}

// Open creates the configured store.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLiteStore(cfg.Path)
	case BackendBadger:
		return OpenBadgerStore(cfg.Path)
	case BackendRedis:
		return OpenRedisStore(cfg.RedisAddr, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("outbox: unknown backend %q", cfg.Backend)
	}
}

func sortDue(entries []Entry, now time.Time, limit int) []Entry {
	out := entries[:0]
	for _, e := range entries {
		if !e.NextAttempt.After(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NextAttempt.Equal(out[j].NextAttempt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].NextAttempt.Before(out[j].NextAttempt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
