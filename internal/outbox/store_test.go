// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/persistence/sqlite"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		BackendMemory: func(*testing.T) Store { return NewMemoryStore() },
		BackendSQLite: func(t *testing.T) Store {
			s, err := Open(Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "outbox.sqlite")})
			require.NoError(t, err)
			return s
		},
		BackendBadger: func(t *testing.T) Store {
			s, err := Open(Config{Backend: BackendBadger, Path: t.TempDir()})
			require.NoError(t, err)
			return s
		},
		BackendRedis: func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := Open(Config{Backend: BackendRedis, RedisAddr: mr.Addr()})
			require.NoError(t, err)
			return s
		},
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestStoreContract(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			require.ErrorIs(t, s.Put(ctx, Entry{URL: "x"}), ErrInvalidKey)

			for i, id := range []string{"c", "a", "b"} {
				require.NoError(t, s.Put(ctx, Entry{
					ID:          id,
					SessionID:   "sess-1",
					URL:         "https://t.example/" + id,
					Event:       "impression",
					Category:    "break",
					CreatedAt:   base,
					NextAttempt: base.Add(time.Duration(i) * time.Second),
				}))
			}
			n, err := s.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			due, err := s.Due(ctx, base.Add(time.Second), 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "a"}, ids(due))
			assert.Equal(t, "https://t.example/c", due[0].URL)
			assert.Equal(t, "sess-1", due[0].SessionID)

			due, err = s.Due(ctx, base.Add(time.Hour), 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "a"}, ids(due))

			require.NoError(t, s.Retry(ctx, "c", base.Add(time.Minute), "HTTP 503"))
			due, err = s.Due(ctx, base.Add(10*time.Second), 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(due))

			due, err = s.Due(ctx, base.Add(time.Minute), 0)
			require.NoError(t, err)
			require.Len(t, due, 3)
			assert.Equal(t, "c", due[2].ID)
			assert.Equal(t, 1, due[2].Attempts)
			assert.Equal(t, "HTTP 503", due[2].LastError)

			require.NoError(t, s.Ack(ctx, "a"))
			assert.ErrorIs(t, s.Ack(ctx, "a"), ErrNotFound)
			assert.ErrorIs(t, s.Retry(ctx, "missing", base, ""), ErrNotFound)

			n, err = s.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestStoreKeepsRequestHeaders(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			headers := map[string]string{"X-Region": "eu"}
			require.NoError(t, s.Put(ctx, Entry{
				ID: "h", URL: "https://t.example/h", Event: "start",
				UserAgent: "adsession/test", Headers: headers,
				CreatedAt: base, NextAttempt: base,
			}))
			headers["X-Region"] = "us"
			require.NoError(t, s.Retry(ctx, "h", base.Add(time.Second), "HTTP 500"))

			due, err := s.Due(ctx, base.Add(time.Minute), 0)
			require.NoError(t, err)
			require.Len(t, due, 1)
			assert.Equal(t, "adsession/test", due[0].UserAgent)
			assert.Equal(t, map[string]string{"X-Region": "eu"}, due[0].Headers)
		})
	}
}

func TestSQLiteStoreMigratesFirstSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outbox.sqlite")
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec(`
	CREATE TABLE beacons (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		event TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_ms INTEGER NOT NULL,
		next_attempt_ms INTEGER NOT NULL
	);
	INSERT INTO beacons (id, url, event, created_ms, next_attempt_ms) VALUES ('old', 'u', 'start', 0, 0);
	PRAGMA user_version = 1;`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	due, err := s.Due(ctx, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "old", due[0].ID)
	assert.Empty(t, due[0].UserAgent)
	assert.Nil(t, due[0].Headers)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outbox.sqlite")
	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, Entry{ID: "x", URL: "u", Event: "start", CreatedAt: time.Now(), NextAttempt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "etcd"})
	assert.Error(t, err)
	_, err = Open(Config{Backend: BackendSQLite})
	assert.Error(t, err)
	_, err = Open(Config{Backend: BackendRedis})
	assert.Error(t, err)
}
