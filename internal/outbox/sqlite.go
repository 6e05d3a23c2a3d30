// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 2

// SQLiteStore keeps entries in a WAL-mode SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("outbox: sqlite backend requires a path")
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if issues, err := sqlite.QuickCheck(context.Background(), db); err != nil || issues != nil {
		_ = db.Close()
		if err == nil {
			err = fmt.Errorf("corrupt database: %v", issues)
		}
		return nil, fmt.Errorf("outbox: %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("outbox: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	current, err := sqlite.UserVersion(s.db)
	if err != nil {
		return err
	}
	if current >= sqliteSchemaVersion {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	steps := []string{`
	CREATE TABLE IF NOT EXISTS beacons (
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
	CREATE INDEX IF NOT EXISTS idx_beacons_next ON beacons(next_attempt_ms, created_ms);
	`, `
	ALTER TABLE beacons ADD COLUMN user_agent TEXT NOT NULL DEFAULT '';
	ALTER TABLE beacons ADD COLUMN headers TEXT NOT NULL DEFAULT '';
	`}
	for _, step := range steps[current:] {
		if _, err := tx.Exec(step); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return err
	}
	logger := log.WithComponent("outbox")
	logger.Info().Int("from", current).Int("to", sqliteSchemaVersion).Msg("sqlite outbox migrated")
	return tx.Commit()
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return ErrInvalidKey
	}
	headers, err := encodeHeaders(e.Headers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO beacons (id, session_id, url, event, category, user_agent, headers, attempts, last_error, created_ms, next_attempt_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			next_attempt_ms = excluded.next_attempt_ms`,
		e.ID, e.SessionID, e.URL, e.Event, e.Category, e.UserAgent, headers, e.Attempts, e.LastError,
		e.CreatedAt.UnixMilli(), e.NextAttempt.UnixMilli())
	return err
}

func (s *SQLiteStore) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, url, event, category, user_agent, headers, attempts, last_error, created_ms, next_attempt_ms
		FROM beacons WHERE next_attempt_ms <= ?
		ORDER BY next_attempt_ms, created_ms LIMIT ?`, now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created, next int64
		var headers string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.URL, &e.Event, &e.Category, &e.UserAgent, &headers, &e.Attempts, &e.LastError, &created, &next); err != nil {
			return nil, err
		}
		if headers != "" {
			if err := json.Unmarshal([]byte(headers), &e.Headers); err != nil {
				return nil, fmt.Errorf("outbox: decode headers of %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = time.UnixMilli(created)
		e.NextAttempt = time.UnixMilli(next)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ack(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM beacons WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) Retry(ctx context.Context, id string, next time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE beacons SET attempts = attempts + 1, next_attempt_ms = ?, last_error = ? WHERE id = ?",
		next.UnixMilli(), lastErr, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM beacons").Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeHeaders(h map[string]string) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	buf, err := json.Marshal(h)
	return string(buf), err
}
