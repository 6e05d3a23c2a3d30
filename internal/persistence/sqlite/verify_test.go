// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "p.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	v, err := UserVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestQuickCheckHealthy(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "q.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)")
	require.NoError(t, err)

	issues, err := QuickCheck(context.Background(), db)
	require.NoError(t, err)
	assert.Nil(t, issues)
}
