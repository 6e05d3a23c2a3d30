// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// QuickCheck runs PRAGMA quick_check on an open database and returns the
// diagnostic rows, or nil when the file is healthy.
func QuickCheck(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA quick_check")
	if err != nil {
		return nil, fmt.Errorf("sqlite: quick_check: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: scan quick_check: %w", err)
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 1 && strings.EqualFold(out[0], "ok") {
		return nil, nil
	}
	if len(out) == 0 {
		return []string{"quick_check returned no rows"}, nil
	}
	return out, nil
}
