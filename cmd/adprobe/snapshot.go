// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/ManuGH/adsession/internal/api"
	"github.com/ManuGH/adsession/internal/domain/session/manager"
	"github.com/google/renameio/v2"
)

// writeSnapshot atomically replaces path with the session view as JSON.
func writeSnapshot(path string, s *manager.Session) error {
	data, err := json.MarshalIndent(api.NewSessionView(s, true), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	// renameio handles temp file creation, fsync and the atomic rename.
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}
