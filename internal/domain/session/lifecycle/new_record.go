// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// NewSessionRecord initializes a session record with canonical lifecycle defaults.
func NewSessionRecord(id, token, sourceURL string, mode model.PlaybackMode, now time.Time) *model.SessionRecord {
	return &model.SessionRecord{
		ID:        id,
		Token:     token,
		SourceURL: sourceURL,
		Mode:      mode,
		Result:    model.ResultNotInitialised,
		Code:      model.CodeSuccess,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
