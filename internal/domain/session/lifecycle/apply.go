// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// ApplyTransition mutates the session record according to the transition.
func ApplyTransition(rec *model.SessionRecord, tr Transition, code model.ResultCode, now time.Time) {
	rec.Result = tr.To
	rec.Code = code
	if tr.Reason != "" {
		rec.Reason = tr.Reason
	}
	if tr.From == model.ResultNotInitialised {
		rec.InitialisedAt = now
	}
	rec.UpdatedAt = now
}

// Close marks the record shut down. Closing is orthogonal to the result and idempotent.
func Close(rec *model.SessionRecord, now time.Time) bool {
	if rec.Closed {
		return false
	}
	rec.Closed = true
	rec.ClosedAt = now
	rec.UpdatedAt = now
	return true
}
