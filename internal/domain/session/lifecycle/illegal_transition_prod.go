// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !debug

package lifecycle

import (
	"fmt"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// illegalTransition leaves the record untouched. A late poll result or a
// duplicate init completion must not corrupt a session that already resolved.
func illegalTransition(rec *model.SessionRecord, from model.SessionResult, ev EventKind, now time.Time) (Transition, error) {
	return Transition{From: from, To: from, Event: ev}, fmt.Errorf("%w: %s + %v (%s)",
		ErrIllegalTransition, from, ev, ForbiddenTransitionReason(from, ev))
}
