// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

var (
	ErrNotInitialised    = errors.New("session not initialised")
	ErrSessionFailed     = errors.New("session failed")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionClosed     = errors.New("session closed")
	ErrIllegalTransition = errors.New("illegal transition")
)

// ResultErrorClass returns the error that gates calls on a session in result r.
// NoAnalytics sessions still answer policy queries, so only the unresolved and
// terminal results are errors.
func ResultErrorClass(r model.SessionResult) error {
	switch r {
	case model.ResultNotInitialised:
		return ErrNotInitialised
	case model.ResultFailed:
		return ErrSessionFailed
	case model.ResultTimeout:
		return ErrSessionExpired
	default:
		return nil
	}
}

// Guard returns the error for any call on rec, including closure.
func Guard(rec *model.SessionRecord) error {
	if rec.Closed {
		return ErrSessionClosed
	}
	return ResultErrorClass(rec.Result)
}

// AnalyticsEnabled reports whether beacons may be fired for rec.
func AnalyticsEnabled(rec *model.SessionRecord) bool {
	return !rec.Closed && rec.Result == model.ResultInitialised && !rec.AnalyticsSuppressed
}
