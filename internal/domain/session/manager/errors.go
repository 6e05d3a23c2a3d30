// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"errors"
	"fmt"

	"github.com/ManuGH/adsession/internal/domain/session/lifecycle"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
)

var (
	ErrNotInitialised = lifecycle.ErrNotInitialised
	ErrSessionFailed  = lifecycle.ErrSessionFailed
	ErrSessionExpired = lifecycle.ErrSessionExpired
	ErrSessionClosed  = lifecycle.ErrSessionClosed
	ErrNotNonLinear   = timeline.ErrNotNonLinear

	ErrSeekInProgress = errors.New("seek already in progress")
	ErrSeekNotStarted = errors.New("seek end without seek start")
	ErrUnknownSession = errors.New("unknown session token")
	ErrNoAdvert       = errors.New("no advert is playing")
	ErrFactoryClosed  = errors.New("session factory closed")
	ErrNilPolicy      = errors.New("policy handler is nil")
)

// ErrSamePlayer is returned when the player already attached to a session is
// attached again.
var ErrSamePlayer = &LegacyError{Code: model.LegacySetSamePlayer, Msg: "player already set"}

// LegacyError carries the numeric codes of the older session API.
type LegacyError struct {
	Code int
	Msg  string
}

func (e *LegacyError) Error() string { return fmt.Sprintf("%s (%d)", e.Msg, e.Code) }
