// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/adsession/internal/domain/session/model"

// EventKind is a domain event in the session result lifecycle.
type EventKind int

const (
	EvUnknown       EventKind = iota
	EvResolved                // CSM accepted the session, analytics available
	EvDegraded                // playback may proceed, analytics unavailable
	EvRejected                // initialisation failed
	EvExpired                 // CSM reported the session gone
	EvAnalyticsLost           // polling gave up on an initialised session
)

func (k EventKind) String() string {
	switch k {
	case EvResolved:
		return "resolved"
	case EvDegraded:
		return "degraded"
	case EvRejected:
		return "rejected"
	case EvExpired:
		return "expired"
	case EvAnalyticsLost:
		return "analytics_lost"
	}
	return "unknown"
}

// Event carries optional domain metadata for a transition.
type Event struct {
	Kind   EventKind
	Code   model.ResultCode
	Reason model.ReasonCode
}
