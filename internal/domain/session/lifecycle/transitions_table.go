// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/adsession/internal/domain/session/model"

// Transition is a single allowed edge in the result state machine.
type Transition struct {
	From   model.SessionResult
	To     model.SessionResult
	Event  EventKind
	Reason model.ReasonCode
}

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

var transitionsTable = []Transition{
	// Initialisation outcomes
	{From: model.ResultNotInitialised, To: model.ResultInitialised, Event: EvResolved},
	{From: model.ResultNotInitialised, To: model.ResultNoAnalytics, Event: EvDegraded},
	{From: model.ResultNotInitialised, To: model.ResultFailed, Event: EvRejected},

	// Running session
	{From: model.ResultInitialised, To: model.ResultTimeout, Event: EvExpired, Reason: model.RSessionExpired},
	{From: model.ResultInitialised, To: model.ResultNoAnalytics, Event: EvAnalyticsLost, Reason: model.RAnalyticsLost},
}

// TransitionFor returns the allowed transition for a given result+event.
func TransitionFor(from model.SessionResult, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
