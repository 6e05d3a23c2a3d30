// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/adsession/internal/domain/session/model"

const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenOutOfOrder        = "out_of_order"
	ForbiddenAlreadyResolved   = "already_resolved"
	ForbiddenRequiresAnalytics = "requires_analytics"
)

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

func absorbing() map[EventKind]Decision {
	return map[EventKind]Decision{
		EvResolved:      forbid(ForbiddenTerminalAbsorbing),
		EvDegraded:      forbid(ForbiddenTerminalAbsorbing),
		EvRejected:      forbid(ForbiddenTerminalAbsorbing),
		EvExpired:       forbid(ForbiddenTerminalAbsorbing),
		EvAnalyticsLost: forbid(ForbiddenTerminalAbsorbing),
	}
}

// decisionTable defines an explicit decision for every Result×Event combination.
var decisionTable = map[model.SessionResult]map[EventKind]Decision{
	model.ResultNotInitialised: {
		EvResolved:      allowed(),
		EvDegraded:      allowed(),
		EvRejected:      allowed(),
		EvExpired:       forbid(ForbiddenOutOfOrder),
		EvAnalyticsLost: forbid(ForbiddenOutOfOrder),
	},
	model.ResultInitialised: {
		EvResolved:      forbid(ForbiddenAlreadyResolved),
		EvDegraded:      forbid(ForbiddenAlreadyResolved),
		EvRejected:      forbid(ForbiddenAlreadyResolved),
		EvExpired:       allowed(),
		EvAnalyticsLost: allowed(),
	},
	model.ResultNoAnalytics: {
		EvResolved:      forbid(ForbiddenAlreadyResolved),
		EvDegraded:      forbid(ForbiddenAlreadyResolved),
		EvRejected:      forbid(ForbiddenAlreadyResolved),
		EvExpired:       forbid(ForbiddenRequiresAnalytics),
		EvAnalyticsLost: forbid(ForbiddenRequiresAnalytics),
	},
	model.ResultFailed:  absorbing(),
	model.ResultTimeout: absorbing(),
}

// DecisionFor returns the explicit decision for a result+event pair.
func DecisionFor(from model.SessionResult, ev EventKind) (Decision, bool) {
	byEvent, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := byEvent[ev]
	return d, ok
}

// ForbiddenTransitionReason documents why a transition is disallowed.
func ForbiddenTransitionReason(from model.SessionResult, ev EventKind) string {
	decision, ok := DecisionFor(from, ev)
	if !ok || decision.Allowed {
		return ""
	}
	return decision.Reason
}
