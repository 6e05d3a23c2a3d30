// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// Dispatch resolves the next transition from the tables and applies it.
// It is the only entry point that mutates rec.Result.
func Dispatch(rec *model.SessionRecord, ev Event, now time.Time) (Transition, error) {
	decision, ok := DecisionFor(rec.Result, ev.Kind)
	if !ok || !decision.Allowed {
		return illegalTransition(rec, rec.Result, ev.Kind, now)
	}
	tr, ok := TransitionFor(rec.Result, ev.Kind)
	if !ok {
		return illegalTransition(rec, rec.Result, ev.Kind, now)
	}
	if ev.Reason != "" {
		tr.Reason = ev.Reason
	}
	code := ev.Code
	if tr.From != model.ResultNotInitialised && code == model.CodeSuccess {
		code = rec.Code
	}
	ApplyTransition(rec, tr, code, now)
	return tr, nil
}

// EventForCode maps an initialisation result code onto the lifecycle event
// that resolves a NotInitialised session.
//
// Transport failures and fallbacks degrade to NoAnalytics: the host may still
// play the source URL. Anything that proves the URL can never produce an ad
// session fails it.
func EventForCode(code model.ResultCode) Event {
	switch {
	case code == model.CodeSuccess:
		return Event{Kind: EvResolved, Code: code, Reason: model.RNone}
	case code == model.CodeConnectionError:
		return Event{Kind: EvDegraded, Code: code, Reason: model.RConnection}
	case code == model.CodeConnectionTimeout:
		return Event{Kind: EvDegraded, Code: code, Reason: model.RTimeout}
	case code == model.CodeProxyError:
		return Event{Kind: EvDegraded, Code: code, Reason: model.RProxy}
	case code == model.CodeFallbackURL:
		return Event{Kind: EvDegraded, Code: code, Reason: model.RFallback}
	case code == model.CodeMalformedURL:
		return Event{Kind: EvRejected, Code: code, Reason: model.RBadURL}
	case code == model.CodeNonSDKURL:
		return Event{Kind: EvRejected, Code: code, Reason: model.RNotSDKStream}
	case code == model.CodeNoDVRLive:
		return Event{Kind: EvRejected, Code: code, Reason: model.RNoDVR}
	case code == model.CodeUnknownFormat:
		return Event{Kind: EvRejected, Code: code, Reason: model.RUnknownFormat}
	case code >= 500 && code <= 599:
		return Event{Kind: EvDegraded, Code: code, Reason: model.RHTTPServer}
	case code.IsHTTPStatus():
		return Event{Kind: EvRejected, Code: code, Reason: model.RHTTPClient}
	}
	return Event{Kind: EvRejected, Code: code, Reason: model.RInvariantViolation}
}

// ResultForCode is the result a fresh session ends in for code.
func ResultForCode(code model.ResultCode) model.SessionResult {
	tr, ok := TransitionFor(model.ResultNotInitialised, EventForCode(code).Kind)
	if !ok {
		return model.ResultFailed
	}
	return tr.To
}
