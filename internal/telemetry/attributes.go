// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	SessionIDKey     = "adsession.session_id"
	SessionModeKey   = "adsession.mode"
	SessionResultKey = "adsession.result"
	ResultCodeKey    = "adsession.result_code"

	BreakIDKey       = "adsession.break.id"
	BreakPositionKey = "adsession.break.position"
	AdvertIDKey      = "adsession.advert.id"

	BeaconEventKey    = "adsession.beacon.event"
	BeaconCategoryKey = "adsession.beacon.category"
	BeaconAttemptKey  = "adsession.beacon.attempt"

	CSMOperationKey = "adsession.csm.op"
	VASTDepthKey    = "adsession.vast.wrapper_depth"
)

// SessionAttributes describes a session span.
func SessionAttributes(sessionID, mode string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(SessionModeKey, mode)}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	return attrs
}

// ResultAttributes records the initial session outcome.
func ResultAttributes(result string, code int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionResultKey, result),
		attribute.Int(ResultCodeKey, code),
	}
}

// BeaconAttributes describes one tracking request.
func BeaconAttributes(event, category, breakID, advertID string, attempt int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	attrs = append(attrs,
		attribute.String(BeaconEventKey, event),
		attribute.String(BeaconCategoryKey, category),
		attribute.Int(BeaconAttemptKey, attempt),
	)
	if breakID != "" {
		attrs = append(attrs, attribute.String(BreakIDKey, breakID))
	}
	if advertID != "" {
		attrs = append(attrs, attribute.String(AdvertIDKey, advertID))
	}
	return attrs
}
