// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldToken         = "token"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Timeline fields
	FieldBreakID    = "break_id"
	FieldAdvertID   = "advert_id"
	FieldCreativeID = "creative_id"
	FieldMediaID    = "media_id"
	FieldPlayhead   = "playhead"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldMode      = "mode"

	// State fields
	FieldResult     = "result"
	FieldResultCode = "result_code"
	FieldOldState   = "old_state"
	FieldNewState   = "new_state"

	// Network fields
	FieldURL    = "url"
	FieldStatus = "status"
	FieldHost   = "host"
)
