// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import "github.com/rs/zerolog"

// DebugArea is a bitmask selecting which subsystems emit debug output
// regardless of the global level.
type DebugArea uint32

const (
	DebugPlayback DebugArea = 1 << iota
	DebugLifecycle
	DebugPolling
	DebugReports
	DebugStateMachine
	DebugHTTPRequests
	DebugParsing
	DebugValidation

	DebugAll DebugArea = DebugPlayback | DebugLifecycle | DebugPolling | DebugReports |
		DebugStateMachine | DebugHTTPRequests | DebugParsing | DebugValidation
)

// Debug returns a debug event for area. When flags enable the area the event
// is promoted to info so it survives the default level, tagged with debug=true.
func Debug(l zerolog.Logger, flags, area DebugArea) *zerolog.Event {
	if flags&area != 0 {
		return l.Info().Bool("debug", true)
	}
	return l.Debug()
}
