// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultCodeString(t *testing.T) {
	assert.Equal(t, "CONNECTION_TIMEOUT", CodeConnectionTimeout.String())
	assert.Equal(t, "HTTP_404", ResultCode(404).String())
	assert.Equal(t, "CODE_-99", ResultCode(-99).String())
	assert.True(t, ResultCode(503).IsHTTPStatus())
	assert.False(t, CodeFallbackURL.IsHTTPStatus())
}

func TestParsePlaybackMode(t *testing.T) {
	for in, want := range map[string]PlaybackMode{
		"vod": ModeVOD, "LIVE": ModeLive, "dvr": ModeDVRLive, "startover": ModeNonLinearStartOver,
	} {
		got, ok := ParsePlaybackMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParsePlaybackMode("livepause")
	assert.False(t, ok)
}

func TestEventCategory(t *testing.T) {
	assert.True(t, CategoryAll.Has(CategoryBreakEvents))
	assert.False(t, CategoryTimelineEvents.Has(CategoryBreakEvents))
	assert.False(t, CategoryAll.Has(CategoryNone))
	assert.Equal(t, CategoryBreakEvents, CategoryFor(TrackBreakEnd))
	assert.Equal(t, CategoryTimelineEvents, CategoryFor(TrackMidpoint))
}

func TestIsSafeToken(t *testing.T) {
	assert.True(t, IsSafeToken("abc-DEF_123"))
	assert.False(t, IsSafeToken("../etc"))
	assert.False(t, IsSafeToken(""))
}

func TestSessionResultTerminal(t *testing.T) {
	assert.True(t, ResultTimeout.IsTerminal())
	assert.True(t, ResultFailed.IsTerminal())
	assert.False(t, ResultNoAnalytics.IsTerminal())
}
