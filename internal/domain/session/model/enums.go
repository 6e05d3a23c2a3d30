// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// SessionResult is the client-visible outcome of session initialisation.
// It is coarse-grained and stable across playback modes.
type SessionResult string

const (
	ResultNotInitialised SessionResult = "NOT_INITIALISED"
	ResultInitialised    SessionResult = "INITIALISED"
	ResultNoAnalytics    SessionResult = "NO_ANALYTICS"
	ResultFailed         SessionResult = "FAILED"
	ResultTimeout        SessionResult = "TIMEOUT"
)

// IsTerminal returns true if no further analytics or policy calls are served.
func (r SessionResult) IsTerminal() bool {
	switch r {
	case ResultFailed, ResultTimeout:
		return true
	}
	return false
}

// PlaybackMode selects how the session talks to the CSM and how the timeline evolves.
type PlaybackMode string

const (
	ModeVOD                PlaybackMode = "VOD"
	ModeLive               PlaybackMode = "LIVE"
	ModeDVRLive            PlaybackMode = "DVR_LIVE"
	ModeNonLinearStartOver PlaybackMode = "NONLINEAR_START_OVER"
)

// ParsePlaybackMode accepts the canonical names plus the short CLI forms.
func ParsePlaybackMode(s string) (PlaybackMode, bool) {
	switch s {
	case "VOD", "vod":
		return ModeVOD, true
	case "LIVE", "live":
		return ModeLive, true
	case "DVR_LIVE", "dvrlive", "dvr":
		return ModeDVRLive, true
	case "NONLINEAR_START_OVER", "startover":
		return ModeNonLinearStartOver, true
	}
	return "", false
}

// Seekable reports whether the mode exposes a seekable timeline.
func (m PlaybackMode) Seekable() bool {
	return m == ModeVOD || m == ModeDVRLive || m == ModeNonLinearStartOver
}

// HasTimelineUpFront reports whether the full timeline arrives with initialisation.
func (m PlaybackMode) HasTimelineUpFront() bool {
	return m == ModeVOD || m == ModeNonLinearStartOver
}

// AdBreakType classifies a break by the creatives it carries.
type AdBreakType string

const (
	BreakLinear    AdBreakType = "linear"
	BreakNonLinear AdBreakType = "nonlinear"
	BreakDisplay   AdBreakType = "display"
)

// AdBreakPosition is where a break sits relative to the content.
type AdBreakPosition string

const (
	PositionPreroll  AdBreakPosition = "preroll"
	PositionMidroll  AdBreakPosition = "midroll"
	PositionPostroll AdBreakPosition = "postroll"
	PositionUnknown  AdBreakPosition = "unknown"
)

// PlayerEvent is a playback transition forwarded by the host player.
type PlayerEvent string

const (
	PlayerStart        PlayerEvent = "start"
	PlayerStop         PlayerEvent = "stop"
	PlayerPause        PlayerEvent = "pause"
	PlayerResume       PlayerEvent = "resume"
	PlayerStall        PlayerEvent = "stall"
	PlayerContinue     PlayerEvent = "continue"
	PlayerAdvertRewind PlayerEvent = "advert_rewind"
	PlayerSeek         PlayerEvent = "seek"
	PlayerAdvertSkip   PlayerEvent = "advert_skip"
)

// ResourceType is the VAST resource flavour of a non-linear or companion creative.
type ResourceType string

const (
	ResourceStatic  ResourceType = "static"
	ResourceHTML    ResourceType = "html"
	ResourceIFrame  ResourceType = "iframe"
	ResourceUnknown ResourceType = "unknown"
)

// ViewSize is the player presentation size.
type ViewSize string

const (
	ViewExpanded  ViewSize = "expanded"
	ViewCollapsed ViewSize = "collapsed"
)

// ViewableEvent is an Open Measurement style viewability verdict.
type ViewableEvent string

const (
	Viewable         ViewableEvent = "Viewable"
	NotViewable      ViewableEvent = "NotViewable"
	ViewUndetermined ViewableEvent = "ViewUndetermined"
)

// EventCategory groups tracking beacons so that suppression can exempt some of them.
type EventCategory uint8

const (
	CategoryBreakEvents EventCategory = 1 << iota
	CategoryTimelineEvents

	CategoryNone EventCategory = 0
	CategoryAll  EventCategory = CategoryBreakEvents | CategoryTimelineEvents
)

// Has reports whether c includes other.
func (c EventCategory) Has(other EventCategory) bool {
	return other != 0 && c&other == other
}

// InvalidWindow is reported for DVR window values outside DVR-live sessions.
const InvalidWindow = -1.0
