// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Tracking event names as they appear in VAST TrackingEvents and in beacons.
const (
	TrackCreativeView            = "creativeView"
	TrackAcceptInvitation        = "acceptInvitation"
	TrackAcceptInvitationLinear  = "acceptInvitationLinear"
	TrackClickTracking           = "clickTracking"
	TrackClose                   = "close"
	TrackCloseLinear             = "closeLinear"
	TrackCollapse                = "collapse"
	TrackComplete                = "complete"
	TrackExitFullscreen          = "exitFullscreen"
	TrackExpand                  = "expand"
	TrackFirstQuartile           = "firstQuartile"
	TrackFullscreen              = "fullscreen"
	TrackIconClickTracking       = "iconClickTracking"
	TrackIconViewTracking        = "iconViewTracking"
	TrackImpression              = "impression"
	TrackMidpoint                = "midpoint"
	TrackMute                    = "mute"
	TrackStart                   = "start"
	TrackThirdQuartile           = "thirdQuartile"
	TrackUnmute                  = "unmute"
	TrackPause                   = "pause"
	TrackRewind                  = "rewind"
	TrackResume                  = "resume"
	TrackSkip                    = "skip"
	TrackProgress                = "progress"
	TrackNonLinearClickTracking  = "nonLinearClickTracking"
	TrackPlayerExpand            = "playerExpand"
	TrackPlayerCollapse          = "playerCollapse"
	TrackError                   = "error"
	TrackBreakStart              = "breakStart"
	TrackBreakEnd                = "breakEnd"
	TrackViewable                = "viewable"
	TrackNotViewable             = "notViewable"
	TrackViewUndetermined        = "viewUndetermined"
	TrackVerificationNotExecuted = "verificationNotExecuted"
)

// CategoryFor returns the suppression category of a tracking event.
// Break boundaries belong to BreakEvents, everything else to TimelineEvents.
func CategoryFor(event string) EventCategory {
	switch event {
	case TrackBreakStart, TrackBreakEnd:
		return CategoryBreakEvents
	}
	return CategoryTimelineEvents
}
