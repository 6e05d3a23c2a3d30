// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus carries session notifications to subscribers. Every
// notification is one Event on one ordered channel per subscriber.
package bus

import (
	"time"

	"github.com/ManuGH/adsession/internal/domain/metadata"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
)

// Kind tags the payload of an Event.
type Kind string

const (
	KindSessionInitialised Kind = "SessionInitialised"
	KindAdBreakStart       Kind = "AdBreakStart"
	KindAdBreakEnd         Kind = "AdBreakEnd"
	KindAdvertStart        Kind = "AdvertStart"
	KindAdvertEnd          Kind = "AdvertEnd"
	KindAnalyticUpdate     Kind = "AnalyticUpdate"
	KindTrackingEvent      Kind = "TrackingEvent"
	KindSessionTimeout     Kind = "SessionTimeout"
	KindAdBreakEarlyReturn Kind = "AdBreakEarlyReturn"

	KindPlaybackReady         Kind = "PlaybackReady"
	KindPlaybackStarted       Kind = "PlaybackStarted"
	KindPlaybackEnded         Kind = "PlaybackEnded"
	KindPlaybackPaused        Kind = "PlaybackPaused"
	KindPlaybackResumed       Kind = "PlaybackResumed"
	KindPlaybackStalled       Kind = "PlaybackStalled"
	KindPlaybackContinued     Kind = "PlaybackContinued"
	KindPlaybackVolumeChanged Kind = "PlaybackVolumeChanged"

	KindTimedMetadata Kind = "TimedMetadata"
	KindVASTReceived  Kind = "VASTReceived"
	KindVMAPReceived  Kind = "VMAPReceived"
	KindWarning       Kind = "Warning"
)

// Event is a tagged union: Kind says which payload pointer is set.
type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"sessionId,omitempty"`
	Seq       uint64    `json:"seq"`
	At        time.Time `json:"at"`
	Playhead  float64   `json:"playhead"`

	Session  *SessionPayload          `json:"session,omitempty"`
	Break    *timeline.BreakSnapshot  `json:"break,omitempty"`
	Advert   *timeline.AdvertSnapshot `json:"advert,omitempty"`
	Tracking *TrackingPayload         `json:"tracking,omitempty"`
	Metadata *metadata.TimedMetadata  `json:"metadata,omitempty"`
	Volume   *VolumePayload           `json:"volume,omitempty"`
	Warning  *WarningPayload          `json:"warning,omitempty"`
	// Raw holds the received document for VASTReceived and VMAPReceived.
	Raw string `json:"raw,omitempty"`
}

// SessionPayload accompanies SessionInitialised and SessionTimeout.
type SessionPayload struct {
	Result      model.SessionResult `json:"result"`
	Code        model.ResultCode    `json:"code"`
	PlaybackURL string              `json:"playbackUrl,omitempty"`
}

// TrackingPayload describes a reported beacon.
type TrackingPayload struct {
	Event    string `json:"event"`
	BreakID  string `json:"breakId,omitempty"`
	AdvertID string `json:"advertId,omitempty"`
	URLs     int    `json:"urls"`
}

type VolumePayload struct {
	Muted bool `json:"muted"`
}

// WarningPayload reports a degraded session to the host.
type WarningPayload struct {
	Code    model.IntegrationCode `json:"code"`
	Message string                `json:"message"`
}
