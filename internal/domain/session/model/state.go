// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// SessionRecord is the serialisable snapshot of an ad session.
type SessionRecord struct {
	ID          string        `json:"id"`
	Token       string        `json:"token"`
	SourceURL   string        `json:"sourceUrl"`
	PlaybackURL string        `json:"playbackUrl,omitempty"`
	Mode        PlaybackMode  `json:"mode"`
	Result      SessionResult `json:"result"`
	Code        ResultCode    `json:"resultCode"`

	AnalyticsSuppressed bool `json:"analyticsSuppressed"`
	Closed              bool `json:"closed"`

	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	InitialisedAt time.Time `json:"initialisedAt,omitempty"`
	ClosedAt      time.Time `json:"closedAt,omitempty"`

	// Reason is the last lifecycle reason, empty on the happy path.
	Reason ReasonCode `json:"reason,omitempty"`
}

// ReasonCode is a compact, typed decision signal attached to lifecycle transitions.
// Keep these stable: metrics depend on them.
type ReasonCode string

const (
	RNone               ReasonCode = "R_NONE"
	RConnection         ReasonCode = "R_CONNECTION"
	RTimeout            ReasonCode = "R_TIMEOUT"
	RBadURL             ReasonCode = "R_BAD_URL"
	RNotSDKStream       ReasonCode = "R_NOT_SDK_STREAM"
	RNoDVR              ReasonCode = "R_NO_DVR"
	RProxy              ReasonCode = "R_PROXY"
	RUnknownFormat      ReasonCode = "R_UNKNOWN_FORMAT"
	RFallback           ReasonCode = "R_FALLBACK"
	RHTTPClient         ReasonCode = "R_HTTP_CLIENT"
	RHTTPServer         ReasonCode = "R_HTTP_SERVER"
	RSessionExpired     ReasonCode = "R_SESSION_EXPIRED"
	RAnalyticsLost      ReasonCode = "R_ANALYTICS_LOST"
	RClientShutdown     ReasonCode = "R_CLIENT_SHUTDOWN"
	RInvariantViolation ReasonCode = "R_INVARIANT_VIOLATION"
)
