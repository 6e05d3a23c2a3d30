// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports declares the narrow interfaces the session manager needs from
// the outside world. The CSM transport and the VAST/VMAP builder sit behind
// them so sessions can be driven by fakes in tests.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
)

// ErrExpired is returned by a Poller once the CSM no longer knows the session.
var ErrExpired = errors.New("csm session expired")

// Resolution is the outcome of initialising a session against the CSM.
// Code is set even when Resolve returns an error; PlaybackURL may be set on
// a degraded result so the host can still play the source.
type Resolution struct {
	Code         model.ResultCode
	SessionID    string
	PlaybackURL  string
	AnalyticsURL string
	PollInterval time.Duration
	Window       *timeline.Window
	Duration     float64
	Breaks       []*timeline.AdBreak

	// RawVMAP and RawVAST carry the documents received while resolving.
	RawVMAP string
	RawVAST []string
	// Warnings are per-ad problems that did not stop the session.
	Warnings []error
}

// Update is one poll's worth of news. A nil *Update means nothing changed.
type Update struct {
	Breaks       []*timeline.AdBreak
	Window       *timeline.Window
	PollInterval time.Duration
	RawVMAP      string
	RawVAST      []string
	Warnings     []error
}

// Resolver initialises sessions.
type Resolver interface {
	Resolve(ctx context.Context, sourceURL string, mode model.PlaybackMode) (*Resolution, error)
}

// Poller fetches analytics updates for live sessions.
type Poller interface {
	Poll(ctx context.Context, analyticsURL string) (*Update, error)
}

// KeepAliver pings the stitching proxy while playback is paused.
type KeepAliver interface {
	KeepAlive(ctx context.Context, playbackURL string) error
}

// ResourceFetcher downloads creative resources for prefetching.
type ResourceFetcher interface {
	FetchResource(ctx context.Context, url string) ([]byte, error)
}

// CSM bundles every port a real CSM backend provides.
type CSM interface {
	Resolver
	Poller
	KeepAliver
	ResourceFetcher
}
