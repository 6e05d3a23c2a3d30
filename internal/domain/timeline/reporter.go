// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package timeline models the ad timeline of a session: breaks, adverts,
// creatives and their resources, plus the tracking hooks that turn playback
// and UI activity into beacons.
//
// Structural fields are populated once by the VAST/VMAP builder and are
// read-only afterwards. Activity, visibility and macro state are guarded and
// may be touched from host goroutines.
package timeline

import "github.com/ManuGH/adsession/internal/domain/session/model"

// Beacon is one tracking occurrence. URLs may be empty; the event is still
// reported so observers see it.
type Beacon struct {
	Event       string
	URLs        []string
	Category    model.EventCategory
	BreakID     string
	AdvertID    string
	CreativeID  string
	Position    model.AdBreakPosition
	AdServingID string
	AdOffset    float64
	ErrorCode   int
	Reason      string
	Macros      map[string]string
}

// Reporter receives beacons. Implementations must not block.
type Reporter interface {
	Report(b Beacon)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Beacon)

func (f ReporterFunc) Report(b Beacon) { f(b) }

type nopReporter struct{}

func (nopReporter) Report(Beacon) {}
