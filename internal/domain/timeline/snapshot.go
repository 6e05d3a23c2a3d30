// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import "github.com/ManuGH/adsession/internal/domain/session/model"

// BreakSnapshot is the JSON view of a break, used by the debug API and the probe CLI.
type BreakSnapshot struct {
	ID       string                `json:"id"`
	Start    float64               `json:"start"`
	Duration float64               `json:"duration"`
	Position model.AdBreakPosition `json:"position"`
	Type     model.AdBreakType     `json:"type"`
	Active   bool                  `json:"active"`
	Adverts  []AdvertSnapshot      `json:"adverts"`
}

// AdvertSnapshot is the JSON view of an advert.
type AdvertSnapshot struct {
	ID          string         `json:"id"`
	MediaID     string         `json:"mediaId,omitempty"`
	Title       string         `json:"title,omitempty"`
	AdSystem    string         `json:"adSystem,omitempty"`
	Start       float64        `json:"start"`
	Duration    float64        `json:"duration"`
	SkipOffset  float64        `json:"skipOffset"`
	Active      bool           `json:"active"`
	Filler      bool           `json:"filler,omitempty"`
	NonLinears  int            `json:"nonLinears,omitempty"`
	Companions  int            `json:"companions,omitempty"`
	Interactive bool           `json:"interactive,omitempty"`
	Lineage     []WrapperEntry `json:"lineage,omitempty"`
	Pricing     *Pricing       `json:"pricing,omitempty"`
}

// Snapshot returns a point-in-time view of the timeline.
func (t *Timeline) Snapshot() []BreakSnapshot {
	breaks := t.Breaks()
	out := make([]BreakSnapshot, 0, len(breaks))
	for _, b := range breaks {
		out = append(out, b.Snapshot())
	}
	return out
}

// Snapshot returns a point-in-time view of the break and its adverts.
func (b *AdBreak) Snapshot() BreakSnapshot {
	bs := BreakSnapshot{
		ID:       b.ID,
		Start:    b.Start,
		Duration: b.Duration,
		Position: b.Position,
		Type:     b.Type,
		Active:   b.IsActive(),
		Adverts:  make([]AdvertSnapshot, 0, len(b.Adverts)),
	}
	for _, a := range b.Adverts {
		bs.Adverts = append(bs.Adverts, a.Snapshot())
	}
	return bs
}

// Snapshot returns a point-in-time view of the advert.
func (a *Advert) Snapshot() AdvertSnapshot {
	return AdvertSnapshot{
		ID:          a.ID,
		MediaID:     a.MediaID,
		Title:       a.AdTitle,
		AdSystem:    a.AdSystem,
		Start:       a.Start,
		Duration:    a.Duration,
		SkipOffset:  a.SkipOffset,
		Active:      a.IsActive(),
		Filler:      a.Filler,
		NonLinears:  len(a.NonLinears),
		Companions:  len(a.Companions),
		Interactive: a.Interactive != nil,
		Lineage:     a.Lineage,
		Pricing:     a.Pricing,
	}
}
