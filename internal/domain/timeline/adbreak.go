// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"sync"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// AdBreak is a contiguous run of adverts at one position in the content.
type AdBreak struct {
	ID         string
	Start      float64
	Duration   float64
	Position   model.AdBreakPosition
	Type       model.AdBreakType
	Extensions []*XMLNode
	Adverts    []*Advert
	Tracking   []TrackingEvent

	mu       sync.Mutex
	active   bool
	fired    map[string]bool
	reporter Reporter
}

// NewAdBreak assembles a break from adverts built by the parser. Adverts are
// attached in the order given.
func NewAdBreak(id string, start, duration float64, pos model.AdBreakPosition, typ model.AdBreakType, adverts ...*Advert) *AdBreak {
	b := &AdBreak{
		ID:       id,
		Start:    start,
		Duration: duration,
		Position: pos,
		Type:     typ,
		Adverts:  adverts,
		active:   true,
		fired:    make(map[string]bool),
	}
	for _, a := range adverts {
		a.assemble(b)
	}
	return b
}

func (b *AdBreak) bind(r Reporter) {
	b.mu.Lock()
	b.reporter = r
	b.mu.Unlock()
	for _, a := range b.Adverts {
		a.bind(r)
	}
}

// End is the playhead at which the break finishes.
func (b *AdBreak) End() float64 { return b.Start + b.Duration }

// Contains reports whether playhead falls inside the break.
func (b *AdBreak) Contains(playhead float64) bool {
	return playhead >= b.Start && playhead < b.End()
}

// IsLinear reports whether the break interrupts the content.
func (b *AdBreak) IsLinear() bool { return b.Type == model.BreakLinear }

// IsActive reports whether the break still has to be played.
func (b *AdBreak) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// SetInactive marks the break and every advert in it as consumed.
// Inactive adverts never fire further tracking.
func (b *AdBreak) SetInactive() {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()
	for _, a := range b.Adverts {
		a.setInactive()
	}
}

// RemainingTime is the time left in the break at playhead, clamped to [0, Duration].
func (b *AdBreak) RemainingTime(playhead float64) float64 {
	return clamp(b.End()-playhead, 0, b.Duration)
}

// AdvertAt returns the advert playing at playhead.
func (b *AdBreak) AdvertAt(playhead float64) *Advert {
	for _, a := range b.Adverts {
		if a.Contains(playhead) {
			return a
		}
	}
	return nil
}

// AdvertByMediaID finds an advert by its stitched media identifier.
func (b *AdBreak) AdvertByMediaID(mediaID string) *Advert {
	for _, a := range b.Adverts {
		if a.MediaID == mediaID {
			return a
		}
	}
	return nil
}

// HasActiveAdvertsAfter reports whether an active advert ends after playhead.
func (b *AdBreak) HasActiveAdvertsAfter(playhead float64) bool {
	for _, a := range b.Adverts {
		if a.IsActive() && a.End() > playhead {
			return true
		}
	}
	return false
}

// NonLinearTrackingEventDidOccur reports event on every non-linear creative in the break.
func (b *AdBreak) NonLinearTrackingEventDidOccur(event string) {
	for _, a := range b.Adverts {
		for _, n := range a.NonLinears {
			n.TrackingEventDidOccur(event)
		}
	}
}

// ReportBreakStart fires breakStart once.
func (b *AdBreak) ReportBreakStart() { b.reportOnce(model.TrackBreakStart) }

// ReportBreakEnd fires breakEnd once.
func (b *AdBreak) ReportBreakEnd() { b.reportOnce(model.TrackBreakEnd) }

func (b *AdBreak) reportOnce(event string) {
	b.mu.Lock()
	if !b.active || b.fired[event] {
		b.mu.Unlock()
		return
	}
	if b.fired == nil {
		b.fired = make(map[string]bool)
	}
	b.fired[event] = true
	r := b.reporter
	b.mu.Unlock()

	if r == nil {
		return
	}
	var urls []string
	for _, t := range b.Tracking {
		if t.Event == event {
			urls = append(urls, t.URL)
		}
	}
	r.Report(Beacon{
		Event:    event,
		URLs:     urls,
		Category: model.CategoryBreakEvents,
		BreakID:  b.ID,
		Position: b.Position,
	})
}
