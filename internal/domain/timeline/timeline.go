// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

var (
	ErrNotNonLinear  = errors.New("ad break is not non-linear")
	ErrBreakNotFound = errors.New("ad break not found")
)

// Timeline is the ordered set of ad breaks of a stream.
//
// Playheads are absolute positions in the stitched stream. Content positions
// exclude the time taken by linear breaks. Non-linear and display breaks
// overlay the content and do not shift content positions.
type Timeline struct {
	mu       sync.RWMutex
	breaks   []*AdBreak
	reporter Reporter
}

// New returns a timeline of breaks sorted by start.
func New(breaks ...*AdBreak) *Timeline {
	t := &Timeline{breaks: slices.Clone(breaks)}
	t.sort()
	return t
}

func (t *Timeline) sort() {
	sort.SliceStable(t.breaks, func(i, j int) bool { return t.breaks[i].Start < t.breaks[j].Start })
}

// Bind routes every beacon raised inside the timeline to r.
func (t *Timeline) Bind(r Reporter) {
	t.mu.Lock()
	t.reporter = r
	breaks := slices.Clone(t.breaks)
	t.mu.Unlock()
	for _, b := range breaks {
		b.bind(r)
	}
}

// Breaks returns all breaks in start order.
func (t *Timeline) Breaks() []*AdBreak {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.breaks)
}

// BreaksOfType returns the breaks of typ in start order.
func (t *Timeline) BreaksOfType(typ model.AdBreakType) []*AdBreak {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*AdBreak
	for _, b := range t.breaks {
		if b.Type == typ {
			out = append(out, b)
		}
	}
	return out
}

// Len is the number of breaks.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.breaks)
}

// BreakByID finds a break by identifier.
func (t *Timeline) BreakByID(id string) *AdBreak {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, b := range t.breaks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// CurrentBreak returns the break containing playhead. Linear breaks win over
// overlays when both contain it.
func (t *Timeline) CurrentBreak(playhead float64) *AdBreak {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var overlay *AdBreak
	for _, b := range t.breaks {
		if !b.Contains(playhead) {
			continue
		}
		if b.IsLinear() {
			return b
		}
		if overlay == nil {
			overlay = b
		}
	}
	return overlay
}

// CurrentAdvert returns the advert playing at playhead.
func (t *Timeline) CurrentAdvert(playhead float64) *Advert {
	b := t.CurrentBreak(playhead)
	if b == nil {
		return nil
	}
	return b.AdvertAt(playhead)
}

// NextBreak returns the first break starting after playhead.
func (t *Timeline) NextBreak(playhead float64) *AdBreak {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, b := range t.breaks {
		if b.Start > playhead {
			return b
		}
	}
	return nil
}

// ActiveLinearBreaksBetween returns active linear breaks starting in (from, to].
func (t *Timeline) ActiveLinearBreaksBetween(from, to float64) []*AdBreak {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*AdBreak
	for _, b := range t.breaks {
		if b.IsLinear() && b.Start > from && b.Start <= to && b.IsActive() {
			out = append(out, b)
		}
	}
	return out
}

// ContentPositionForPlayhead converts an absolute playhead to a content
// position. Inside a linear break it returns the content position the break
// sits at.
func (t *Timeline) ContentPositionForPlayhead(playhead float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	passed := 0.0
	for _, b := range t.breaks {
		if !b.IsLinear() {
			continue
		}
		if playhead >= b.End() {
			passed += b.Duration
			continue
		}
		if playhead >= b.Start {
			return b.Start - passed
		}
		break
	}
	return playhead - passed
}

// PlayheadForContentPosition converts a content position back to the
// absolute playhead. A break sitting exactly at position is played first, so
// the result is the playhead right after it.
func (t *Timeline) PlayheadForContentPosition(position float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	passed := 0.0
	for _, b := range t.breaks {
		if !b.IsLinear() {
			continue
		}
		if b.Start <= position+passed {
			passed += b.Duration
			continue
		}
		break
	}
	return position + passed
}

// TotalAdDuration is the time taken by linear breaks.
func (t *Timeline) TotalAdDuration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0.0
	for _, b := range t.breaks {
		if b.IsLinear() {
			total += b.Duration
		}
	}
	return total
}

// HasPreroll reports whether a linear break sits at the very start.
func (t *Timeline) HasPreroll() bool {
	for _, b := range t.BreaksOfType(model.BreakLinear) {
		if b.Position == model.PositionPreroll {
			return true
		}
	}
	return false
}

// HasPostroll reports whether a linear postroll break exists.
func (t *Timeline) HasPostroll() bool {
	for _, b := range t.BreaksOfType(model.BreakLinear) {
		if b.Position == model.PositionPostroll {
			return true
		}
	}
	return false
}

// SetInactivePriorTo deactivates every break that ends at or before playhead,
// without firing tracking. Returns the breaks that changed.
func (t *Timeline) SetInactivePriorTo(playhead float64) []*AdBreak {
	var changed []*AdBreak
	for _, b := range t.Breaks() {
		if b.End() <= playhead && b.IsActive() {
			b.SetInactive()
			changed = append(changed, b)
		}
	}
	return changed
}

// RemoveNonLinearBreak drops an overlay break once the host has shown it.
func (t *Timeline) RemoveNonLinearBreak(b *AdBreak) error {
	if b == nil {
		return ErrBreakNotFound
	}
	if b.IsLinear() {
		return ErrNotNonLinear
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := slices.Index(t.breaks, b)
	if idx < 0 {
		return ErrBreakNotFound
	}
	t.breaks = slices.Delete(t.breaks, idx, idx+1)
	b.SetInactive()
	return nil
}

// RemoveAllNonLinearBreaks drops every overlay break and returns how many were removed.
func (t *Timeline) RemoveAllNonLinearBreaks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.breaks[:0]
	removed := 0
	for _, b := range t.breaks {
		if b.Type == model.BreakNonLinear {
			b.SetInactive()
			removed++
			continue
		}
		kept = append(kept, b)
	}
	clear(t.breaks[len(kept):])
	t.breaks = kept
	return removed
}

// Merge adds breaks not yet known by ID, keeping the state of existing ones.
// Used when live polling delivers an updated break list. Returns the added breaks.
func (t *Timeline) Merge(breaks []*AdBreak) []*AdBreak {
	t.mu.Lock()
	known := make(map[string]struct{}, len(t.breaks))
	for _, b := range t.breaks {
		known[b.ID] = struct{}{}
	}
	var added []*AdBreak
	for _, b := range breaks {
		if _, ok := known[b.ID]; ok {
			continue
		}
		known[b.ID] = struct{}{}
		t.breaks = append(t.breaks, b)
		added = append(added, b)
	}
	t.sort()
	r := t.reporter
	t.mu.Unlock()

	if r != nil {
		for _, b := range added {
			b.bind(r)
		}
	}
	return added
}

// PruneBefore drops inactive breaks that ended before playhead, bounding the
// timeline of long-running live sessions.
func (t *Timeline) PruneBefore(playhead float64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.breaks[:0]
	pruned := 0
	for _, b := range t.breaks {
		if b.End() < playhead && !b.IsActive() {
			pruned++
			continue
		}
		kept = append(kept, b)
	}
	clear(t.breaks[len(kept):])
	t.breaks = kept
	return pruned
}
