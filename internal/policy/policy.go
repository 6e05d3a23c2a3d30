// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package policy decides whether user-initiated playback actions are
// allowed. Handlers receive the playhead and an immutable timeline snapshot;
// they must not block or perform I/O.
package policy

import (
	"sync"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
)

// NotAllowed is returned by CanSkip when skipping is not possible.
const NotAllowed = -1.0

// Handler is the pluggable policy. Timeline arguments are snapshots owned by
// the caller.
type Handler interface {
	CanStop(playhead float64, tl []timeline.BreakSnapshot) bool
	CanPause(playhead float64, tl []timeline.BreakSnapshot) bool
	// CanSkip returns the seconds until the current advert may be skipped,
	// 0 when it may be skipped now, or NotAllowed.
	CanSkip(playhead float64, tl []timeline.BreakSnapshot, duration float64) float64
	// WillSeekTo returns the position playback should actually seek to.
	WillSeekTo(position float64, tl []timeline.BreakSnapshot, playhead float64) float64
	CanChangeVolume(mute bool, playhead float64, tl []timeline.BreakSnapshot) bool
	CanResize(fullscreen bool, playhead float64, tl []timeline.BreakSnapshot) bool
	CanResizeCreative(expand bool, playhead float64, tl []timeline.BreakSnapshot) bool
	CanClickThrough(url string, playhead float64, tl []timeline.BreakSnapshot) bool
	SetPlaybackMode(mode model.PlaybackMode)
	DidSkip(from, to float64, tl []timeline.BreakSnapshot)
	DidSeek(from, to float64, tl []timeline.BreakSnapshot)
}

// Default implements the usual rules:
//   - live playback cannot be paused, skipped or seeked;
//   - adverts can be skipped once their skip offset has elapsed;
//   - seeking forward over an unwatched linear break lands on that break;
//   - click-through is only offered while an advert plays.
type Default struct {
	mu   sync.RWMutex
	mode model.PlaybackMode
}

var _ Handler = (*Default)(nil)

func NewDefault(mode model.PlaybackMode) *Default {
	return &Default{mode: mode}
}

func (d *Default) live() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode == model.ModeLive
}

func (d *Default) SetPlaybackMode(mode model.PlaybackMode) {
	d.mu.Lock()
	d.mode = mode
	d.mu.Unlock()
}

func (d *Default) CanStop(float64, []timeline.BreakSnapshot) bool { return true }

func (d *Default) CanPause(float64, []timeline.BreakSnapshot) bool { return !d.live() }

func (d *Default) CanSkip(playhead float64, tl []timeline.BreakSnapshot, _ float64) float64 {
	if d.live() {
		return NotAllowed
	}
	_, ad := AdvertAt(tl, playhead)
	if ad == nil || ad.SkipOffset < 0 {
		return NotAllowed
	}
	if remaining := ad.Start + ad.SkipOffset - playhead; remaining > 0 {
		return remaining
	}
	return 0
}

func (d *Default) WillSeekTo(position float64, tl []timeline.BreakSnapshot, playhead float64) float64 {
	if d.live() {
		return playhead
	}
	if b := BreakAt(tl, playhead); b != nil && b.Active && b.Type == model.BreakLinear {
		return playhead
	}
	if position <= playhead {
		return position
	}
	var snap *timeline.BreakSnapshot
	for i := range tl {
		b := &tl[i]
		if !b.Active || b.Type != model.BreakLinear {
			continue
		}
		if b.Start > playhead && b.Start <= position {
			snap = b
		}
	}
	if snap != nil {
		return snap.Start
	}
	return position
}

func (d *Default) CanChangeVolume(bool, float64, []timeline.BreakSnapshot) bool { return true }

func (d *Default) CanResize(bool, float64, []timeline.BreakSnapshot) bool { return true }

func (d *Default) CanResizeCreative(bool, float64, []timeline.BreakSnapshot) bool { return true }

func (d *Default) CanClickThrough(_ string, playhead float64, tl []timeline.BreakSnapshot) bool {
	_, ad := AdvertAt(tl, playhead)
	return ad != nil
}

func (d *Default) DidSkip(float64, float64, []timeline.BreakSnapshot) {}

func (d *Default) DidSeek(float64, float64, []timeline.BreakSnapshot) {}

// BreakAt returns the break whose span contains playhead.
func BreakAt(tl []timeline.BreakSnapshot, playhead float64) *timeline.BreakSnapshot {
	for i := range tl {
		b := &tl[i]
		if playhead >= b.Start && playhead < b.Start+b.Duration {
			return b
		}
	}
	return nil
}

// AdvertAt returns the active advert playing at playhead and its break.
func AdvertAt(tl []timeline.BreakSnapshot, playhead float64) (*timeline.BreakSnapshot, *timeline.AdvertSnapshot) {
	b := BreakAt(tl, playhead)
	if b == nil || !b.Active {
		return nil, nil
	}
	for i := range b.Adverts {
		a := &b.Adverts[i]
		if a.Active && playhead >= a.Start && playhead < a.Start+a.Duration {
			return b, a
		}
	}
	return b, nil
}
