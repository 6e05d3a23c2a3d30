// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package policy

import (
	"testing"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/stretchr/testify/assert"
)

// fixture: preroll 0-30 (two 15 s adverts, the first skippable after 5 s),
// midroll 130-150 unwatched, overlay 200-210, midroll 300-320 already watched.
func fixture() []timeline.BreakSnapshot {
	return []timeline.BreakSnapshot{
		{ID: "pre", Start: 0, Duration: 30, Type: model.BreakLinear, Active: true, Adverts: []timeline.AdvertSnapshot{
			{ID: "a1", Start: 0, Duration: 15, SkipOffset: 5, Active: true},
			{ID: "a2", Start: 15, Duration: 15, SkipOffset: timeline.NotSkippable, Active: true},
		}},
		{ID: "mid", Start: 130, Duration: 20, Type: model.BreakLinear, Active: true, Adverts: []timeline.AdvertSnapshot{
			{ID: "m1", Start: 130, Duration: 20, SkipOffset: 0, Active: true},
		}},
		{ID: "overlay", Start: 200, Duration: 10, Type: model.BreakNonLinear, Active: true},
		{ID: "watched", Start: 300, Duration: 20, Type: model.BreakLinear, Active: false, Adverts: []timeline.AdvertSnapshot{
			{ID: "w1", Start: 300, Duration: 20, SkipOffset: 0, Active: false},
		}},
	}
}

func TestDefaultCanSkip(t *testing.T) {
	d := NewDefault(model.ModeVOD)
	tl := fixture()
	tests := []struct {
		name     string
		playhead float64
		want     float64
	}{
		{"before skip offset", 2, 3},
		{"at skip offset", 5, 0},
		{"after skip offset", 12, 0},
		{"not skippable", 20, NotAllowed},
		{"skippable immediately", 131, 0},
		{"content", 60, NotAllowed},
		{"inactive break", 305, NotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, d.CanSkip(tt.playhead, tl, 400), 1e-9)
		})
	}
}

func TestDefaultWillSeekTo(t *testing.T) {
	d := NewDefault(model.ModeVOD)
	tl := fixture()
	tests := []struct {
		name               string
		playhead, position float64
		want               float64
	}{
		{"backwards is free", 100, 40, 40},
		{"forward within content", 40, 100, 100},
		{"forward over unwatched break", 40, 170, 130},
		{"forward into unwatched break", 40, 140, 130},
		{"forward over watched break", 160, 350, 350},
		{"non-linear breaks do not snap", 160, 250, 250},
		{"inside an active break", 10, 100, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.WillSeekTo(tt.position, tl, tt.playhead))
		})
	}
}

func TestDefaultLiveRules(t *testing.T) {
	d := NewDefault(model.ModeVOD)
	tl := fixture()
	assert.True(t, d.CanPause(10, tl))

	d.SetPlaybackMode(model.ModeLive)
	assert.False(t, d.CanPause(10, tl))
	assert.Equal(t, NotAllowed, d.CanSkip(10, tl, 0))
	assert.Equal(t, 40.0, d.WillSeekTo(170, tl, 40))
	assert.True(t, d.CanStop(10, tl))
}

func TestDefaultClickThroughOnlyInAdverts(t *testing.T) {
	d := NewDefault(model.ModeDVRLive)
	tl := fixture()
	assert.True(t, d.CanClickThrough("https://brand.example", 3, tl))
	assert.False(t, d.CanClickThrough("https://brand.example", 60, tl))
	assert.False(t, d.CanClickThrough("https://brand.example", 305, tl))
	assert.True(t, d.CanChangeVolume(true, 3, tl))
	assert.True(t, d.CanResize(true, 3, tl))
	assert.True(t, d.CanResizeCreative(false, 3, tl))
}

func TestAdvertAt(t *testing.T) {
	tl := fixture()
	b, a := AdvertAt(tl, 16)
	assert.Equal(t, "pre", b.ID)
	assert.Equal(t, "a2", a.ID)

	b, a = AdvertAt(tl, 205)
	assert.Equal(t, "overlay", b.ID)
	assert.Nil(t, a)

	assert.Nil(t, BreakAt(tl, 30))
}
