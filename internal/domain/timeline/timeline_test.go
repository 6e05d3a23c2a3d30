// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"math"
	"sync"
	"testing"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	beacons []Beacon
}

func (r *recorder) Report(b Beacon) {
	r.mu.Lock()
	r.beacons = append(r.beacons, b)
	r.mu.Unlock()
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.beacons))
	for _, b := range r.beacons {
		out = append(out, b.Event)
	}
	return out
}

func linearAdvert(id string, start, dur float64) *Advert {
	return &Advert{
		ID:             id,
		Start:          start,
		Duration:       dur,
		SkipOffset:     NotSkippable,
		ImpressionURLs: []string{"https://t.example/imp?ad=" + id},
		ErrorURLs:      []string{"https://t.example/err?code=[ERRORCODE]"},
		Linear: &LinearCreative{
			Creative: Creative{
				Kind: KindLinear,
				ID:   "cr-" + id,
				Tracking: []TrackingEvent{
					{Event: model.TrackStart, URL: "https://t.example/start", Offset: -1},
					{Event: model.TrackFirstQuartile, URL: "https://t.example/q1", Offset: -1},
					{Event: model.TrackMidpoint, URL: "https://t.example/mid", Offset: -1},
					{Event: model.TrackThirdQuartile, URL: "https://t.example/q3", Offset: -1},
					{Event: model.TrackComplete, URL: "https://t.example/complete", Offset: -1},
					{Event: model.TrackProgress, URL: "https://t.example/p5", Offset: 5},
					{Event: model.TrackPause, URL: "https://t.example/pause", Offset: -1},
				},
			},
			Duration: dur,
		},
	}
}

func vodTimeline() (*Timeline, *AdBreak, *AdBreak) {
	pre := NewAdBreak("pre", 0, 30, model.PositionPreroll, model.BreakLinear,
		linearAdvert("a1", 0, 15), linearAdvert("a2", 15, 15))
	mid := NewAdBreak("mid", 130, 20, model.PositionMidroll, model.BreakLinear,
		linearAdvert("a3", 130, 20))
	overlay := NewAdBreak("ovl", 200, 10, model.PositionMidroll, model.BreakNonLinear, &Advert{ID: "n1", Start: 200, Duration: 10})
	return New(mid, overlay, pre), pre, mid
}

func TestRemainingTimeIsClamped(t *testing.T) {
	tl, pre, _ := vodTimeline()
	a := pre.Adverts[0]

	assert.Equal(t, 5.0, a.RemainingTime(10))
	assert.Equal(t, 15.0, a.RemainingTime(-100))
	assert.Equal(t, 0.0, a.RemainingTime(20))
	assert.Equal(t, 0.0, a.RemainingTime(math.NaN()))
	assert.Equal(t, 20.0, pre.RemainingTime(10))

	for _, b := range tl.Breaks() {
		for p := -50.0; p <= 400; p += 0.5 {
			r := b.RemainingTime(p)
			require.True(t, r >= 0 && r <= b.Duration, "break %s at %v: %v", b.ID, p, r)
			for _, ad := range b.Adverts {
				r := ad.RemainingTime(p)
				require.True(t, r >= 0 && r <= ad.Duration, "advert %s at %v: %v", ad.ID, p, r)
			}
		}
	}
}

func TestSetInactiveCascadesAndSilences(t *testing.T) {
	tl, pre, _ := vodTimeline()
	rec := &recorder{}
	tl.Bind(rec)

	pre.SetInactive()
	assert.False(t, pre.IsActive())
	for _, a := range pre.Adverts {
		assert.False(t, a.IsActive())
		a.ImpressionEventDidOccur()
		a.Linear.TrackingEventDidOccur(model.TrackPause)
		a.ErrorDidOccur(405)
		a.ReportPlayback(10, true)
	}
	pre.ReportBreakStart()
	assert.Empty(t, rec.events())
}

func TestContentPlayheadInverseOutsideBreaks(t *testing.T) {
	tl, _, _ := vodTimeline()

	assert.Equal(t, 0.0, tl.ContentPositionForPlayhead(30))
	assert.Equal(t, 0.0, tl.ContentPositionForPlayhead(12), "inside the preroll")
	assert.Equal(t, 100.0, tl.ContentPositionForPlayhead(140), "inside the midroll")
	assert.Equal(t, 30.0, tl.PlayheadForContentPosition(0))
	assert.Equal(t, 150.0, tl.PlayheadForContentPosition(100))

	for p := 0.0; p <= 400; p += 0.25 {
		if tl.CurrentBreak(p) != nil && tl.CurrentBreak(p).IsLinear() {
			continue
		}
		c := tl.ContentPositionForPlayhead(p)
		require.InDelta(t, p, tl.PlayheadForContentPosition(c), 1e-9, "playhead %v content %v", p, c)
	}
}

func TestCurrentBreakAndAdvert(t *testing.T) {
	tl, pre, mid := vodTimeline()
	assert.Same(t, pre, tl.CurrentBreak(0))
	assert.Same(t, pre.Adverts[1], tl.CurrentAdvert(15))
	assert.Nil(t, tl.CurrentBreak(30))
	assert.Same(t, mid, tl.NextBreak(30))
	assert.Equal(t, model.BreakNonLinear, tl.CurrentBreak(205).Type)
	assert.True(t, tl.HasPreroll())
	assert.False(t, tl.HasPostroll())
	assert.Equal(t, 50.0, tl.TotalAdDuration())
	assert.Len(t, tl.ActiveLinearBreaksBetween(30, 200), 1)
}

func TestSetInactivePriorTo(t *testing.T) {
	tl, pre, mid := vodTimeline()
	changed := tl.SetInactivePriorTo(100)
	require.Len(t, changed, 1)
	assert.Same(t, pre, changed[0])
	assert.True(t, mid.IsActive())
}

func TestRemoveNonLinearBreaks(t *testing.T) {
	tl, pre, _ := vodTimeline()
	assert.ErrorIs(t, tl.RemoveNonLinearBreak(pre), ErrNotNonLinear)
	assert.ErrorIs(t, tl.RemoveNonLinearBreak(nil), ErrBreakNotFound)

	ovl := tl.BreakByID("ovl")
	require.NotNil(t, ovl)
	require.NoError(t, tl.RemoveNonLinearBreak(ovl))
	assert.False(t, ovl.IsActive())
	assert.ErrorIs(t, tl.RemoveNonLinearBreak(ovl), ErrBreakNotFound)
	assert.Equal(t, 2, tl.Len())

	tl.Merge([]*AdBreak{NewAdBreak("ovl2", 300, 5, model.PositionMidroll, model.BreakNonLinear)})
	assert.Equal(t, 1, tl.RemoveAllNonLinearBreaks())
	assert.Equal(t, 2, tl.Len())
}

func TestMergeKeepsExistingState(t *testing.T) {
	tl, pre, _ := vodTimeline()
	rec := &recorder{}
	tl.Bind(rec)
	pre.SetInactive()

	replacement := NewAdBreak("pre", 0, 30, model.PositionPreroll, model.BreakLinear)
	fresh := NewAdBreak("late", 500, 30, model.PositionMidroll, model.BreakLinear, linearAdvert("a9", 500, 30))
	added := tl.Merge([]*AdBreak{replacement, fresh})

	require.Len(t, added, 1)
	assert.Same(t, fresh, added[0])
	assert.False(t, tl.BreakByID("pre").IsActive())

	fresh.ReportBreakStart()
	assert.Equal(t, []string{model.TrackBreakStart}, rec.events(), "merged breaks inherit the reporter")

	assert.Equal(t, 1, tl.PruneBefore(400))
}
