// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tracking

import (
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/stretchr/testify/assert"
)

func TestMacrosExpand(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 800_000_000, time.UTC)
	b := timeline.Beacon{
		Event:       model.TrackError,
		AdvertID:    "ad-1",
		AdServingID: "srv 1",
		AdOffset:    3.5,
		ErrorCode:   405,
		Position:    model.PositionMidroll,
		Macros:      map[string]string{"[DEVICE]": "tv&box", "APP": "demo"},
	}
	m := NewMacros(b, Playhead{Media: 3725.25, Content: 65}, now)

	tests := []struct {
		in, want string
	}{
		{"https://t/x?ts=[TIMESTAMP]", "https://t/x?ts=2025-03-04T05%3A06%3A07.800Z"},
		{"https://t/x?c=[CONTENTPLAYHEAD]&m=[MEDIAPLAYHEAD]", "https://t/x?c=00%3A01%3A05.000&m=01%3A02%3A05.250"},
		{"https://t/x?a=[ADPLAYHEAD]&e=[ERRORCODE]", "https://t/x?a=00%3A00%3A03.500&e=405"},
		{"https://t/x?p=[BREAKPOSITION]&s=[ADSERVINGID]", "https://t/x?p=2&s=srv+1"},
		{"https://t/x?d=[DEVICE]&app=[APP]", "https://t/x?d=tv%26box&app=demo"},
		{"https://t/x?u=[UNKNOWN]&r=[REASON]", "https://t/x?u=[UNKNOWN]&r=[REASON]"},
		{"https://t/x?open=[TIMESTAMP", "https://t/x?open=[TIMESTAMP"},
		{"https://t/x?ts=[[TIMESTAMP]", "https://t/x?ts=[2025-03-04T05%3A06%3A07.800Z"},
		{"https://t/x?v=[a[APP]]&e=[ERRORCODE]", "https://t/x?v=[ademo]&e=405"},
		{"no macros", "no macros"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Expand(tt.in), tt.in)
	}
}

func TestMacrosCacheBusting(t *testing.T) {
	m := NewMacros(timeline.Beacon{}, Playhead{}, time.Now())
	out := m.Expand("[CACHEBUSTING]")
	assert.Len(t, out, 8)
	assert.Equal(t, "-1", m.Expand("[BREAKPOSITION]"))
	assert.Equal(t, "[ADPLAYHEAD]", m.Expand("[ADPLAYHEAD]"))
}

func TestTimecode(t *testing.T) {
	assert.Equal(t, "00:00:00.000", Timecode(-4))
	assert.Equal(t, "00:00:15.000", Timecode(15))
	assert.Equal(t, "02:46:40.123", Timecode(10000.123))
}
