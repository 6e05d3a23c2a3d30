// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tag = `#EXT-X-DATERANGE:ID="ad-1",CLASS="com.example.ad",START-DATE="2024-05-01T10:00:00.000Z",DURATION=7.0,X-COM-YOSPACE-YMID="MEDIA-1"`

func TestParseDateRange(t *testing.T) {
	dr, err := ParseDateRange(tag)
	require.NoError(t, err)
	assert.Equal(t, "ad-1", dr.ID)
	assert.Equal(t, "com.example.ad", dr.Class)
	assert.Equal(t, 7.0, dr.Duration)
	assert.True(t, dr.HasEnd)
	assert.Equal(t, "MEDIA-1", dr.Attributes[DefaultMediaIDAttribute])
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), dr.StartDate)

	dr, err = ParseDateRange(`ID="x",START-DATE="2024-05-01T10:00:00Z",END-DATE="2024-05-01T10:00:30Z"`)
	require.NoError(t, err)
	assert.Equal(t, 30.0, dr.Duration)

	_, err = ParseDateRange(`ID="x"`)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = ParseDateRange(`START-DATE="yesterday"`)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEmitterSchedulesStartMidEnd(t *testing.T) {
	dr, err := ParseDateRange(tag)
	require.NoError(t, err)
	e := NewDateRangeEmitter()

	// 7s advert: S at 0.1, M at 2.1, 4.1, 6.1, E at 6.9
	require.Equal(t, 5, e.Track(dr, 100))

	assert.Empty(t, e.Advance(98.5))
	first := e.Advance(99.2)
	require.Len(t, first, 1)
	assert.Equal(t, TypeStart, first[0].Type)
	assert.Equal(t, "MEDIA-1", first[0].MediaID)
	assert.InDelta(t, 0.1, first[0].Offset, 1e-9)

	rest := e.Advance(110)
	require.Len(t, rest, 4)
	types := []Type{rest[0].Type, rest[1].Type, rest[2].Type, rest[3].Type}
	assert.Equal(t, []Type{TypeMid, TypeMid, TypeMid, TypeEnd}, types)
	assert.InDelta(t, 6.9, rest[3].Offset, 1e-9)
	assert.Zero(t, e.Pending())
}

func TestEmitterIgnoresDuplicates(t *testing.T) {
	dr, _ := ParseDateRange(tag)
	e := NewDateRangeEmitter()
	require.Positive(t, e.Track(dr, 0))
	n := e.Pending()

	dr.StartDate = dr.StartDate.Add(5 * time.Second)
	assert.Zero(t, e.Track(dr, 5))
	assert.Equal(t, n, e.Pending())

	dr.StartDate = dr.StartDate.Add(30 * time.Second)
	assert.Positive(t, e.Track(dr, 35))

	e.Reset()
	assert.Zero(t, e.Pending())
	assert.Positive(t, e.Track(dr, 35), "history is cleared by Reset")
}

func TestEmitterIgnoresOpenRanges(t *testing.T) {
	dr, err := ParseDateRange(`ID="x",START-DATE="2024-05-01T10:00:00Z",X-COM-YOSPACE-YMID="M"`)
	require.NoError(t, err)
	e := NewDateRangeEmitter(WithMediaIDAttribute(DefaultMediaIDAttribute))
	assert.Zero(t, e.Track(dr, 0))
}
