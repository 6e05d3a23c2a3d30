// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metadata turns in-band stream metadata (ID3 frames, HLS
// EXT-X-DATERANGE tags) into timed metadata the session uses to align adverts
// in live streams.
package metadata

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the position of a metadata sample within an advert.
type Type string

const (
	TypeStart Type = "S"
	TypeMid   Type = "M"
	TypeEnd   Type = "E"
)

var ErrInvalid = errors.New("invalid timed metadata")

// duplicateOffsetTolerance is how close two offsets must be for samples of the
// same media, type and segment to count as one.
const duplicateOffsetTolerance = 0.5

// TimedMetadata is one sample of advert metadata carried in the stream.
type TimedMetadata struct {
	MediaID       string  `json:"mediaId"`
	SegmentNumber int     `json:"segmentNumber"`
	SegmentCount  int     `json:"segmentCount"`
	Type          Type    `json:"type"`
	Offset        float64 `json:"offset"`
	Playhead      float64 `json:"playhead"`
}

// New validates and builds a sample. sequence has the form "n:m" with 1 <= n <= m.
func New(mediaID, sequence, typ, offset string, playhead float64) (*TimedMetadata, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return nil, fmt.Errorf("%w: empty media id", ErrInvalid)
	}
	n, m, err := ParseSequence(sequence)
	if err != nil {
		return nil, err
	}
	t := Type(strings.ToUpper(strings.TrimSpace(typ)))
	switch t {
	case TypeStart, TypeMid, TypeEnd:
	default:
		return nil, fmt.Errorf("%w: type %q", ErrInvalid, typ)
	}
	off, err := strconv.ParseFloat(strings.TrimSpace(offset), 64)
	if err != nil || off < 0 || math.IsNaN(off) || math.IsInf(off, 0) {
		return nil, fmt.Errorf("%w: offset %q", ErrInvalid, offset)
	}
	return &TimedMetadata{
		MediaID:       mediaID,
		SegmentNumber: n,
		SegmentCount:  m,
		Type:          t,
		Offset:        off,
		Playhead:      playhead,
	}, nil
}

// ParseSequence splits "n:m" into segment number and count.
func ParseSequence(s string) (number, count int, err error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: sequence %q", ErrInvalid, s)
	}
	number, err1 := strconv.Atoi(left)
	count, err2 := strconv.Atoi(right)
	if err1 != nil || err2 != nil || number < 1 || count < number {
		return 0, 0, fmt.Errorf("%w: sequence %q", ErrInvalid, s)
	}
	return number, count, nil
}

// Sequence renders the "n:m" form.
func (m *TimedMetadata) Sequence() string {
	return strconv.Itoa(m.SegmentNumber) + ":" + strconv.Itoa(m.SegmentCount)
}

// IsDuplicate reports whether other describes the same sample, as happens when
// the same segment is delivered twice after a rebuffer or a bitrate switch.
func (m *TimedMetadata) IsDuplicate(other *TimedMetadata) bool {
	if other == nil {
		return false
	}
	return m.MediaID == other.MediaID &&
		m.Type == other.Type &&
		m.SegmentNumber == other.SegmentNumber &&
		m.SegmentCount == other.SegmentCount &&
		math.Abs(m.Offset-other.Offset) < duplicateOffsetTolerance
}

// ID3 frame identifiers carrying timed metadata.
const (
	FrameMediaID  = "YMID"
	FrameSequence = "YSEQ"
	FrameType     = "YTYP"
	FrameOffset   = "YDUR"
)

// FromID3 builds a sample from the text frames of one ID3 tag.
func FromID3(frames map[string]string, playhead float64) (*TimedMetadata, error) {
	for _, k := range []string{FrameMediaID, FrameSequence, FrameType, FrameOffset} {
		if _, ok := frames[k]; !ok {
			return nil, fmt.Errorf("%w: missing frame %s", ErrInvalid, k)
		}
	}
	return New(frames[FrameMediaID], frames[FrameSequence], frames[FrameType], frames[FrameOffset], playhead)
}
