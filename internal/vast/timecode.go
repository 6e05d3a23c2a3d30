// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vast

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrTimecode = errors.New("invalid timecode")

// ParseTimecode converts HH:MM:SS or HH:MM:SS.mmm into seconds.
func ParseTimecode(s string) (float64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrTimecode, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("%w: %q", ErrTimecode, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrTimecode, s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || sec < 0 || sec >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrTimecode, s)
	}
	return float64(h*3600+m*60) + sec, nil
}

// OffsetKind tells how an Offset is anchored.
type OffsetKind int

const (
	OffsetAbsolute OffsetKind = iota
	OffsetPercent
	OffsetStart
	OffsetEnd
	OffsetPosition
)

// Offset is a VMAP timeOffset or a VAST skipoffset/tracking offset.
type Offset struct {
	Kind  OffsetKind
	Value float64 // seconds, percent (0-100) or 1-based position
}

// ParseOffset accepts a timecode, "n%", "start", "end" or "#n".
func ParseOffset(s string) (Offset, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Offset{}, fmt.Errorf("%w: empty offset", ErrTimecode)
	case strings.EqualFold(s, "start"):
		return Offset{Kind: OffsetStart}, nil
	case strings.EqualFold(s, "end"):
		return Offset{Kind: OffsetEnd}, nil
	case strings.HasSuffix(s, "%"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil || v < 0 || v > 100 {
			return Offset{}, fmt.Errorf("%w: %q", ErrTimecode, s)
		}
		return Offset{Kind: OffsetPercent, Value: v}, nil
	case strings.HasPrefix(s, "#"):
		v, err := strconv.Atoi(s[1:])
		if err != nil || v < 1 {
			return Offset{}, fmt.Errorf("%w: %q", ErrTimecode, s)
		}
		return Offset{Kind: OffsetPosition, Value: float64(v)}, nil
	}
	v, err := ParseTimecode(s)
	if err != nil {
		return Offset{}, err
	}
	return Offset{Kind: OffsetAbsolute, Value: v}, nil
}

// Seconds resolves the offset against a total duration. A position offset
// cannot be resolved in time and reports false, as does an end offset when
// the duration is unknown.
func (o Offset) Seconds(duration float64) (float64, bool) {
	switch o.Kind {
	case OffsetAbsolute:
		return o.Value, true
	case OffsetStart:
		return 0, true
	case OffsetPercent:
		if duration <= 0 {
			return 0, false
		}
		return duration * o.Value / 100, true
	case OffsetEnd:
		if duration <= 0 {
			return 0, false
		}
		return duration, true
	}
	return 0, false
}
