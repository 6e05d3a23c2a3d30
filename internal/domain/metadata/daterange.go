// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMediaIDAttribute names the EXT-X-DATERANGE client attribute carrying the advert media id.
const DefaultMediaIDAttribute = "X-COM-YOSPACE-YMID"

const (
	dateRangeTag     = "#EXT-X-DATERANGE:"
	adEventOffset    = 0.1
	midEventInterval = 2.0
	duplicateWindow  = 10 * time.Second
	releaseLookahead = 1.0
)

var attrRe = regexp.MustCompile(`([-A-Z0-9]+)=("[^"\x0A\x0D]+"|[^",\s]+)`)

// DateRange is a parsed EXT-X-DATERANGE tag.
type DateRange struct {
	ID         string
	Class      string
	StartDate  time.Time
	Duration   float64
	HasEnd     bool
	Attributes map[string]string
}

// ParseDateRange parses a tag line, with or without the tag prefix.
func ParseDateRange(line string) (DateRange, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, dateRangeTag)
	attrs := parseAttributeList(line)

	dr := DateRange{ID: attrs["ID"], Class: attrs["CLASS"], Attributes: attrs}
	start, ok := attrs["START-DATE"]
	if !ok {
		return DateRange{}, fmt.Errorf("%w: daterange without START-DATE", ErrInvalid)
	}
	t, err := time.Parse(time.RFC3339Nano, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: START-DATE %q: %v", ErrInvalid, start, err)
	}
	dr.StartDate = t

	switch {
	case attrs["END-DATE"] != "":
		end, err := time.Parse(time.RFC3339Nano, attrs["END-DATE"])
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: END-DATE %q: %v", ErrInvalid, attrs["END-DATE"], err)
		}
		dr.Duration = end.Sub(t).Seconds()
		dr.HasEnd = true
	case attrs["DURATION"] != "":
		d, err := strconv.ParseFloat(attrs["DURATION"], 64)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: DURATION %q", ErrInvalid, attrs["DURATION"])
		}
		dr.Duration = d
		dr.HasEnd = true
	}
	if dr.HasEnd && dr.Duration < 0 {
		return DateRange{}, fmt.Errorf("%w: daterange ends before it starts", ErrInvalid)
	}
	return dr, nil
}

func parseAttributeList(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = strings.Trim(m[2], "\"")
	}
	return attrs
}

type scheduled struct {
	at float64
	md *TimedMetadata
}

// DateRangeEmitter synthesises S/M/E timed metadata from date range tags, for
// streams that signal adverts through EXT-X-DATERANGE instead of ID3.
// Samples are released by Advance once the playhead comes within a second of
// their scheduled time.
type DateRangeEmitter struct {
	mu          sync.Mutex
	mediaIDAttr string
	pending     []scheduled
	processed   map[string]time.Time
}

// EmitterOption customises a DateRangeEmitter.
type EmitterOption func(*DateRangeEmitter)

// WithMediaIDAttribute overrides the attribute holding the media id.
func WithMediaIDAttribute(attr string) EmitterOption {
	return func(e *DateRangeEmitter) { e.mediaIDAttr = attr }
}

// NewDateRangeEmitter returns an empty emitter.
func NewDateRangeEmitter(opts ...EmitterOption) *DateRangeEmitter {
	e := &DateRangeEmitter{
		mediaIDAttr: DefaultMediaIDAttribute,
		processed:   make(map[string]time.Time),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Track schedules samples for dr relative to the current playhead. Tags for
// a media id already seen within ten seconds of the same start date are
// ignored, as are open-ended ranges. Returns how many samples were scheduled.
func (e *DateRangeEmitter) Track(dr DateRange, currentTime float64) int {
	mediaID := dr.Attributes[e.mediaIDAttr]

	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.processed[mediaID]; ok {
		d := dr.StartDate.Sub(prev)
		if d < 0 {
			d = -d
		}
		if d < duplicateWindow {
			return 0
		}
	}
	e.processed[mediaID] = dr.StartDate
	if !dr.HasEnd {
		return 0
	}

	wall := float64(dr.StartDate.UnixNano()) / float64(time.Second)
	add := func(typ Type, offset float64) {
		e.pending = append(e.pending, scheduled{
			at: currentTime + offset,
			md: &TimedMetadata{
				MediaID:       mediaID,
				SegmentNumber: 1,
				SegmentCount:  1,
				Type:          typ,
				Offset:        offset,
				Playhead:      wall + offset,
			},
		})
	}

	n := len(e.pending)
	add(TypeStart, adEventOffset)
	for off := adEventOffset + midEventInterval; off < dr.Duration; off += midEventInterval {
		add(TypeMid, off)
	}
	add(TypeEnd, dr.Duration-adEventOffset)
	sort.SliceStable(e.pending, func(i, j int) bool { return e.pending[i].at < e.pending[j].at })
	return len(e.pending) - n
}

// Advance releases, in order, every sample due at currentTime.
func (e *DateRangeEmitter) Advance(currentTime float64) []*TimedMetadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	var due []*TimedMetadata
	for len(e.pending) > 0 && currentTime-e.pending[0].at >= -releaseLookahead {
		due = append(due, e.pending[0].md)
		e.pending = e.pending[1:]
	}
	return due
}

// Pending is the number of samples not yet released.
func (e *DateRangeEmitter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Reset drops scheduled samples and the duplicate history. Call it when the
// player loads, unloads or fails a source.
func (e *DateRangeEmitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
	e.processed = make(map[string]time.Time)
}
