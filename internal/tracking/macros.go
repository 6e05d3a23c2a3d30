// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tracking

import (
	"fmt"
	"math"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
)

const (
	macroPrefix = "["
	macroSuffix = "]"
)

// Standard VAST macros expanded in every beacon.
const (
	MacroTimestamp       = "TIMESTAMP"
	MacroCacheBusting    = "CACHEBUSTING"
	MacroContentPlayhead = "CONTENTPLAYHEAD"
	MacroMediaPlayhead   = "MEDIAPLAYHEAD"
	MacroAdPlayhead      = "ADPLAYHEAD"
	MacroErrorCode       = "ERRORCODE"
	MacroReason          = "REASON"
	MacroBreakPosition   = "BREAKPOSITION"
	MacroAdServingID     = "ADSERVINGID"
)

// Playhead is the session position when a beacon is expanded.
type Playhead struct {
	Media   float64
	Content float64
}

// Macros holds the values for one expansion. Custom values win over the
// standard ones.
type Macros struct {
	values map[string]string
}

// NewMacros collects the standard values for b plus the advert's table.
func NewMacros(b timeline.Beacon, p Playhead, now time.Time) Macros {
	v := map[string]string{
		MacroTimestamp:       now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		MacroCacheBusting:    fmt.Sprintf("%08d", rand.IntN(100000000)),
		MacroContentPlayhead: Timecode(p.Content),
		MacroMediaPlayhead:   Timecode(p.Media),
		MacroBreakPosition:   breakPosition(b.Position),
	}
	if b.AdvertID != "" {
		v[MacroAdPlayhead] = Timecode(b.AdOffset)
	}
	if b.ErrorCode != 0 {
		v[MacroErrorCode] = strconv.Itoa(b.ErrorCode)
	}
	if b.Reason != "" {
		v[MacroReason] = b.Reason
	}
	if b.AdServingID != "" {
		v[MacroAdServingID] = b.AdServingID
	}
	for k, val := range b.Macros {
		v[strings.Trim(k, macroPrefix+macroSuffix)] = val
	}
	return Macros{values: v}
}

// Expand replaces every known [MACRO] in in with its query-escaped value.
// Unknown macros are left untouched.
func (m Macros) Expand(in string) string {
	var out strings.Builder
	pos := 0
	for pos < len(in) {
		start := strings.Index(in[pos:], macroPrefix)
		if start < 0 {
			out.WriteString(in[pos:])
			break
		}
		start += pos
		end := strings.Index(in[start+1:], macroSuffix)
		if end < 0 {
			out.WriteString(in[pos:])
			break
		}
		end += start + 1
		// The macro opens at the last bracket before its close: "[[TS]".
		start += strings.LastIndex(in[start:end], macroPrefix)
		out.WriteString(in[pos:start])

		key := in[start+1 : end]
		if val, ok := m.values[key]; ok {
			out.WriteString(url.QueryEscape(val))
		} else {
			out.WriteString(in[start : end+1])
		}
		pos = end + 1
	}
	return out.String()
}

// Timecode formats seconds as HH:MM:SS.mmm.
func Timecode(secs float64) string {
	if secs < 0 || math.IsNaN(secs) {
		secs = 0
	}
	ms := int64(math.Round(secs * 1000))
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func breakPosition(p model.AdBreakPosition) string {
	switch p {
	case model.PositionPreroll:
		return "1"
	case model.PositionMidroll:
		return "2"
	case model.PositionPostroll:
		return "3"
	}
	return "-1"
}
