// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"sync"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// Window is the seekable range of a DVR-live stream, in seconds.
type Window struct {
	StreamStart float64 `json:"streamStart"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Size        float64 `json:"size"`
}

// InvalidDVRWindow is reported by non DVR-live streams.
var InvalidDVRWindow = Window{
	StreamStart: model.InvalidWindow,
	Start:       model.InvalidWindow,
	End:         model.InvalidWindow,
	Size:        model.InvalidWindow,
}

// Stream describes the stitched stream a session plays.
type Stream struct {
	ID          string
	Mode        model.PlaybackMode
	SourceURL   string
	PlaybackURL string
	Failover    bool
	Timeline    *Timeline

	mu       sync.RWMutex
	duration float64
	window   Window
}

// NewStream returns a stream with an empty timeline. Live streams start
// without breaks and learn them through polling.
func NewStream(id string, mode model.PlaybackMode, sourceURL, playbackURL string) *Stream {
	s := &Stream{
		ID:          id,
		Mode:        mode,
		SourceURL:   sourceURL,
		PlaybackURL: playbackURL,
		Timeline:    New(),
		window:      InvalidDVRWindow,
	}
	return s
}

// Duration is the total stitched duration, zero for live.
func (s *Stream) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// SetDuration records the stitched duration.
func (s *Stream) SetDuration(d float64) {
	s.mu.Lock()
	s.duration = d
	s.mu.Unlock()
}

// Window returns the DVR window, or InvalidDVRWindow outside DVR-live mode.
func (s *Stream) Window() Window {
	if s.Mode != model.ModeDVRLive {
		return InvalidDVRWindow
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// SetWindow updates the DVR window. Size is derived when omitted.
func (s *Stream) SetWindow(w Window) {
	if w.Size <= 0 && w.End >= w.Start {
		w.Size = w.End - w.Start
	}
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
}

// HasPrerollAdBreak reports whether a linear preroll exists.
func (s *Stream) HasPrerollAdBreak() bool { return s.Timeline.HasPreroll() }

// HasPostrollAdBreak reports whether a linear postroll exists.
func (s *Stream) HasPostrollAdBreak() bool { return s.Timeline.HasPostroll() }
