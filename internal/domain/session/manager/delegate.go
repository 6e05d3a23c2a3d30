// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/metrics"
	"github.com/ManuGH/adsession/internal/policy"
)

// SetPolicy replaces the session's policy handler.
func (s *Session) SetPolicy(h policy.Handler) error {
	if h == nil {
		return ErrNilPolicy
	}
	return s.call(func() error {
		h.SetPlaybackMode(s.mode)
		s.policy = h
		return nil
	})
}

// allow evaluates a boolean policy decision on the loop.
func (s *Session) allow(action string, decide func(p float64, tl []timeline.BreakSnapshot) bool) (bool, error) {
	var ok bool
	err := s.call(func() error {
		ok = decide(s.playhead, s.stream.Timeline.Snapshot())
		metrics.IncPolicyDecision(action, ok)
		return nil
	})
	return ok, err
}

func (s *Session) CanStop() (bool, error) {
	return s.allow("stop", func(p float64, tl []timeline.BreakSnapshot) bool {
		return s.policy.CanStop(p, tl)
	})
}

func (s *Session) CanPause() (bool, error) {
	return s.allow("pause", func(p float64, tl []timeline.BreakSnapshot) bool {
		return s.policy.CanPause(p, tl)
	})
}

func (s *Session) CanChangeVolume(mute bool) (bool, error) {
	return s.allow("volume", func(p float64, tl []timeline.BreakSnapshot) bool {
		return s.policy.CanChangeVolume(mute, p, tl)
	})
}

func (s *Session) CanResize(fullscreen bool) (bool, error) {
	return s.allow("resize", func(p float64, tl []timeline.BreakSnapshot) bool {
		return s.policy.CanResize(fullscreen, p, tl)
	})
}

func (s *Session) CanResizeCreative(expand bool) (bool, error) {
	return s.allow("resize_creative", func(p float64, tl []timeline.BreakSnapshot) bool {
		return s.policy.CanResizeCreative(expand, p, tl)
	})
}

func (s *Session) CanClickThrough(url string) (bool, error) {
	return s.allow("click_through", func(p float64, tl []timeline.BreakSnapshot) bool {
		return s.policy.CanClickThrough(url, p, tl)
	})
}

// CanSkip returns the seconds until the current advert may be skipped, zero
// if it may be skipped now, or policy.NotAllowed.
func (s *Session) CanSkip() (float64, error) {
	var v float64
	err := s.call(func() error {
		var d float64
		if a := s.curAdvert; a != nil {
			d = a.Duration
		}
		v = s.policy.CanSkip(s.playhead, s.stream.Timeline.Snapshot(), d)
		metrics.IncPolicyDecision("skip", v != policy.NotAllowed)
		return nil
	})
	return v, err
}

// WillSeekTo returns where a seek to position should land.
func (s *Session) WillSeekTo(position float64) (float64, error) {
	var v float64
	err := s.call(func() error {
		v = s.policy.WillSeekTo(position, s.stream.Timeline.Snapshot(), s.playhead)
		metrics.IncPolicyDecision("seek", v == position)
		return nil
	})
	return v, err
}
