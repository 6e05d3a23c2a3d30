// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"fmt"

	"github.com/ManuGH/adsession/internal/bus"
	"github.com/ManuGH/adsession/internal/domain/metadata"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
)

func (s *Session) live() bool {
	return s.mode == model.ModeLive || s.mode == model.ModeDVRLive
}

// normalize smooths live playheads; VOD positions are trusted as reported.
func (s *Session) normalize(p float64) float64 {
	if s.live() {
		return s.normalizer.Normalize(p)
	}
	return p
}

func (s *Session) setCurrent(b *timeline.AdBreak, a *timeline.Advert) {
	s.mu.Lock()
	s.curBreak, s.curAdvert = b, a
	s.mu.Unlock()
}

func (s *Session) publishBreak(kind bus.Kind, b *timeline.AdBreak) {
	snap := b.Snapshot()
	s.publish(bus.Event{Kind: kind, Break: &snap})
}

func (s *Session) publishAdvert(kind bus.Kind, a *timeline.Advert) {
	snap := a.Snapshot()
	ev := bus.Event{Kind: kind, Advert: &snap}
	if b := a.Break(); b != nil {
		bs := b.Snapshot()
		ev.Break = &bs
	}
	s.publish(ev)
}

// PlayheadDidChange reports playback progress in seconds. Updates arriving
// between SeekDidStart and SeekDidEnd are ignored.
func (s *Session) PlayheadDidChange(playhead float64) error {
	return s.call(func() error {
		if s.seeking {
			return nil
		}
		s.advance(s.normalize(playhead), s.started)
		return nil
	})
}

// advance moves the session to playhead p, raising break and advert
// transitions. continuous is false after seeks and on the first update; then
// crossed milestones are consumed silently unless FireHistoricalBeacons is set.
func (s *Session) advance(p float64, continuous bool) {
	s.started = true
	s.playhead = p
	tl := s.stream.Timeline
	if s.dispatcher != nil {
		s.dispatcher.SetPlayhead(p, tl.ContentPositionForPlayhead(p))
	}
	s.skipIfPassedWhilePaused(p)

	brk := tl.CurrentBreak(p)
	if brk != nil && !brk.IsActive() {
		brk = nil
	}
	var adv *timeline.Advert
	if brk != nil {
		if adv = brk.AdvertAt(p); adv != nil && !adv.IsActive() {
			adv = nil
		}
	}

	if cur := s.curAdvert; cur != nil && cur != adv {
		if continuous && p >= cur.End() {
			cur.ReportComplete(true)
		}
		s.setCurrent(s.curBreak, nil)
		s.publishAdvert(bus.KindAdvertEnd, cur)
	}
	if cur := s.curBreak; cur != nil && cur != brk {
		s.leaveBreak(cur, p, continuous)
	}
	if brk != nil && brk != s.curBreak {
		s.setCurrent(brk, nil)
		brk.ReportBreakStart()
		s.publishBreak(bus.KindAdBreakStart, brk)
	}
	if adv != nil && adv != s.curAdvert {
		s.setCurrent(brk, adv)
		s.publishAdvert(bus.KindAdvertStart, adv)
	}
	if adv != nil {
		adv.ReportPlayback(adv.AdTime(p), continuous || s.props.FireHistoricalBeacons)
	}
	if brk != nil && adv == nil && brk.IsLinear() && !brk.HasActiveAdvertsAfter(p) {
		s.finishBreak(brk)
	}

	log.Debug(s.logger, s.props.DebugFlags, log.DebugPlayback).
		Float64(log.FieldPlayhead, p).
		Bool("continuous", continuous).
		Msg("playhead")
	s.releaseDateRanges(p)
}

// leaveBreak handles the playhead exiting b. A break played through, or with
// nothing left to play, is finished; one left by seeking stays active so it
// can be played later.
func (s *Session) leaveBreak(b *timeline.AdBreak, p float64, continuous bool) {
	if (continuous && p >= b.End()) || !b.HasActiveAdvertsAfter(b.Start) {
		s.finishBreak(b)
		return
	}
	s.setCurrent(nil, nil)
	s.publishBreak(bus.KindAdBreakEnd, b)
}

// finishBreak fires breakEnd, deactivates b and publishes AdBreakEnd.
func (s *Session) finishBreak(b *timeline.AdBreak) {
	b.ReportBreakEnd()
	b.SetInactive()
	s.setCurrent(nil, nil)
	s.publishBreak(bus.KindAdBreakEnd, b)
	// Back-to-back breaks within the tolerance count as one for the normalizer.
	tol := s.props.ConsecutiveBreakTolerance.Seconds()
	if len(s.stream.Timeline.ActiveLinearBreaksBetween(b.Start, b.End()+tol)) == 0 {
		s.normalizer.AdBreakFinished()
	}
}

// skipIfPassedWhilePaused reports a skip for a live advert whose end slid
// out of reach while the player was paused.
func (s *Session) skipIfPassedWhilePaused(p float64) {
	a := s.pausedAdvert
	if a == nil || s.paused {
		return
	}
	s.pausedAdvert = nil
	if p >= a.End() && a.IsActive() {
		a.ReportSkip()
		log.Debug(s.logger, s.props.DebugFlags, log.DebugPlayback).
			Str(log.FieldAdvertID, a.ID).
			Msg("advert skipped while paused")
	}
}

func (s *Session) linearEvent(event string) {
	if a := s.curAdvert; a != nil && a.Linear != nil {
		a.Linear.TrackingEventDidOccur(event)
	}
}

// PlayerEventDidOccur forwards a player state change at playhead.
func (s *Session) PlayerEventDidOccur(ev model.PlayerEvent, playhead float64) error {
	return s.call(func() error {
		log.Debug(s.logger, s.props.DebugFlags, log.DebugPlayback).
			Str(log.FieldEvent, string(ev)).
			Float64(log.FieldPlayhead, playhead).
			Msg("player event")
		switch ev {
		case model.PlayerStart:
			s.advance(s.normalize(playhead), s.started)
			s.publish(bus.Event{Kind: bus.KindPlaybackStarted})
		case model.PlayerStop:
			s.stopKeepAliveLoop()
			s.emitter.Reset()
			s.publish(bus.Event{Kind: bus.KindPlaybackEnded})
		case model.PlayerPause:
			s.paused = true
			s.linearEvent(model.TrackPause)
			if s.live() && s.curAdvert != nil {
				s.pausedAdvert = s.curAdvert
			}
			s.startKeepAliveLoop()
			s.publish(bus.Event{Kind: bus.KindPlaybackPaused})
		case model.PlayerResume:
			s.paused = false
			s.stopKeepAliveLoop()
			s.linearEvent(model.TrackResume)
			s.publish(bus.Event{Kind: bus.KindPlaybackResumed})
			if s.live() {
				s.normalizer.SeekEnded(playhead)
				s.advance(playhead, false)
			} else {
				s.advance(playhead, true)
			}
		case model.PlayerStall:
			s.publish(bus.Event{Kind: bus.KindPlaybackStalled})
		case model.PlayerContinue:
			s.publish(bus.Event{Kind: bus.KindPlaybackContinued})
		case model.PlayerAdvertRewind:
			s.linearEvent(model.TrackRewind)
		case model.PlayerSeek:
			s.normalizer.SeekEnded(playhead)
			s.policy.DidSeek(s.playhead, playhead, s.stream.Timeline.Snapshot())
			s.advance(playhead, false)
		case model.PlayerAdvertSkip:
			if err := s.skipCurrent(playhead); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown player event %q", ev)
		}
		metrics.IncPlayerEvent(string(ev))
		return nil
	})
}

func (s *Session) skipCurrent(playhead float64) error {
	a := s.curAdvert
	if a == nil {
		return ErrNoAdvert
	}
	a.ReportSkip()
	s.policy.DidSkip(playhead, a.End(), s.stream.Timeline.Snapshot())
	s.setCurrent(s.curBreak, nil)
	s.publishAdvert(bus.KindAdvertEnd, a)
	if b := a.Break(); b != nil && !b.HasActiveAdvertsAfter(b.Start) {
		s.finishBreak(b)
	}
	return nil
}

// SeekDidStart must be paired with SeekDidEnd.
func (s *Session) SeekDidStart(playhead float64) error {
	return s.call(func() error {
		if s.seeking {
			return ErrSeekInProgress
		}
		s.seeking = true
		s.seekFrom = playhead
		s.normalizer.SeekStarted()
		return nil
	})
}

func (s *Session) SeekDidEnd(playhead float64) error {
	return s.call(func() error {
		if !s.seeking {
			return ErrSeekNotStarted
		}
		s.seeking = false
		s.normalizer.SeekEnded(playhead)
		s.policy.DidSeek(s.seekFrom, playhead, s.stream.Timeline.Snapshot())
		s.advance(playhead, false)
		return nil
	})
}

// ViewSizeDidChange reports the player switching between inline and fullscreen.
func (s *Session) ViewSizeDidChange(size model.ViewSize) error {
	return s.call(func() error {
		switch size {
		case model.ViewExpanded:
			s.linearEvent(model.TrackPlayerExpand)
			s.linearEvent(model.TrackFullscreen)
		case model.ViewCollapsed:
			s.linearEvent(model.TrackPlayerCollapse)
			s.linearEvent(model.TrackExitFullscreen)
		default:
			return fmt.Errorf("unknown view size %q", size)
		}
		return nil
	})
}

func (s *Session) VolumeDidChange(muted bool) error {
	return s.call(func() error {
		if muted {
			s.linearEvent(model.TrackMute)
		} else {
			s.linearEvent(model.TrackUnmute)
		}
		s.publish(bus.Event{Kind: bus.KindPlaybackVolumeChanged, Volume: &bus.VolumePayload{Muted: muted}})
		return nil
	})
}

// withAdvert runs fn on the current advert.
func (s *Session) withAdvert(fn func(a *timeline.Advert)) error {
	return s.call(func() error {
		if s.curAdvert == nil {
			return ErrNoAdvert
		}
		fn(s.curAdvert)
		return nil
	})
}

// ErrorDidOccur reports a VAST error code for the current advert.
func (s *Session) ErrorDidOccur(code int) error {
	return s.withAdvert(func(a *timeline.Advert) { a.ErrorDidOccur(code) })
}

func (s *Session) ViewableEventDidOccur(ev model.ViewableEvent) error {
	return s.withAdvert(func(a *timeline.Advert) { a.ViewableEventDidOccur(ev) })
}

func (s *Session) ImpressionEventDidOccur() error {
	return s.withAdvert(func(a *timeline.Advert) { a.ImpressionEventDidOccur() })
}

// TrackingEventDidOccur reports a named event on the current linear creative.
func (s *Session) TrackingEventDidOccur(event string) error {
	return s.withAdvert(func(a *timeline.Advert) {
		if a.Linear != nil {
			a.Linear.TrackingEventDidOccur(event)
		}
	})
}

// ClickThroughDidOccur reports a click on the current linear creative.
func (s *Session) ClickThroughDidOccur() error {
	return s.withAdvert(func(a *timeline.Advert) {
		if a.Linear != nil {
			a.Linear.ClickThroughDidOccur()
		}
	})
}

// VerificationEventDidOccur reports event on every verification of the current advert.
func (s *Session) VerificationEventDidOccur(event, reason string) error {
	return s.withAdvert(func(a *timeline.Advert) {
		for _, v := range a.Verifications {
			v.VerificationEventDidOccur(event, reason)
		}
	})
}

// NonLinearTrackingEventDidOccur reports event on the overlay break breakID.
func (s *Session) NonLinearTrackingEventDidOccur(breakID, event string) error {
	return s.call(func() error {
		b := s.stream.Timeline.BreakByID(breakID)
		if b == nil {
			return timeline.ErrBreakNotFound
		}
		if b.IsLinear() {
			return ErrNotNonLinear
		}
		b.NonLinearTrackingEventDidOccur(event)
		return nil
	})
}

// RemoveNonLinearAdBreak drops an overlay break the host has finished with.
func (s *Session) RemoveNonLinearAdBreak(breakID string) error {
	return s.call(func() error {
		b := s.stream.Timeline.BreakByID(breakID)
		if err := s.stream.Timeline.RemoveNonLinearBreak(b); err != nil {
			return err
		}
		if s.curBreak == b {
			s.setCurrent(nil, nil)
		}
		return nil
	})
}

// SetAdBreaksInactivePriorTo marks every break ending before playhead as
// played, without firing tracking.
func (s *Session) SetAdBreaksInactivePriorTo(playhead float64) error {
	return s.call(func() error {
		n := len(s.stream.Timeline.SetInactivePriorTo(playhead))
		log.Debug(s.logger, s.props.DebugFlags, log.DebugPlayback).
			Int("breaks", n).
			Float64(log.FieldPlayhead, playhead).
			Msg("breaks set inactive")
		return nil
	})
}

// SetPlayer records the player driving the session.
func (s *Session) SetPlayer(name string) error {
	return s.call(func() error {
		if s.player != "" && s.player == name {
			return ErrSamePlayer
		}
		s.player = name
		return nil
	})
}

// Suppress pauses or resumes analytics. Beacons raised while suppressed are
// dropped, except a breakStart of the break still playing, which is
// reported when suppression ends.
func (s *Session) Suppress(on bool) error {
	return s.call(func() error {
		s.mu.Lock()
		s.rec.AnalyticsSuppressed = on
		s.mu.Unlock()
		if s.dispatcher == nil {
			return nil
		}
		held := s.dispatcher.Suppress(on)
		if cur := s.curBreak; cur != nil {
			for _, b := range held {
				if b.Event == model.TrackBreakStart && b.BreakID == cur.ID {
					s.dispatcher.Report(b)
				}
			}
		}
		return nil
	})
}

// TimedMetadataWasCollected forwards ID3 or date range derived metadata.
// In live sessions the metadata positions the playhead on the advert it
// names; in VOD it is only published.
func (s *Session) TimedMetadataWasCollected(md *metadata.TimedMetadata) error {
	return s.call(func() error {
		s.handleMetadata(md)
		return nil
	})
}

// DateRangeWasCollected schedules timed metadata for an EXT-X-DATERANGE tag.
func (s *Session) DateRangeWasCollected(line string) error {
	return s.call(func() error {
		dr, err := metadata.ParseDateRange(line)
		if err != nil {
			metrics.IncTimedMetadata("invalid")
			return err
		}
		s.emitter.Track(dr, s.playhead)
		return nil
	})
}

func (s *Session) releaseDateRanges(p float64) {
	for _, md := range s.emitter.Advance(p) {
		s.handleMetadata(md)
	}
}

func (s *Session) handleMetadata(md *metadata.TimedMetadata) {
	if md == nil {
		metrics.IncTimedMetadata("invalid")
		return
	}
	if md.IsDuplicate(s.lastMetadata) {
		metrics.IncTimedMetadata("duplicate")
		return
	}
	s.lastMetadata = md
	s.publish(bus.Event{Kind: bus.KindTimedMetadata, Metadata: md})
	if !s.live() {
		metrics.IncTimedMetadata("ignored")
		return
	}

	adv := s.advertByMediaID(md.MediaID)
	if adv == nil {
		if cur := s.curBreak; cur != nil && cur.IsLinear() {
			s.returnEarly(cur)
		}
		metrics.IncTimedMetadata("ignored")
		return
	}
	metrics.IncTimedMetadata("accepted")
	log.Debug(s.logger, s.props.DebugFlags, log.DebugPlayback).
		Str(log.FieldMediaID, md.MediaID).
		Str("type", string(md.Type)).
		Msg("timed metadata")
	s.advance(adv.Start+md.Offset, s.started)
}

func (s *Session) advertByMediaID(mediaID string) *timeline.Advert {
	for _, b := range s.stream.Timeline.Breaks() {
		if a := b.AdvertByMediaID(mediaID); a != nil {
			return a
		}
	}
	return nil
}

// returnEarly ends b because the stream went back to content before the
// break's scheduled end.
func (s *Session) returnEarly(b *timeline.AdBreak) {
	if a := s.curAdvert; a != nil {
		s.setCurrent(b, nil)
		s.publishAdvert(bus.KindAdvertEnd, a)
	}
	s.publishBreak(bus.KindAdBreakEarlyReturn, b)
	s.finishBreak(b)
}
