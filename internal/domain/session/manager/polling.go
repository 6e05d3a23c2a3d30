// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/adsession/internal/bus"
	"github.com/ManuGH/adsession/internal/domain/session/lifecycle"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/session/ports"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
)

func (s *Session) nextPollInterval(hint time.Duration) time.Duration {
	if s.f.pollOverride > 0 {
		return s.f.pollOverride
	}
	if hint > 0 {
		return hint
	}
	return s.props.PollInterval
}

// pollLoop runs on a helper goroutine until the session stops or analytics
// end. Each result is applied on the loop before the next poll is scheduled.
func (s *Session) pollLoop(analyticsURL string, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		up, err := s.f.csm.Poll(s.ctx, analyticsURL)
		if s.ctx.Err() != nil {
			return
		}
		cont := make(chan bool, 1)
		if !s.post(func() { cont <- s.applyPoll(up, err) }) {
			return
		}
		if !<-cont {
			return
		}
		if up != nil {
			interval = s.nextPollInterval(up.PollInterval)
		}
		timer.Reset(interval)
	}
}

// applyPoll merges one poll result and reports whether polling continues.
func (s *Session) applyPoll(up *ports.Update, err error) bool {
	if s.rec.Closed || s.rec.Result != model.ResultInitialised {
		return false
	}
	if err != nil {
		if errors.Is(err, ports.ErrExpired) {
			s.expire()
			return false
		}
		s.pollFailures++
		s.logger.Warn().Err(err).Int("failures", s.pollFailures).Msg("analytics poll failed")
		if s.pollFailures >= s.f.maxPollFailures {
			s.loseAnalytics(err)
			return false
		}
		return true
	}
	s.pollFailures = 0
	if up == nil {
		return true
	}

	tl := s.stream.Timeline
	if up.Window != nil && s.mode == model.ModeDVRLive {
		s.stream.SetWindow(*up.Window)
		tl.SetInactivePriorTo(up.Window.Start)
	}
	added := tl.Merge(up.Breaks)
	for _, w := range up.Warnings {
		s.logger.Warn().Err(w).Msg("advert dropped from timeline")
	}
	s.publishRaw(up.RawVMAP, up.RawVAST)
	pruned := 0
	if s.mode == model.ModeLive {
		pruned = tl.PruneBefore(s.playhead)
	}
	s.prefetch(added)
	log.Debug(s.logger, s.props.DebugFlags, log.DebugPolling).
		Int("added", len(added)).
		Int("pruned", pruned).
		Msg("analytics update")
	s.publish(bus.Event{Kind: bus.KindAnalyticUpdate})
	return true
}

// expire moves the session to Timeout after the CSM forgot it.
func (s *Session) expire() {
	s.transition(lifecycle.Event{Kind: lifecycle.EvExpired, Reason: model.RSessionExpired})
	s.stopKeepAliveLoop()
	s.stream.Timeline.Bind(nil)
	s.mu.RLock()
	payload := &bus.SessionPayload{Result: s.rec.Result, Code: s.rec.Code, PlaybackURL: s.rec.PlaybackURL}
	s.mu.RUnlock()
	s.publish(bus.Event{Kind: bus.KindSessionTimeout, Session: payload})
}

// loseAnalytics degrades the session to NoAnalytics; playback continues.
func (s *Session) loseAnalytics(cause error) {
	s.transition(lifecycle.Event{Kind: lifecycle.EvAnalyticsLost, Reason: model.RAnalyticsLost})
	s.stream.Timeline.Bind(nil)
	s.publish(bus.Event{
		Kind:    bus.KindWarning,
		Warning: &bus.WarningPayload{Code: model.IntegrationNoAnalytics, Message: cause.Error()},
	})
}

func (s *Session) transition(ev lifecycle.Event) {
	s.mu.Lock()
	from := s.rec.Result
	_, err := lifecycle.Dispatch(s.rec, ev, s.f.now())
	to := s.rec.Result
	s.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Str("event", ev.Kind.String()).Msg("lifecycle transition rejected")
		return
	}
	metrics.IncSessionTransition(string(from), string(to))
	s.logger.Info().
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Msg("session result changed")
}

// startKeepAliveLoop pings the playback URL while paused so the proxy keeps
// the session.
func (s *Session) startKeepAliveLoop() {
	if !s.props.KeepProxyAlive || s.stopKeepAlive != nil || s.rec.PlaybackURL == "" {
		return
	}
	url := s.rec.PlaybackURL
	ctx, cancel := context.WithCancel(s.ctx)
	s.stopKeepAlive = cancel
	logger := s.logger
	every := s.f.keepAliveEvery
	ok := s.helpers.Go(func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			if err := s.f.csm.KeepAlive(ctx, url); err != nil && ctx.Err() == nil {
				logger.Debug().Err(err).Msg("keep alive failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	if !ok {
		cancel()
		s.stopKeepAlive = nil
	}
}

func (s *Session) stopKeepAliveLoop() {
	if s.stopKeepAlive != nil {
		s.stopKeepAlive()
		s.stopKeepAlive = nil
	}
}
