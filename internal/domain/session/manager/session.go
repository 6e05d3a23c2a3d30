// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/adsession/internal/bus"
	"github.com/ManuGH/adsession/internal/config"
	"github.com/ManuGH/adsession/internal/domain/metadata"
	"github.com/ManuGH/adsession/internal/domain/session/lifecycle"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/session/ports"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
	"github.com/ManuGH/adsession/internal/policy"
	"github.com/ManuGH/adsession/internal/telemetry"
	"github.com/ManuGH/adsession/internal/tracking"
	"github.com/rs/zerolog"
)

// Session is one ad session. Every mutating call is executed on the
// session's event loop, so timeline changes, beacons and published events
// happen in call order. Getters read a guarded snapshot and never block on
// the loop.
type Session struct {
	f         *Factory
	token     string
	sourceURL string
	mode      model.PlaybackMode
	props     config.Properties
	created   time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	cmds      chan func()
	done      chan struct{}
	helpers   sessionRegistry
	events    *bus.MemoryBus
	seq       atomic.Uint64
	lastCall  atomic.Int64
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	mu        sync.RWMutex
	rec       *model.SessionRecord
	stream    *timeline.Stream
	curBreak  *timeline.AdBreak
	curAdvert *timeline.Advert

	// Loop-owned.
	logger        zerolog.Logger
	dispatcher    *tracking.Dispatcher
	policy        policy.Handler
	normalizer    *metadata.Normalizer
	emitter       *metadata.DateRangeEmitter
	analyticsURL  string
	pollFailures  int
	playhead      float64
	started       bool
	seeking       bool
	seekFrom      float64
	paused        bool
	pausedAdvert  *timeline.Advert
	lastMetadata  *metadata.TimedMetadata
	player        string
	stopKeepAlive context.CancelFunc
}

func newSession(parent context.Context, f *Factory, token, sourceURL string, mode model.PlaybackMode, props config.Properties) *Session {
	ctx, cancel := context.WithCancel(log.ContextWithSessionID(parent, token))
	now := f.now()
	s := &Session{
		f:          f,
		token:      token,
		sourceURL:  sourceURL,
		mode:       mode,
		props:      props,
		created:    now,
		ctx:        ctx,
		cancel:     cancel,
		cmds:       make(chan func()),
		done:       make(chan struct{}),
		events:     bus.NewMemoryBus(),
		rec:        lifecycle.NewSessionRecord("", token, sourceURL, mode, now),
		stream:     timeline.NewStream("", mode, sourceURL, ""),
		policy:     f.newPolicy(mode),
		normalizer: metadata.NewNormalizer(),
		emitter:    metadata.NewDateRangeEmitter(),
		logger: log.WithComponent("session").With().
			Str(log.FieldToken, token).
			Str(log.FieldMode, string(mode)).
			Logger(),
	}
	s.policy.SetPlaybackMode(mode)
	s.lastCall.Store(now.UnixNano())
	return s
}

// Start launches the event loop and initialisation. Calls after the first
// are ignored.
func (s *Session) Start(handler func(*Session)) {
	s.startOnce.Do(func() {
		go s.run()
		if !s.helpers.Go(func() { s.initialise(handler) }) {
			s.f.logger.Warn().Str(log.FieldToken, s.token).Msg("session closed before start")
		}
	})
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.cmds <- func() { errc <- fn() }:
	case <-s.done:
		return ErrSessionClosed
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
	return <-errc
}

// call runs fn on the loop once the session accepts calls.
func (s *Session) call(fn func() error) error {
	return s.do(func() error {
		if err := lifecycle.Guard(s.rec); err != nil {
			return err
		}
		s.lastCall.Store(s.f.now().UnixNano())
		return fn()
	})
}

// post hands helper results to the loop without waiting for them to run.
func (s *Session) post(fn func()) bool {
	select {
	case s.cmds <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Run executes fn on the event loop. Use it for calls on timeline objects
// (creatives, icons, verifications) so they stay ordered with player events.
func (s *Session) Run(fn func(st *timeline.Stream)) error {
	return s.call(func() error {
		fn(s.stream)
		return nil
	})
}

func (s *Session) publish(ev bus.Event) {
	ev.Seq = s.seq.Add(1)
	ev.SessionID = s.rec.ID
	ev.At = s.f.now()
	ev.Playhead = s.playhead
	ctx, cancel := context.WithTimeout(s.ctx, s.f.publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil && !errors.Is(err, bus.ErrClosed) {
		s.logger.Debug().Err(err).Str("kind", string(ev.Kind)).Msg("event not delivered")
	}
}

func (s *Session) initialise(handler func(*Session)) {
	start := time.Now()
	ctx, span := telemetry.Tracer("manager").Start(s.ctx, "session.initialise")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.props.Timeout)
	res, err := s.f.csm.Resolve(ctx, s.sourceURL, s.mode)
	cancel()
	if s.ctx.Err() != nil {
		return
	}
	if res == nil {
		res = &ports.Resolution{Code: model.CodeConnectionError}
	}
	if err != nil && res.Code == model.CodeSuccess {
		res.Code = model.CodeUnknownFormat
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Int(log.FieldResultCode, int(res.Code)).Msg("session initialisation degraded")
	}
	if s.do(func() error { s.applyResolution(res); return nil }) != nil {
		return
	}
	span.SetAttributes(telemetry.ResultAttributes(string(s.Result()), int(res.Code))...)
	span.SetAttributes(telemetry.SessionAttributes(res.SessionID, string(s.mode))...)
	metrics.ObserveSessionInit(string(s.mode), time.Since(start).Seconds())
	if handler != nil {
		// Not tracked by helpers: the handler may shut the session down.
		go handler(s)
	}
}

func (s *Session) applyResolution(res *ports.Resolution) {
	now := s.f.now()
	s.mu.Lock()
	from := s.rec.Result
	if _, err := lifecycle.Dispatch(s.rec, lifecycle.EventForCode(res.Code), now); err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("initialisation result rejected")
		return
	}
	s.rec.ID = res.SessionID
	s.rec.PlaybackURL = res.PlaybackURL
	if s.rec.PlaybackURL == "" && s.rec.Result == model.ResultNoAnalytics {
		s.rec.PlaybackURL = s.sourceURL
	}
	stream := timeline.NewStream(res.SessionID, s.mode, s.sourceURL, s.rec.PlaybackURL)
	stream.Failover = res.Code == model.CodeFallbackURL
	if s.mode == model.ModeDVRLive {
		stream.SetWindow(window(res.Window))
	}
	stream.SetDuration(res.Duration)
	s.stream = stream
	result, code := s.rec.Result, s.rec.Code
	s.mu.Unlock()

	metrics.IncSessionTransition(string(from), string(result))
	metrics.IncSessionCreated(string(s.mode), string(result))
	s.logger = s.logger.With().Str(log.FieldSessionID, res.SessionID).Logger()
	log.Debug(s.logger, s.props.DebugFlags, log.DebugLifecycle).
		Str(log.FieldResult, string(result)).
		Int(log.FieldResultCode, int(code)).
		Int("breaks", len(res.Breaks)).
		Msg("session result")

	if result == model.ResultInitialised {
		s.dispatcher = tracking.NewDispatcher(s.f.sender, tracking.Options{
			SessionID:              res.SessionID,
			UserAgent:              s.props.UserAgent,
			CustomHeaders:          s.props.CustomHeaders,
			ApplyEncryptedTracking: s.props.ApplyEncryptedTracking,
			ExcludeFromSuppression: s.props.ExcludeFromSuppression,
			DebugFlags:             s.props.DebugFlags,
		})
		s.dispatcher.Observe(s.onBeacon)
		stream.Timeline.Bind(s.dispatcher)
		stream.Timeline.Merge(res.Breaks)
		s.analyticsURL = res.AnalyticsURL
		for _, w := range res.Warnings {
			s.logger.Warn().Err(w).Msg("advert dropped from timeline")
		}
		s.prefetch(res.Breaks)
	}

	s.publishRaw(res.RawVMAP, res.RawVAST)
	s.publish(bus.Event{
		Kind:    bus.KindSessionInitialised,
		Session: &bus.SessionPayload{Result: result, Code: code, PlaybackURL: stream.PlaybackURL},
	})
	if result != model.ResultInitialised && s.props.RetryWithoutAds {
		s.publish(bus.Event{
			Kind:    bus.KindWarning,
			Warning: &bus.WarningPayload{Code: integrationCode(result, code), Message: code.String()},
		})
	}
	if result == model.ResultInitialised && !s.mode.HasTimelineUpFront() && s.analyticsURL != "" {
		url, interval := s.analyticsURL, s.nextPollInterval(res.PollInterval)
		s.helpers.Go(func() { s.pollLoop(url, interval) })
	}
}

func integrationCode(result model.SessionResult, code model.ResultCode) model.IntegrationCode {
	switch {
	case code == model.CodeMalformedURL || code == model.CodeNonSDKURL:
		return model.IntegrationInvalidSource
	case result == model.ResultNoAnalytics:
		return model.IntegrationNoAnalytics
	case result == model.ResultNotInitialised:
		return model.IntegrationNotInitialised
	}
	return model.IntegrationUnknownError
}

func (s *Session) publishRaw(vmap string, vasts []string) {
	if vmap != "" {
		s.publish(bus.Event{Kind: bus.KindVMAPReceived, Raw: vmap})
	}
	for _, v := range vasts {
		s.publish(bus.Event{Kind: bus.KindVASTReceived, Raw: v})
	}
}

func (s *Session) onBeacon(b timeline.Beacon) {
	s.publish(bus.Event{
		Kind: bus.KindTrackingEvent,
		Tracking: &bus.TrackingPayload{
			Event:    b.Event,
			BreakID:  b.BreakID,
			AdvertID: b.AdvertID,
			URLs:     len(b.URLs),
		},
	})
}

// prefetch downloads static non-linear resources in the background.
func (s *Session) prefetch(breaks []*timeline.AdBreak) {
	if !s.props.PrefetchNonLinearResources {
		return
	}
	for _, b := range breaks {
		for _, a := range b.Adverts {
			for _, n := range a.NonLinears {
				for _, r := range n.Resources {
					if !r.NeedsPrefetch() {
						continue
					}
					s.helpers.Go(func() {
						ctx, cancel := context.WithTimeout(s.ctx, s.props.ResourceTimeout)
						defer cancel()
						data, err := s.f.csm.FetchResource(ctx, r.URI())
						if err != nil {
							s.logger.Debug().Err(err).Str(log.FieldURL, r.URI()).Msg("resource prefetch failed")
							return
						}
						s.post(func() { r.SetPrefetched(data) })
					})
				}
			}
		}
	}
}

// Subscribe returns a subscription to the session's event stream. Subscribe
// before Start (see Factory.Prepare) to see initialisation events.
func (s *Session) Subscribe(ctx context.Context) (bus.Subscription, error) {
	return s.events.Subscribe(ctx)
}

// LastActivity is when the host last made an accepted call.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastCall.Load())
}

// Done is closed once the event loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		// A prepared session that never started still needs its loop to close.
		s.startOnce.Do(func() { go s.run() })
		_ = s.do(func() error {
			s.stopKeepAliveLoop()
			s.mu.Lock()
			lifecycle.Close(s.rec, s.f.now())
			s.mu.Unlock()
			return nil
		})
		s.cancel()
		err := s.helpers.CloseAndWait(ctx)
		select {
		case <-s.done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
		_ = s.events.Close()
		metrics.SessionClosed(string(s.mode))
		s.f.logger.Info().Str(log.FieldToken, s.token).Msg("session shut down")
		s.closeErr = err
	})
	return s.closeErr
}

func (s *Session) Token() string                 { return s.token }
func (s *Session) SourceURL() string             { return s.sourceURL }
func (s *Session) Mode() model.PlaybackMode      { return s.mode }
func (s *Session) Properties() config.Properties { return s.props.Clone() }

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ID
}

func (s *Session) Result() model.SessionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Result
}

func (s *Session) ResultCode() model.ResultCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Code
}

func (s *Session) PlaybackURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.PlaybackURL
}

// Record returns a copy of the lifecycle record.
func (s *Session) Record() model.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.rec
}

func (s *Session) Stream() *timeline.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

func (s *Session) CurrentAdBreak() *timeline.AdBreak {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curBreak
}

func (s *Session) CurrentAdvert() *timeline.Advert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curAdvert
}
