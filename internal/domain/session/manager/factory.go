// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manager owns ad sessions: it creates them against the CSM, runs one
// event loop per session and tears them down.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/adsession/internal/config"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/session/ports"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
	"github.com/ManuGH/adsession/internal/policy"
	"github.com/ManuGH/adsession/internal/tracking"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultKeepAliveInterval = 20 * time.Second
	defaultPublishTimeout    = 250 * time.Millisecond
	defaultMaxPollFailures   = 3
)

// Factory creates sessions and keeps them addressable by token until they
// are shut down.
type Factory struct {
	csm       ports.CSM
	sender    *tracking.Sender
	newPolicy func(model.PlaybackMode) policy.Handler
	now       func() time.Time

	keepAliveEvery  time.Duration
	publishTimeout  time.Duration
	pollOverride    time.Duration
	maxPollFailures int

	mu       sync.RWMutex
	closed   bool
	sessions map[string]*Session
	byURL    map[string]string

	logger zerolog.Logger
}

type Option func(*Factory)

// WithPolicy installs a policy constructor; the default is policy.NewDefault.
func WithPolicy(fn func(model.PlaybackMode) policy.Handler) Option {
	return func(f *Factory) { f.newPolicy = fn }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) { f.now = now }
}

// WithKeepAliveInterval sets how often a paused session pings the proxy.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(f *Factory) { f.keepAliveEvery = d }
}

// WithPollInterval forces the analytics poll interval, ignoring the CSM hint.
func WithPollInterval(d time.Duration) Option {
	return func(f *Factory) { f.pollOverride = d }
}

// WithMaxPollFailures sets how many consecutive poll failures drop analytics.
func WithMaxPollFailures(n int) Option {
	return func(f *Factory) { f.maxPollFailures = n }
}

func NewFactory(csm ports.CSM, sender *tracking.Sender, opts ...Option) *Factory {
	f := &Factory{
		csm:             csm,
		sender:          sender,
		newPolicy:       func(m model.PlaybackMode) policy.Handler { return policy.NewDefault(m) },
		now:             time.Now,
		keepAliveEvery:  defaultKeepAliveInterval,
		publishTimeout:  defaultPublishTimeout,
		maxPollFailures: defaultMaxPollFailures,
		sessions:        make(map[string]*Session),
		byURL:           make(map[string]string),
		logger:          log.WithComponent("manager"),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Create starts a session for sourceURL and returns its token at once.
// Initialisation continues in the background; handler is called exactly once
// when the result is known. props is copied.
func (f *Factory) Create(ctx context.Context, sourceURL string, mode model.PlaybackMode, props config.Properties, handler func(*Session)) (string, error) {
	s, err := f.Prepare(ctx, sourceURL, mode, props)
	if err != nil {
		return "", err
	}
	s.Start(handler)
	return s.token, nil
}

// Prepare registers a session without starting it, so callers can subscribe
// to its events before initialisation. Start it with Session.Start.
func (f *Factory) Prepare(ctx context.Context, sourceURL string, mode model.PlaybackMode, props config.Properties) (*Session, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if _, ok := model.ParsePlaybackMode(string(mode)); !ok {
		return nil, fmt.Errorf("unknown playback mode %q", mode)
	}

	token := uuid.NewString()
	s := newSession(context.WithoutCancel(ctx), f, token, sourceURL, mode, props.Clone())

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFactoryClosed
	}
	f.sessions[token] = s
	f.byURL[sourceURL] = token
	f.mu.Unlock()

	metrics.SessionOpened(string(mode))
	f.logger.Info().
		Str(log.FieldToken, token).
		Str(log.FieldMode, string(mode)).
		Msg("session created")
	return s, nil
}

func (f *Factory) CreateVOD(ctx context.Context, url string, props config.Properties, handler func(*Session)) (string, error) {
	return f.Create(ctx, url, model.ModeVOD, props, handler)
}

func (f *Factory) CreateLive(ctx context.Context, url string, props config.Properties, handler func(*Session)) (string, error) {
	return f.Create(ctx, url, model.ModeLive, props, handler)
}

func (f *Factory) CreateDVRLive(ctx context.Context, url string, props config.Properties, handler func(*Session)) (string, error) {
	return f.Create(ctx, url, model.ModeDVRLive, props, handler)
}

func (f *Factory) CreateStartOver(ctx context.Context, url string, props config.Properties, handler func(*Session)) (string, error) {
	return f.Create(ctx, url, model.ModeNonLinearStartOver, props, handler)
}

// Session returns the session registered under token.
func (f *Factory) Session(token string) (*Session, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sessions[token]
	return s, ok
}

// Sessions lists live sessions ordered by creation time.
func (f *Factory) Sessions() []*Session {
	f.mu.RLock()
	out := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].created.Before(out[j].created) })
	return out
}

// TokenForURL returns the token of the latest session created for url.
func (f *Factory) TokenForURL(url string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.byURL[url]
	return t, ok
}

// Shutdown stops the session and waits for its goroutines.
func (f *Factory) Shutdown(ctx context.Context, token string) error {
	f.mu.Lock()
	s, ok := f.sessions[token]
	if ok {
		f.forget(s)
	}
	f.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	return s.shutdown(ctx)
}

// forget drops s from the indexes. Caller holds f.mu.
func (f *Factory) forget(s *Session) {
	delete(f.sessions, s.token)
	if f.byURL[s.sourceURL] == s.token {
		delete(f.byURL, s.sourceURL)
	}
}

// ShutdownAll stops every session concurrently and refuses new ones. A
// failing session does not cut the others short; the first error is
// returned once all of them have finished.
func (f *Factory) ShutdownAll(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	all := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		all = append(all, s)
		f.forget(s)
	}
	f.mu.Unlock()

	var g errgroup.Group
	for _, s := range all {
		g.Go(func() error {
			if err := s.shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown %s: %w", s.token, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		f.logger.Warn().Err(err).Int("sessions", len(all)).Msg("shutdown incomplete")
	}
	return err
}
