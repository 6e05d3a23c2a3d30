// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tracking expands and delivers analytic beacons. A Sender owns the
// shared worker pool, rate limiter and outbox; each session reports through
// its own Dispatcher.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
	"github.com/ManuGH/adsession/internal/outbox"
	"github.com/ManuGH/adsession/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var ErrSenderClosed = errors.New("tracking: sender closed")

const maxBackoff = 5 * time.Minute

// SenderConfig tunes delivery.
type SenderConfig struct {
	Workers        int
	QueueSize      int
	RatePerSecond  float64
	Burst          int
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryBase      time.Duration
	ReplayInterval time.Duration
	// OutboxBackend labels the outbox depth gauge.
	OutboxBackend string
}

func (c *SenderConfig) defaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 50
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
	if c.OutboxBackend == "" {
		c.OutboxBackend = outbox.BackendMemory
	}
}

// request is one expanded beacon URL.
type request struct {
	id        string
	sessionID string
	url       string
	event     string
	category  string
	breakID   string
	advertID  string
	userAgent string
	headers   map[string]string
	attempts  int
	created   time.Time
}

// Sender delivers beacon requests. Failed requests are parked in the outbox
// and replayed with exponential backoff.
type Sender struct {
	cfg     SenderConfig
	http    *http.Client
	limiter *rate.Limiter
	store   outbox.Store
	logger  zerolog.Logger
	now     func() time.Time

	queue    chan request
	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	stopLoop context.CancelFunc
}

type SenderOption func(*Sender)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) SenderOption {
	return func(s *Sender) { s.http = hc }
}

// WithNow injects the clock used for backoff scheduling.
func WithNow(now func() time.Time) SenderOption {
	return func(s *Sender) { s.now = now }
}

// NewSender builds a sender over store. Call Start before reporting.
func NewSender(cfg SenderConfig, store outbox.Store, opts ...SenderOption) *Sender {
	cfg.defaults()
	s := &Sender{
		cfg:     cfg,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		store:   store,
		logger:  log.WithComponent("tracking"),
		now:     time.Now,
		queue:   make(chan request, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the workers and, when a replay interval is configured, the
// outbox replay loop.
func (s *Sender) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	if s.cfg.ReplayInterval > 0 {
		loopCtx, cancel := context.WithCancel(ctx)
		s.stopLoop = cancel
		s.wg.Add(1)
		go s.replayLoop(loopCtx)
	}
}

func (s *Sender) enqueue(r request) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSenderClosed
	}
	select {
	case s.queue <- r:
		return nil
	default:
	}
	// Queue full: park it for replay rather than block the session loop.
	metrics.IncBeacon(r.category, "overflow")
	return s.park(context.Background(), r, "queue full")
}

func (s *Sender) worker() {
	defer s.wg.Done()
	for r := range s.queue {
		ctx := context.Background()
		if err := s.deliver(ctx, r); err != nil {
			if perr := s.park(ctx, r, err.Error()); perr != nil {
				s.logger.Error().Err(perr).Str(log.FieldURL, r.url).Msg("failed to park beacon")
			}
		}
	}
}

func (s *Sender) deliver(ctx context.Context, r request) (err error) {
	ctx, span := telemetry.Tracer("tracking").Start(ctx, "tracking.beacon")
	span.SetAttributes(telemetry.BeaconAttributes(r.event, r.category, r.breakID, r.advertID, r.attempts+1)...)
	start := time.Now()
	defer func() {
		outcome := "sent"
		if err != nil {
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.IncBeacon(r.category, outcome)
		metrics.ObserveBeacon(time.Since(start))
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return err
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("beacon %s: HTTP %d", r.event, resp.StatusCode)
	}
	return nil
}

func (s *Sender) backoff(attempts int) time.Duration {
	d := s.cfg.RetryBase << min(attempts, 16)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (s *Sender) park(ctx context.Context, r request, reason string) error {
	if r.attempts+1 >= s.cfg.MaxAttempts {
		metrics.IncBeacon(r.category, "dropped")
		s.logger.Warn().Str(log.FieldURL, r.url).Str(log.FieldEvent, r.event).Str("reason", reason).Msg("beacon dropped after final attempt")
		return nil
	}
	now := s.now()
	if r.created.IsZero() {
		r.created = now
	}
	err := s.store.Put(ctx, outbox.Entry{
		ID:          r.id,
		SessionID:   r.sessionID,
		URL:         r.url,
		Event:       r.event,
		Category:    r.category,
		UserAgent:   r.userAgent,
		Headers:     r.headers,
		Attempts:    r.attempts + 1,
		LastError:   reason,
		CreatedAt:   r.created,
		NextAttempt: now.Add(s.backoff(r.attempts + 1)),
	})
	if err == nil {
		metrics.IncBeacon(r.category, "deferred")
		s.reportDepth(ctx)
	}
	return err
}

func (s *Sender) reportDepth(ctx context.Context) {
	if n, err := s.store.Len(ctx); err == nil {
		metrics.SetOutboxDepth(s.cfg.OutboxBackend, n)
	}
}

// Replay redelivers due outbox entries once and returns how many were sent.
func (s *Sender) Replay(ctx context.Context) (int, error) {
	due, err := s.store.Due(ctx, s.now(), s.cfg.QueueSize)
	if err != nil {
		return 0, fmt.Errorf("tracking: load due beacons: %w", err)
	}
	sent := 0
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		r := request{
			id: e.ID, sessionID: e.SessionID, url: e.URL, event: e.Event,
			category: e.Category, userAgent: e.UserAgent, headers: e.Headers,
			attempts: e.Attempts, created: e.CreatedAt,
		}
		derr := s.deliver(ctx, r)
		switch {
		case derr == nil:
			sent++
			err = s.store.Ack(ctx, e.ID)
		case e.Attempts+1 >= s.cfg.MaxAttempts:
			metrics.IncBeacon(e.Category, "dropped")
			err = s.store.Ack(ctx, e.ID)
		default:
			err = s.store.Retry(ctx, e.ID, s.now().Add(s.backoff(e.Attempts+1)), derr.Error())
		}
		if err != nil && !errors.Is(err, outbox.ErrNotFound) {
			return sent, fmt.Errorf("tracking: update outbox: %w", err)
		}
	}
	s.reportDepth(ctx)
	if sent > 0 {
		s.logger.Info().Int("sent", sent).Int("due", len(due)).Msg("replayed parked beacons")
	}
	return sent, nil
}

func (s *Sender) replayLoop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.cfg.ReplayInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Replay(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("beacon replay failed")
			}
		}
	}
}

// Close stops accepting beacons and waits for queued ones to be delivered or
// parked, bounded by ctx.
func (s *Sender) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	if s.stopLoop != nil {
		s.stopLoop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newID() string { return uuid.NewString() }
