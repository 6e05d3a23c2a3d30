// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tracking

import (
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/rs/zerolog"
)

// Options are the per-session delivery settings.
type Options struct {
	SessionID              string
	UserAgent              string
	CustomHeaders          map[string]string
	ApplyEncryptedTracking bool
	ExcludeFromSuppression model.EventCategory
	DebugFlags             log.DebugArea
}

// Dispatcher is a session's timeline.Reporter. It stamps playhead macros,
// applies suppression and hands the expanded URLs to the shared Sender.
type Dispatcher struct {
	sender *Sender
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	playhead   Playhead
	suppressed bool
	held       []timeline.Beacon
	observers  []func(timeline.Beacon)
}

var _ timeline.Reporter = (*Dispatcher)(nil)

func NewDispatcher(sender *Sender, opts Options) *Dispatcher {
	opts.CustomHeaders = maps.Clone(opts.CustomHeaders)
	return &Dispatcher{
		sender: sender,
		opts:   opts,
		logger: log.WithComponent("tracking").With().Str(log.FieldSessionID, opts.SessionID).Logger(),
		now:    sender.now,
	}
}

// Observe registers fn to see every beacon that is not suppressed, whether
// or not it has URLs.
func (d *Dispatcher) Observe(fn func(timeline.Beacon)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// SetPlayhead records the positions used for playhead macros.
func (d *Dispatcher) SetPlayhead(media, content float64) {
	d.mu.Lock()
	d.playhead = Playhead{Media: media, Content: content}
	d.mu.Unlock()
}

// Suppress toggles analytics suppression. Turning it off returns the
// beacons held while it was on; they are not sent.
func (d *Dispatcher) Suppress(on bool) []timeline.Beacon {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suppressed = on
	if on {
		return nil
	}
	held := d.held
	d.held = nil
	return held
}

// Suppressed reports whether analytics are currently suppressed.
func (d *Dispatcher) Suppressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

// Report implements timeline.Reporter. It never blocks on the network.
func (d *Dispatcher) Report(b timeline.Beacon) {
	if b.Category == 0 {
		b.Category = model.CategoryFor(b.Event)
	}
	d.mu.Lock()
	if d.suppressed && !d.opts.ExcludeFromSuppression.Has(b.Category) {
		d.held = append(d.held, b)
		d.mu.Unlock()
		log.Debug(d.logger, d.opts.DebugFlags, log.DebugReports).
			Str(log.FieldEvent, b.Event).Msg("beacon suppressed")
		return
	}
	p := d.playhead
	observers := append([]func(timeline.Beacon){}, d.observers...)
	d.mu.Unlock()

	macros := NewMacros(b, p, d.now())
	for _, raw := range b.URLs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		u := macros.Expand(strings.TrimSpace(raw))
		if d.opts.ApplyEncryptedTracking && strings.HasPrefix(u, "http://") {
			u = "https://" + strings.TrimPrefix(u, "http://")
		}
		err := d.sender.enqueue(request{
			id:        newID(),
			sessionID: d.opts.SessionID,
			url:       u,
			event:     b.Event,
			category:  categoryName(b.Category),
			breakID:   b.BreakID,
			advertID:  b.AdvertID,
			userAgent: d.opts.UserAgent,
			headers:   d.opts.CustomHeaders,
		})
		if err != nil {
			d.logger.Warn().Err(err).Str(log.FieldEvent, b.Event).Msg("beacon not queued")
		}
	}
	log.Debug(d.logger, d.opts.DebugFlags, log.DebugReports).
		Str(log.FieldEvent, b.Event).
		Str(log.FieldBreakID, b.BreakID).
		Str(log.FieldAdvertID, b.AdvertID).
		Int("urls", len(b.URLs)).
		Msg("beacon reported")

	for _, fn := range observers {
		fn(b)
	}
}

func categoryName(c model.EventCategory) string {
	switch c {
	case model.CategoryBreakEvents:
		return "break"
	case model.CategoryTimelineEvents:
		return "timeline"
	}
	return "unknown"
}
