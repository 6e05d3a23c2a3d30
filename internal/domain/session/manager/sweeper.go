// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"time"

	"github.com/ManuGH/adsession/internal/log"
)

// SweeperConfig defines retention policies.
type SweeperConfig struct {
	Interval time.Duration
	// Retention is how long a failed or timed out session stays addressable.
	Retention time.Duration
	// IdleTimeout shuts down sessions without host calls for this long
	// (0 disables).
	IdleTimeout time.Duration
}

// Sweeper shuts down sessions the host forgot about.
type Sweeper struct {
	Factory *Factory
	Conf    SweeperConfig
	Now     func() time.Time
}

// Run calls SweepOnce on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Conf.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.Conf.Interval)
	defer ticker.Stop()

	logger := log.WithComponent("sweeper")
	logger.Info().Dur("interval", s.Conf.Interval).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepOnce(ctx); n > 0 {
				logger.Info().Int("sessions", n).Msg("swept sessions")
			}
		}
	}
}

// SweepOnce performs one pass and returns how many sessions were shut down.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now()

	var stale []string
	for _, sess := range s.Factory.Sessions() {
		rec := sess.Record()
		switch {
		case rec.Result.IsTerminal() && t.Sub(rec.UpdatedAt) >= s.Conf.Retention:
			stale = append(stale, sess.Token())
		case s.Conf.IdleTimeout > 0 && t.Sub(sess.LastActivity()) >= s.Conf.IdleTimeout:
			stale = append(stale, sess.Token())
		}
	}

	logger := log.WithComponent("sweeper")
	swept := 0
	for _, token := range stale {
		if err := s.Factory.Shutdown(ctx, token); err != nil {
			logger.Warn().Err(err).Str(log.FieldToken, token).Msg("sweep shutdown failed")
			continue
		}
		swept++
	}
	return swept
}
