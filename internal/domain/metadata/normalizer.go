// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"sync"

	"github.com/ManuGH/adsession/internal/log"
	"github.com/rs/zerolog"
)

const (
	maxUnexpectedJumpForward = 2.0
	maxUnexpectedJumpBack    = -0.5
	defaultIncrement         = 1.0
	resetDelayUpdates        = 2
)

type jump int

const (
	jumpNone jump = iota
	jumpBackwards
	jumpForwards
)

// Normalizer smooths playheads from players that report spurious jumps inside
// ad breaks. An unexpected jump is replaced by the previous value plus the last
// good delta until the matching reverse jump arrives. Seeks and the end of an
// ad break reset it.
type Normalizer struct {
	mu sync.Mutex

	started        bool
	seeking        bool
	last           float64
	lastNormalized float64
	lastGoodDelta  float64
	expecting      jump
	resetIn        int

	logger zerolog.Logger
}

// NewNormalizer returns a normalizer that passes its first value through.
func NewNormalizer() *Normalizer {
	return &Normalizer{resetIn: -1, logger: log.WithComponent("normalizer")}
}

// Normalize maps a raw playhead to a monotonic one.
func (n *Normalizer) Normalize(t float64) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		n.started = true
		n.last, n.lastNormalized = t, t
		return t
	}
	if n.seeking {
		return n.lastNormalized
	}

	if n.resetIn > 0 {
		n.resetIn--
		if n.resetIn == 0 {
			n.resetIn = -1
			if n.expecting != jumpNone {
				n.logger.Debug().Float64(log.FieldPlayhead, t).Msg("scheduled reset")
				n.reset(t)
				return t
			}
		}
	}

	delta := t - n.last
	var out float64
	switch {
	case delta > maxUnexpectedJumpForward:
		if n.expecting == jumpForwards {
			out = t
			n.expecting = jumpNone
		} else {
			n.expecting = jumpBackwards
			out = n.incrementPrev()
			n.logger.Debug().Float64("delta", delta).Float64(log.FieldPlayhead, t).Msg("unexpected forward jump")
		}
	case delta < maxUnexpectedJumpBack:
		if n.expecting == jumpBackwards {
			out = t
			n.expecting = jumpNone
		} else {
			n.expecting = jumpForwards
			out = n.incrementPrev()
			n.logger.Debug().Float64("delta", delta).Float64(log.FieldPlayhead, t).Msg("unexpected backward jump")
		}
	case n.expecting != jumpNone:
		out = n.incrementPrev()
	default:
		out = t
		n.lastGoodDelta = delta
	}

	n.last = t
	n.lastNormalized = out
	return out
}

func (n *Normalizer) incrementPrev() float64 {
	inc := defaultIncrement
	if n.lastGoodDelta > 0 {
		inc = n.lastGoodDelta
	}
	return n.lastNormalized + inc
}

func (n *Normalizer) reset(t float64) {
	n.last, n.lastNormalized = t, t
	n.expecting = jumpNone
}

// Current returns the last normalized playhead.
func (n *Normalizer) Current() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastNormalized
}

// SeekStarted freezes the output until SeekEnded.
func (n *Normalizer) SeekStarted() {
	n.mu.Lock()
	n.seeking = true
	n.mu.Unlock()
}

// SeekEnded resets to the post-seek playhead.
func (n *Normalizer) SeekEnded(t float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seeking = false
	n.started = true
	n.reset(t)
}

// AdBreakFinished schedules a reset two updates later, so that a reverse jump
// arriving just after the break still resolves.
func (n *Normalizer) AdBreakFinished() {
	n.mu.Lock()
	n.resetIn = resetDelayUpdates
	n.mu.Unlock()
}
