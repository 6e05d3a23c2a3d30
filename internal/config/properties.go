// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/log"
)

// DefaultUserAgent is sent on CSM and beacon requests when none is configured.
const DefaultUserAgent = "adsession/1"

// Properties are the per-session options handed to the factory. The factory
// stores a Clone, so mutating a Properties after Create has no effect on the
// session.
type Properties struct {
	Timeout                    time.Duration
	ResourceTimeout            time.Duration
	PollInterval               time.Duration
	KeepProxyAlive             bool
	UserAgent                  string
	ProxyUserAgent             string
	PrefetchNonLinearResources bool
	FireHistoricalBeacons      bool
	ApplyEncryptedTracking     bool
	ExcludeFromSuppression     model.EventCategory
	ConsecutiveBreakTolerance  time.Duration
	CustomHeaders              map[string]string
	DebugFlags                 log.DebugArea

	// RetryWithoutAds asks the host integration to play the source URL when
	// the session cannot be initialised.
	RetryWithoutAds bool
}

// DefaultProperties returns the documented defaults.
func DefaultProperties() Properties {
	return Properties{
		Timeout:                   5 * time.Second,
		ResourceTimeout:           2 * time.Second,
		PollInterval:              5 * time.Second,
		UserAgent:                 DefaultUserAgent,
		ConsecutiveBreakTolerance: 4 * time.Second,
		CustomHeaders:             map[string]string{},
	}
}

// Clone returns a deep copy.
func (p Properties) Clone() Properties {
	out := p
	out.CustomHeaders = maps.Clone(p.CustomHeaders)
	if out.CustomHeaders == nil {
		out.CustomHeaders = map[string]string{}
	}
	return out
}

// Validate checks ranges.
func (p Properties) Validate() error {
	var errs []string
	if p.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if p.ResourceTimeout <= 0 {
		errs = append(errs, "resourceTimeout must be positive")
	}
	if p.PollInterval < time.Second {
		errs = append(errs, "pollInterval must be at least 1s")
	}
	if p.ConsecutiveBreakTolerance < 0 {
		errs = append(errs, "consecutiveBreakTolerance must not be negative")
	}
	for k := range p.CustomHeaders {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, " :\r\n") {
			errs = append(errs, fmt.Sprintf("invalid custom header name %q", k))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProperties, strings.Join(errs, "; "))
	}
	return nil
}

var categoryNames = map[string]model.EventCategory{
	"break":    model.CategoryBreakEvents,
	"timeline": model.CategoryTimelineEvents,
}

// ParseCategories converts names such as "break" or "timeline" into a mask.
func ParseCategories(names []string) (model.EventCategory, error) {
	var c model.EventCategory
	for _, n := range names {
		v, ok := categoryNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown event category %q", n)
		}
		c |= v
	}
	return c, nil
}

var debugNames = map[string]log.DebugArea{
	"playback":      log.DebugPlayback,
	"lifecycle":     log.DebugLifecycle,
	"polling":       log.DebugPolling,
	"reports":       log.DebugReports,
	"state_machine": log.DebugStateMachine,
	"http":          log.DebugHTTPRequests,
	"parsing":       log.DebugParsing,
	"validation":    log.DebugValidation,
	"all":           log.DebugAll,
}

// ParseDebugFlags converts area names into a debug mask.
func ParseDebugFlags(names []string) (log.DebugArea, error) {
	var d log.DebugArea
	for _, n := range names {
		v, ok := debugNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown debug area %q", n)
		}
		d |= v
	}
	return d, nil
}
