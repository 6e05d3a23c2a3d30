// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsession_sessions_created_total",
		Help: "Sessions created by playback mode and initial result",
	}, []string{"mode", "result"})

	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adsession_sessions_active",
		Help: "Sessions currently registered by playback mode",
	}, []string{"mode"})

	sessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsession_session_transitions_total",
		Help: "Session result transitions",
	}, []string{"from", "to"})

	sessionInitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adsession_session_init_seconds",
		Help:    "Time from Create to the initial session result",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"mode"})

	playerEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsession_player_events_total",
		Help: "Player events accepted by the session",
	}, []string{"event"})

	timedMetadataTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsession_timed_metadata_total",
		Help: "Timed metadata items by outcome",
	}, []string{"outcome"}) // accepted|duplicate|invalid|ignored
)

var knownModes = map[string]struct{}{
	"VOD": {}, "LIVE": {}, "DVR_LIVE": {}, "NONLINEAR_START_OVER": {},
}

var knownResults = map[string]struct{}{
	"NOT_INITIALISED": {}, "INITIALISED": {}, "NO_ANALYTICS": {}, "FAILED": {}, "TIMEOUT": {},
}

func normalize(v string, allowed map[string]struct{}) string {
	if _, ok := allowed[v]; ok {
		return v
	}
	return "unknown"
}

// IncSessionCreated counts a session whose initial result is known.
func IncSessionCreated(mode, result string) {
	sessionsCreatedTotal.WithLabelValues(normalize(mode, knownModes), normalize(result, knownResults)).Inc()
}

// SessionOpened and SessionClosed keep the active gauge in step with the registry.
func SessionOpened(mode string) { sessionsActive.WithLabelValues(normalize(mode, knownModes)).Inc() }

func SessionClosed(mode string) { sessionsActive.WithLabelValues(normalize(mode, knownModes)).Dec() }

// IncSessionTransition counts a result change.
func IncSessionTransition(from, to string) {
	sessionTransitionsTotal.WithLabelValues(normalize(from, knownResults), normalize(to, knownResults)).Inc()
}

// ObserveSessionInit records initialisation latency in seconds.
func ObserveSessionInit(mode string, seconds float64) {
	sessionInitSeconds.WithLabelValues(normalize(mode, knownModes)).Observe(seconds)
}

// IncPlayerEvent counts an accepted player event.
func IncPlayerEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	playerEventsTotal.WithLabelValues(event).Inc()
}

// IncTimedMetadata counts a timed metadata item by outcome.
func IncTimedMetadata(outcome string) {
	timedMetadataTotal.WithLabelValues(outcome).Inc()
}
