// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	csmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsession_csm_requests_total",
		Help: "Requests to the central session manager by operation and outcome",
	}, []string{"op", "outcome"})

	csmRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adsession_csm_request_seconds",
		Help:    "Central session manager request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	vastParseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsession_vast_documents_total",
		Help: "VAST and VMAP documents parsed by kind and outcome",
	}, []string{"kind", "outcome"})

	beaconsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsession_beacons_total",
		Help: "Tracking beacons by category and outcome",
	}, []string{"category", "outcome"}) // outcome=sent|failed|suppressed|dropped|replayed

	beaconSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adsession_beacon_seconds",
		Help:    "Beacon delivery latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	outboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adsession_outbox_depth",
		Help: "Beacons waiting in the outbox by backend",
	}, []string{"backend"})
)

// ObserveCSMRequest records one request to the session manager.
func ObserveCSMRequest(op, outcome string, d time.Duration) {
	csmRequestsTotal.WithLabelValues(op, outcome).Inc()
	csmRequestSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// IncVASTParse counts a parsed document.
func IncVASTParse(kind, outcome string) {
	vastParseTotal.WithLabelValues(kind, outcome).Inc()
}

// IncBeacon counts one beacon URL.
func IncBeacon(category, outcome string) {
	if category == "" {
		category = "unknown"
	}
	beaconsTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveBeacon records delivery latency of a sent beacon.
func ObserveBeacon(d time.Duration) { beaconSeconds.Observe(d.Seconds()) }

// SetOutboxDepth reports the number of queued beacons.
func SetOutboxDepth(backend string, n int) {
	outboxDepth.WithLabelValues(backend).Set(float64(n))
}
