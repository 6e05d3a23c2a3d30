// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramCount(t *testing.T, obs prometheus.Observer) uint64 {
	t.Helper()
	h, ok := obs.(prometheus.Histogram)
	require.True(t, ok, "observer is not a histogram")
	m := &dto.Metric{}
	require.NoError(t, h.Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestSessionLabelsAreNormalized(t *testing.T) {
	before := testutil.ToFloat64(sessionsCreatedTotal.WithLabelValues("unknown", "INITIALISED"))
	IncSessionCreated("bogus-mode", "INITIALISED")
	after := testutil.ToFloat64(sessionsCreatedTotal.WithLabelValues("unknown", "INITIALISED"))
	assert.Equal(t, before+1, after)
}

func TestActiveGaugeTracksOpenClose(t *testing.T) {
	g := sessionsActive.WithLabelValues("VOD")
	base := testutil.ToFloat64(g)
	SessionOpened("VOD")
	SessionOpened("VOD")
	SessionClosed("VOD")
	assert.Equal(t, base+1, testutil.ToFloat64(g))
}

func TestCSMRequestObservesLatency(t *testing.T) {
	before := histogramCount(t, csmRequestSeconds.WithLabelValues("init"))
	ObserveCSMRequest("init", "ok", 120*time.Millisecond)
	assert.Equal(t, before+1, histogramCount(t, csmRequestSeconds.WithLabelValues("init")))
}

func TestCircuitBreakerStateIsOneHot(t *testing.T) {
	SetCircuitBreakerState("csm-test", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("csm-test", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("csm-test", "closed")))
}

func TestBusDropDefaultsLabels(t *testing.T) {
	before := testutil.ToFloat64(BusDroppedTotal.WithLabelValues("unknown", "unknown"))
	IncBusDropReason("", "")
	assert.Equal(t, before+1, testutil.ToFloat64(BusDroppedTotal.WithLabelValues("unknown", "unknown")))
}

func TestPolicyDecisionLabels(t *testing.T) {
	before := testutil.ToFloat64(policyDecisionsTotal.WithLabelValues("unknown", "denied"))
	IncPolicyDecision("teleport", false)
	assert.Equal(t, before+1, testutil.ToFloat64(policyDecisionsTotal.WithLabelValues("unknown", "denied")))

	before = testutil.ToFloat64(policyDecisionsTotal.WithLabelValues("skip", "allowed"))
	IncPolicyDecision("skip", true)
	assert.Equal(t, before+1, testutil.ToFloat64(policyDecisionsTotal.WithLabelValues("skip", "allowed")))
}
