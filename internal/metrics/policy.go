// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var policyDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "adsession_policy_decisions_total",
	Help: "Playback policy queries by action and decision",
}, []string{"action", "decision"})

var knownPolicyActions = map[string]struct{}{
	"stop": {}, "pause": {}, "skip": {}, "seek": {}, "volume": {},
	"resize": {}, "resize_creative": {}, "click_through": {},
}

// IncPolicyDecision counts one policy answer. Seek answers count as allowed
// when the target was not adjusted.
func IncPolicyDecision(action string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	policyDecisionsTotal.WithLabelValues(normalize(action, knownPolicyActions), decision).Inc()
}
