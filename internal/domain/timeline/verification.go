// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import "sync"

// VerificationResource is a measurement script or executable.
type VerificationResource struct {
	Kind         string `json:"kind"` // JavaScriptResource or ExecutableResource
	APIFramework string `json:"apiFramework,omitempty"`
	Browser      bool   `json:"browserOptional,omitempty"`
	URL          string `json:"url"`
}

// AdVerification is a VAST 4 Verification block for a third-party measurement vendor.
type AdVerification struct {
	Vendor     string
	Parameters string
	Resources  []VerificationResource
	Tracking   []TrackingEvent

	mu     sync.Mutex
	fired  map[string]bool
	advert *Advert
}

// VerificationEventDidOccur reports a verification event such as
// verificationNotExecuted. Each event is reported at most once.
func (v *AdVerification) VerificationEventDidOccur(event, reason string) {
	v.mu.Lock()
	if v.fired == nil {
		v.fired = make(map[string]bool)
	}
	if v.fired[event] {
		v.mu.Unlock()
		return
	}
	v.fired[event] = true
	v.mu.Unlock()

	var urls []string
	for _, t := range v.Tracking {
		if t.Event == event {
			urls = append(urls, t.URL)
		}
	}
	if v.advert != nil {
		v.advert.report(Beacon{Event: event, URLs: urls, Reason: reason})
	}
}
