// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"maps"
	"math"
	"strconv"
	"sync"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// WrapperEntry is one ad server redirection an advert went through.
type WrapperEntry struct {
	AdID       string `json:"adId"`
	CreativeID string `json:"creativeId,omitempty"`
	AdSystem   string `json:"adSystem,omitempty"`
}

// Pricing is the VAST Pricing element.
type Pricing struct {
	Model    string  `json:"model"`
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

// NotSkippable is the SkipOffset of an advert that cannot be skipped.
const NotSkippable = -1.0

// Advert is a single ad inside a break. The structural fields are set by the
// builder before the advert joins a break and are read-only afterwards.
type Advert struct {
	ID          string
	MediaID     string
	AdType      string
	AdSystem    string
	AdTitle     string
	AdServingID string
	Sequence    int
	Start       float64
	Duration    float64
	SkipOffset  float64
	Filler      bool

	Linear        *LinearCreative
	NonLinears    []*NonLinearCreative
	Companions    []*CompanionCreative
	Interactive   *InteractiveCreative
	Icons         []*IndustryIcon
	Verifications []*AdVerification
	Properties    []VASTProperty
	Extensions    []*XMLNode
	Pricing       *Pricing

	// Lineage lists wrappers outermost first. It is empty for inline ads.
	Lineage []WrapperEntry

	ImpressionURLs []string
	ErrorURLs      []string
	ViewableURLs   map[model.ViewableEvent][]string

	mu       sync.Mutex
	active   bool
	fired    map[string]bool
	macros   map[string]string
	brk      *AdBreak
	reporter Reporter
}

type milestone struct {
	event    string
	fraction float64
}

var quartiles = []milestone{
	{model.TrackFirstQuartile, 0.25},
	{model.TrackMidpoint, 0.5},
	{model.TrackThirdQuartile, 0.75},
}

func (a *Advert) assemble(b *AdBreak) {
	a.brk = b
	a.active = true
	a.fired = make(map[string]bool)
	if a.macros == nil {
		a.macros = make(map[string]string)
	}
	if a.Linear != nil {
		a.Linear.attach(a)
	}
	for _, n := range a.NonLinears {
		n.attach(a)
	}
	for _, c := range a.Companions {
		c.attach(a)
	}
	if a.Interactive != nil {
		a.Interactive.attach(a)
		for _, n := range a.Interactive.NonLinears {
			n.attach(a)
		}
	}
	for _, i := range a.Icons {
		i.attach(a)
	}
	for _, v := range a.Verifications {
		v.advert = a
	}
}

func (a *Advert) bind(r Reporter) {
	a.mu.Lock()
	a.reporter = r
	a.mu.Unlock()
}

// Break returns the break the advert belongs to.
func (a *Advert) Break() *AdBreak { return a.brk }

// End is the playhead at which the advert finishes.
func (a *Advert) End() float64 { return a.Start + a.Duration }

// Contains reports whether playhead falls inside the advert.
func (a *Advert) Contains(playhead float64) bool {
	return playhead >= a.Start && playhead < a.End()
}

// IsActive reports whether the advert may still fire tracking.
func (a *Advert) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Advert) setInactive() {
	a.mu.Lock()
	a.active = false
	a.mu.Unlock()
}

// RemainingTime is the time left in the advert at playhead, clamped to [0, Duration].
func (a *Advert) RemainingTime(playhead float64) float64 {
	return clamp(a.End()-playhead, 0, a.Duration)
}

// AdTime is the position inside the advert at playhead, clamped to [0, Duration].
func (a *Advert) AdTime(playhead float64) float64 {
	return clamp(playhead-a.Start, 0, a.Duration)
}

// IsSkippable reports whether the linear creative declares a skip offset.
func (a *Advert) IsSkippable() bool { return a.SkipOffset >= 0 }

// Property returns the named VAST property.
func (a *Advert) Property(name string) (VASTProperty, bool) {
	return findProperty(a.Properties, name)
}

// NonLinearCreatives returns the non-linear creatives carrying a resource of
// type t. ResourceUnknown selects creatives without any resource.
func (a *Advert) NonLinearCreatives(t model.ResourceType) []*NonLinearCreative {
	var out []*NonLinearCreative
	for _, n := range a.NonLinears {
		if matchesResource(n.Resources, t) {
			out = append(out, n)
		}
	}
	return out
}

// CompanionAds returns the companions carrying a resource of type t.
// ResourceUnknown selects companions that only carry tracking.
func (a *Advert) CompanionAds(t model.ResourceType) []*CompanionCreative {
	var out []*CompanionCreative
	for _, c := range a.Companions {
		if matchesResource(c.Resources, t) {
			out = append(out, c)
		}
	}
	return out
}

func matchesResource(res map[model.ResourceType]*Resource, t model.ResourceType) bool {
	if t == model.ResourceUnknown {
		return len(res) == 0
	}
	_, ok := res[t]
	return ok
}

// AddMacroSubstitution registers a value substituted for [key] in this advert's beacons.
func (a *Advert) AddMacroSubstitution(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.macros == nil {
		a.macros = make(map[string]string)
	}
	a.macros[key] = value
}

// RemoveMacroSubstitution drops a previously registered macro.
func (a *Advert) RemoveMacroSubstitution(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.macros, key)
}

// MacroSubstitutions returns a copy of the macro table.
func (a *Advert) MacroSubstitutions() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.macros)
}

// ErrorDidOccur fires the VAST Error URLs with [ERRORCODE] set to code.
func (a *Advert) ErrorDidOccur(code int) {
	a.report(Beacon{Event: model.TrackError, URLs: a.ErrorURLs, ErrorCode: code})
}

// ViewableEventDidOccur fires the viewability URLs. Only the first verdict counts.
func (a *Advert) ViewableEventDidOccur(ev model.ViewableEvent) {
	name := viewableTrackingName(ev)
	if name == "" || !a.markFired("viewability") {
		return
	}
	a.report(Beacon{Event: name, URLs: a.ViewableURLs[ev]})
}

func viewableTrackingName(ev model.ViewableEvent) string {
	switch ev {
	case model.Viewable:
		return model.TrackViewable
	case model.NotViewable:
		return model.TrackNotViewable
	case model.ViewUndetermined:
		return model.TrackViewUndetermined
	}
	return ""
}

// ImpressionEventDidOccur fires the impression URLs once.
func (a *Advert) ImpressionEventDidOccur() {
	if !a.markFired(model.TrackImpression) {
		return
	}
	a.report(Beacon{Event: model.TrackImpression, URLs: a.ImpressionURLs})
}

// ReportPlayback advances the linear tracking state to elapsed seconds into
// the advert. Entry events (impression, creativeView, start) are always
// reported on the first call. Quartile and progress milestones crossed since
// the previous call are reported when reportCrossed is set and silently
// consumed otherwise, so a seek over them does not fire historical beacons.
func (a *Advert) ReportPlayback(elapsed float64, reportCrossed bool) {
	if !a.IsActive() {
		return
	}
	a.ImpressionEventDidOccur()
	if a.Linear == nil {
		return
	}
	for _, ev := range []string{model.TrackCreativeView, model.TrackStart} {
		if a.markFired(ev) {
			a.report(Beacon{Event: ev, URLs: a.Linear.TrackingURLs(ev), CreativeID: a.Linear.ID, AdOffset: elapsed})
		}
	}
	for _, q := range quartiles {
		if elapsed >= q.fraction*a.Duration {
			a.milestone(q.event, q.event, a.Linear.TrackingURLs(q.event), elapsed, reportCrossed)
		}
	}
	for i, t := range a.Linear.Tracking {
		if t.Event == model.TrackProgress && t.Offset >= 0 && elapsed >= t.Offset {
			a.milestone(progressKey(i), t.Event, []string{t.URL}, elapsed, reportCrossed)
		}
	}
}

// ReportComplete finishes the advert: outstanding quartiles are settled the
// same way as in ReportPlayback, complete fires if reportCrossed, and the
// advert becomes inactive.
func (a *Advert) ReportComplete(reportCrossed bool) {
	if !a.IsActive() {
		return
	}
	a.ReportPlayback(a.Duration, reportCrossed)
	if a.Linear != nil {
		a.milestone(model.TrackComplete, model.TrackComplete, a.Linear.TrackingURLs(model.TrackComplete), a.Duration, reportCrossed)
	}
	a.setInactive()
}

// ReportSkip fires skip and deactivates the advert.
func (a *Advert) ReportSkip() {
	if !a.IsActive() {
		return
	}
	if a.Linear != nil && a.markFired(model.TrackSkip) {
		a.report(Beacon{Event: model.TrackSkip, URLs: a.Linear.TrackingURLs(model.TrackSkip), CreativeID: a.Linear.ID})
	}
	a.setInactive()
}

func (a *Advert) milestone(key, event string, urls []string, elapsed float64, report bool) {
	if !a.markFired(key) || !report {
		return
	}
	a.report(Beacon{Event: event, URLs: urls, CreativeID: a.Linear.ID, AdOffset: elapsed})
}

func progressKey(i int) string {
	return "progress#" + strconv.Itoa(i)
}

func (a *Advert) markFired(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fired == nil {
		a.fired = make(map[string]bool)
	}
	if a.fired[key] {
		return false
	}
	a.fired[key] = true
	return true
}

// report stamps identity and macros onto b and hands it to the reporter.
// Inactive adverts never report.
func (a *Advert) report(b Beacon) {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	r := a.reporter
	b.Macros = maps.Clone(a.macros)
	a.mu.Unlock()

	if r == nil {
		r = nopReporter{}
	}
	b.AdvertID = a.ID
	b.AdServingID = a.AdServingID
	if b.Category == 0 {
		b.Category = model.CategoryFor(b.Event)
	}
	if a.brk != nil {
		b.BreakID = a.brk.ID
		b.Position = a.brk.Position
	}
	r.Report(b)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
