// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/rs/zerolog"
)

// Builder turns decoded documents into timeline breaks. Problems with a
// single ad or break are collected and the rest of the document is kept.
type Builder struct {
	resolver *Resolver
	fetcher  Fetcher
	logger   zerolog.Logger
}

// NewBuilder creates a builder. fetcher loads VMAP AdTagURI sources; the
// resolver follows wrappers.
func NewBuilder(resolver *Resolver, fetcher Fetcher) *Builder {
	if resolver == nil {
		resolver = NewResolver(fetcher, DefaultMaxWrapperDepth)
	}
	return &Builder{resolver: resolver, fetcher: fetcher, logger: log.WithComponent("vast")}
}

type placedBreak struct {
	index   int
	src     VMAPBreak
	content float64
	atEnd   bool
}

// BuildVMAP converts a VMAP into breaks positioned on the playhead timeline.
// VMAP offsets are content time; each break start is shifted by the linear
// breaks placed before it. contentDuration resolves percent and "end"
// offsets and may be zero when unknown.
func (b *Builder) BuildVMAP(ctx context.Context, doc *VMAP, contentDuration float64) ([]*timeline.AdBreak, []error) {
	return b.build(ctx, doc, contentDuration, true)
}

// BuildStitchedVMAP converts a VMAP whose offsets are already positions in
// the stitched stream, as delivered by live analytics polls.
func (b *Builder) BuildStitchedVMAP(ctx context.Context, doc *VMAP) ([]*timeline.AdBreak, []error) {
	return b.build(ctx, doc, 0, false)
}

func (b *Builder) build(ctx context.Context, doc *VMAP, contentDuration float64, shiftContent bool) ([]*timeline.AdBreak, []error) {
	var (
		placed []placedBreak
		errs   []error
	)
	for i, vb := range doc.AdBreaks {
		off, err := ParseOffset(vb.TimeOffset)
		if err != nil {
			errs = append(errs, fmt.Errorf("break %d: %w", i, err))
			continue
		}
		p := placedBreak{index: i, src: vb}
		switch {
		case off.Kind == OffsetEnd:
			p.atEnd = true
			p.content = math.Inf(1)
			if contentDuration > 0 {
				p.content = contentDuration
			}
		case off.Kind == OffsetPosition && off.Value == 1:
			p.content = 0
		default:
			sec, ok := off.Seconds(contentDuration)
			if !ok {
				errs = append(errs, fmt.Errorf("break %d: cannot place offset %q", i, vb.TimeOffset))
				continue
			}
			p.content = sec
		}
		placed = append(placed, p)
	}
	sort.SliceStable(placed, func(i, j int) bool { return placed[i].content < placed[j].content })

	var (
		out        []*timeline.AdBreak
		shift      float64
		lastOffset float64
	)
	for _, p := range placed {
		content := p.content
		if math.IsInf(content, 1) {
			content = lastOffset
		}
		typ := parseBreakType(p.src.BreakType)
		id := p.src.BreakID
		if id == "" {
			id = "break-" + strconv.Itoa(p.index+1)
		}
		pos := model.PositionMidroll
		switch {
		case p.atEnd || (contentDuration > 0 && content >= contentDuration):
			pos = model.PositionPostroll
		case content == 0:
			pos = model.PositionPreroll
		}

		vastDoc, err := b.sourceDocument(ctx, p.src.AdSource)
		if err != nil {
			errs = append(errs, fmt.Errorf("break %s: %w", id, err))
			continue
		}
		brk, berrs := b.BuildBreak(ctx, vastDoc, id, content+shift, pos, typ)
		errs = append(errs, berrs...)
		if brk == nil {
			b.logger.Debug().Str(log.FieldBreakID, id).Msg("break has no playable adverts, dropped")
			continue
		}
		brk.Tracking = convertTracking(p.src.TrackingEvents, brk.Duration)
		for _, e := range p.src.Extensions {
			brk.Extensions = append(brk.Extensions, e.Node)
		}
		if shiftContent && brk.IsLinear() {
			shift += brk.Duration
		}
		lastOffset = content
		out = append(out, brk)
	}
	return out, errs
}

func (b *Builder) sourceDocument(ctx context.Context, src *AdSource) (*Document, error) {
	switch {
	case src == nil:
		return nil, fmt.Errorf("no ad source")
	case src.VASTAdData != nil && src.VASTAdData.VAST != nil:
		return src.VASTAdData.VAST, nil
	case src.AdTagURI != nil:
		if b.fetcher == nil {
			return nil, fmt.Errorf("ad tag source without fetcher")
		}
		body, err := b.fetcher.Fetch(ctx, strings.TrimSpace(src.AdTagURI.URL))
		if err != nil {
			return nil, fmt.Errorf("fetch ad tag: %w", err)
		}
		return ParseVAST(body)
	}
	return nil, fmt.Errorf("unsupported ad source")
}

// BuildBreak resolves doc and lays its adverts end to end from start.
// It returns nil when no advert survives.
func (b *Builder) BuildBreak(ctx context.Context, doc *Document, id string, start float64, pos model.AdBreakPosition, typ model.AdBreakType) (*timeline.AdBreak, []error) {
	resolved, errs := b.resolver.Resolve(ctx, doc)
	sort.SliceStable(resolved, func(i, j int) bool {
		return podOrder(resolved[i].Ad.Sequence) < podOrder(resolved[j].Ad.Sequence)
	})

	var (
		adverts []*timeline.Advert
		cursor  = start
		dur     float64
	)
	for _, r := range resolved {
		a, aerrs := b.buildAdvert(r, cursor)
		errs = append(errs, aerrs...)
		if a == nil {
			continue
		}
		adverts = append(adverts, a)
		if typ == model.BreakLinear {
			cursor += a.Duration
			dur += a.Duration
		} else {
			dur = math.Max(dur, a.Duration)
		}
	}
	if len(adverts) == 0 {
		return nil, errs
	}
	return timeline.NewAdBreak(id, start, dur, pos, typ, adverts...), errs
}

// Ads without a sequence follow the pod.
func podOrder(seq int) int {
	if seq <= 0 {
		return math.MaxInt
	}
	return seq
}

func parseBreakType(s string) model.AdBreakType {
	first, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ",")
	switch strings.TrimSpace(first) {
	case "nonlinear":
		return model.BreakNonLinear
	case "display":
		return model.BreakDisplay
	}
	return model.BreakLinear
}

func (b *Builder) buildAdvert(r Resolved, start float64) (*timeline.Advert, []error) {
	in := r.Ad.InLine
	var errs []error
	a := &timeline.Advert{
		ID:          r.Ad.ID,
		AdType:      r.Ad.AdType,
		AdSystem:    strings.TrimSpace(in.AdSystem.Name),
		AdTitle:     strings.TrimSpace(in.AdTitle),
		AdServingID: strings.TrimSpace(in.AdServingID),
		Sequence:    r.Ad.Sequence,
		Start:       start,
		SkipOffset:  timeline.NotSkippable,
		Lineage:     r.Lineage,
		Filler:      strings.EqualFold(r.Ad.AdType, "filler"),
	}
	a.Properties = advertProperties(in)
	if in.Pricing != nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(in.Pricing.Value), 64); err == nil {
			a.Pricing = &timeline.Pricing{Model: in.Pricing.Model, Currency: in.Pricing.Currency, Value: v}
		}
	}

	a.ImpressionURLs = urls(in.Impressions)
	a.ErrorURLs = urls(in.Errors)
	viewables := []*ViewableImpression{in.ViewableImpression}
	for _, w := range r.Wrappers {
		a.ImpressionURLs = append(a.ImpressionURLs, urls(w.Impressions)...)
		a.ErrorURLs = append(a.ErrorURLs, urls(w.Errors)...)
		viewables = append(viewables, w.ViewableImpression)
	}
	a.ViewableURLs = viewableURLs(viewables)

	for _, e := range in.Extensions {
		a.Extensions = append(a.Extensions, e.Node)
		if strings.EqualFold(e.Type, "filler") {
			a.Filler = true
		}
	}
	verifications := in.Verifications
	for _, w := range r.Wrappers {
		verifications = append(verifications, w.Verifications...)
	}
	for _, v := range verifications {
		a.Verifications = append(a.Verifications, buildVerification(v))
	}

	for _, c := range in.Creatives {
		switch {
		case c.Linear != nil && a.Linear == nil:
			lc, icons, err := buildLinear(c)
			if err != nil {
				errs = append(errs, fmt.Errorf("ad %q: %w", r.Ad.ID, err))
				continue
			}
			a.Linear = lc
			a.Icons = icons
			a.Duration = lc.Duration
			a.SkipOffset = lc.SkipOffset
			a.MediaID = firstNonEmpty(c.AdID, c.ID, r.Ad.ID)
			if len(c.Linear.Interactive) > 0 {
				f := c.Linear.Interactive[0]
				a.Interactive = &timeline.InteractiveCreative{
					Source:         strings.TrimSpace(f.URL),
					APIFramework:   f.APIFramework,
					AdvertDuration: lc.Duration,
				}
				fillCreative(&a.Interactive.Creative, timeline.KindInteractive, c)
			}
		case c.NonLinearAds != nil:
			for _, nl := range c.NonLinearAds.NonLinears {
				n, nerrs := buildNonLinear(c, nl, c.NonLinearAds.TrackingEvents)
				errs = append(errs, nerrs...)
				a.NonLinears = append(a.NonLinears, n)
			}
		case c.CompanionAds != nil:
			for _, comp := range c.CompanionAds.Companions {
				cc, cerrs := buildCompanion(c, comp)
				errs = append(errs, cerrs...)
				a.Companions = append(a.Companions, cc)
			}
		}
	}

	b.mergeWrapperTracking(a, r.Wrappers)

	if a.Linear == nil {
		if len(a.NonLinears) == 0 {
			errs = append(errs, fmt.Errorf("ad %q: no linear or non-linear creative", r.Ad.ID))
			return nil, errs
		}
		for _, n := range a.NonLinears {
			if p, ok := n.Property("minSuggestedDuration"); ok {
				if d, err := ParseTimecode(p.Value); err == nil {
					a.Duration = math.Max(a.Duration, d)
				}
			}
		}
		a.MediaID = firstNonEmpty(a.NonLinears[0].AdID, a.NonLinears[0].ID, r.Ad.ID)
	}
	return a, errs
}

// mergeWrapperTracking appends the tracking a wrapper declares for its own
// linear and non-linear creatives to the inline creatives.
func (b *Builder) mergeWrapperTracking(a *timeline.Advert, wrappers []*Wrapper) {
	for _, w := range wrappers {
		for _, wc := range w.Creatives {
			if wc.Linear != nil && a.Linear != nil {
				a.Linear.Tracking = append(a.Linear.Tracking, convertTracking(wc.Linear.TrackingEvents, a.Linear.Duration)...)
				if vc := wc.Linear.VideoClicks; vc != nil {
					a.Linear.ClickTrackingURLs = append(a.Linear.ClickTrackingURLs, urls(vc.ClickTracking)...)
				}
			}
			if wc.NonLinearAds != nil {
				extra := convertTracking(wc.NonLinearAds.TrackingEvents, 0)
				for _, n := range a.NonLinears {
					n.Tracking = append(n.Tracking, extra...)
				}
			}
		}
	}
}

// fillCreative sets the fields every creative kind shares. It writes in place
// because timeline.Creative carries a mutex.
func fillCreative(out *timeline.Creative, kind timeline.CreativeKind, c Creative) {
	out.Kind, out.ID, out.AdID, out.Sequence = kind, c.ID, c.AdID, c.Sequence
	for _, u := range c.UniversalAdIDs {
		out.UniversalAdIDs = append(out.UniversalAdIDs, timeline.UniversalAdID{
			Registry: u.IDRegistry,
			Value:    firstNonEmpty(strings.TrimSpace(u.Value), u.IDValue),
		})
	}
	for _, e := range c.Extensions {
		out.Extensions = append(out.Extensions, e.Node)
	}
}

func buildLinear(c Creative) (*timeline.LinearCreative, []*timeline.IndustryIcon, error) {
	l := c.Linear
	dur, err := ParseTimecode(l.Duration)
	if err != nil {
		return nil, nil, fmt.Errorf("linear duration: %w", err)
	}
	lc := &timeline.LinearCreative{
		Duration:   dur,
		SkipOffset: timeline.NotSkippable,
	}
	fillCreative(&lc.Creative, timeline.KindLinear, c)
	if l.SkipOffset != "" {
		if off, err := ParseOffset(l.SkipOffset); err == nil {
			if sec, ok := off.Seconds(dur); ok {
				lc.SkipOffset = sec
			}
		}
	}
	lc.AdParameters = adParameters(l.AdParameters)
	lc.Tracking = convertTracking(l.TrackingEvents, dur)
	if vc := l.VideoClicks; vc != nil {
		if vc.ClickThrough != nil {
			lc.ClickThroughURL = vc.ClickThrough.URL()
		}
		lc.ClickTrackingURLs = urls(vc.ClickTracking)
		lc.CustomClickURLs = urls(vc.CustomClick)
	}
	for _, m := range l.MediaFiles {
		lc.MediaFiles = append(lc.MediaFiles, timeline.MediaFile{
			URL:      strings.TrimSpace(m.URL),
			Delivery: m.Delivery,
			MIMEType: m.Type,
			Width:    m.Width,
			Height:   m.Height,
			Bitrate:  m.Bitrate,
			Codec:    m.Codec,
		})
	}

	var icons []*timeline.IndustryIcon
	for _, ic := range l.Icons {
		icons = append(icons, buildIcon(c, ic, dur))
	}
	return lc, icons, nil
}

func buildIcon(c Creative, ic Icon, advertDuration float64) *timeline.IndustryIcon {
	icon := &timeline.IndustryIcon{
		Creative:  timeline.Creative{Kind: timeline.KindIcon, ID: c.ID, AdID: c.AdID},
		Program:   ic.Program,
		Width:     ic.Width,
		Height:    ic.Height,
		XPosition: ic.XPosition,
		YPosition: ic.YPosition,
		Duration:  advertDuration,
	}
	if off, err := ParseOffset(ic.Offset); err == nil {
		icon.Offset, _ = off.Seconds(advertDuration)
	}
	if d, err := ParseTimecode(ic.Duration); err == nil {
		icon.Duration = d
	}
	icon.Resources, _ = buildResources(ic.Resources)
	if ic.ClickThrough != nil {
		icon.ClickThroughURL = ic.ClickThrough.URL()
	}
	icon.ClickTrackingURLs = urls(ic.ClickTracking)
	for _, u := range urls(ic.ViewTracking) {
		icon.Tracking = append(icon.Tracking, timeline.TrackingEvent{Event: model.TrackIconViewTracking, URL: u})
	}
	for _, f := range ic.FallbackImages {
		img := timeline.FallbackImage{Width: f.Width, Height: f.Height, AltText: strings.TrimSpace(f.AltText)}
		if len(f.Static) > 0 {
			img.Resource, _ = timeline.NewResource(model.ResourceStatic, f.Static[0].CreativeType, f.Static[0].Value, false)
		}
		icon.ClickFallbackImages = append(icon.ClickFallbackImages, img)
	}
	return icon
}

func buildNonLinear(c Creative, nl NonLinear, tracking []Tracking) (*timeline.NonLinearCreative, []error) {
	n := &timeline.NonLinearCreative{}
	fillCreative(&n.Creative, timeline.KindNonLinear, c)
	if nl.ID != "" {
		n.ID = nl.ID
	}
	n.AdParameters = adParameters(nl.AdParameters)
	n.Tracking = convertTracking(tracking, 0)
	if nl.ClickThrough != nil {
		n.ClickThroughURL = nl.ClickThrough.URL()
	}
	n.ClickTrackingURLs = urls(nl.ClickTracking)
	n.Properties = properties(map[string]string{
		"width":                nl.Width,
		"height":               nl.Height,
		"expandedWidth":        nl.ExpandedWidth,
		"expandedHeight":       nl.ExpandedHeight,
		"scalable":             nl.Scalable,
		"maintainAspectRatio":  nl.MaintainAspectRatio,
		"minSuggestedDuration": nl.MinSuggestedDuration,
		"apiFramework":         nl.APIFramework,
	})
	var errs []error
	n.Resources, errs = buildResources(nl.Resources)
	return n, errs
}

func buildCompanion(c Creative, comp Companion) (*timeline.CompanionCreative, []error) {
	cc := &timeline.CompanionCreative{}
	fillCreative(&cc.Creative, timeline.KindCompanion, c)
	if comp.ID != "" {
		cc.ID = comp.ID
	}
	cc.AltText = strings.TrimSpace(comp.AltText)
	cc.AdParameters = adParameters(comp.AdParameters)
	cc.Tracking = convertTracking(comp.TrackingEvents, 0)
	if comp.ClickThrough != nil {
		cc.ClickThroughURL = comp.ClickThrough.URL()
	}
	cc.ClickTrackingURLs = urls(comp.ClickTracking)
	cc.Properties = properties(map[string]string{
		"width":          comp.Width,
		"height":         comp.Height,
		"assetWidth":     comp.AssetWidth,
		"assetHeight":    comp.AssetHeight,
		"expandedWidth":  comp.ExpandedWidth,
		"expandedHeight": comp.ExpandedHeight,
		"apiFramework":   comp.APIFramework,
		"adSlotId":       comp.AdSlotID,
		"renderingMode":  comp.RenderingMode,
	})
	var errs []error
	cc.Resources, errs = buildResources(comp.Resources)
	return cc, errs
}

func buildResources(r Resources) (map[model.ResourceType]*timeline.Resource, []error) {
	out := make(map[model.ResourceType]*timeline.Resource)
	var errs []error
	add := func(t model.ResourceType, creativeType, data string, encoded bool) {
		if _, dup := out[t]; dup {
			return
		}
		res, err := timeline.NewResource(t, creativeType, data, encoded)
		if err != nil {
			errs = append(errs, err)
			return
		}
		out[t] = res
	}
	for _, s := range r.Static {
		add(model.ResourceStatic, s.CreativeType, s.Value, false)
	}
	for _, h := range r.HTML {
		add(model.ResourceHTML, "text/html", h.Value, h.XMLEncoded)
	}
	for _, f := range r.IFrame {
		add(model.ResourceIFrame, "", f.Value, false)
	}
	return out, errs
}

func buildVerification(v Verification) *timeline.AdVerification {
	out := &timeline.AdVerification{
		Vendor:     v.Vendor,
		Parameters: strings.TrimSpace(v.Parameters),
		Tracking:   convertTracking(v.TrackingEvents, 0),
	}
	for _, s := range v.JavaScript {
		out.Resources = append(out.Resources, timeline.VerificationResource{
			Kind: "JavaScriptResource", APIFramework: s.APIFramework, Browser: s.BrowserOptional, URL: strings.TrimSpace(s.URL),
		})
	}
	for _, s := range v.Executable {
		out.Resources = append(out.Resources, timeline.VerificationResource{
			Kind: "ExecutableResource", APIFramework: s.APIFramework, URL: strings.TrimSpace(s.URL),
		})
	}
	return out
}

// convertTracking keeps document order. Progress offsets resolve against
// duration; an unresolvable one is stored as -1 and never fires.
func convertTracking(ts []Tracking, duration float64) []timeline.TrackingEvent {
	out := make([]timeline.TrackingEvent, 0, len(ts))
	for _, t := range ts {
		u := strings.TrimSpace(t.URL)
		if u == "" || t.Event == "" {
			continue
		}
		ev := timeline.TrackingEvent{Event: t.Event, URL: u}
		if t.Event == model.TrackProgress {
			ev.Offset = -1
			if off, err := ParseOffset(t.Offset); err == nil {
				if sec, ok := off.Seconds(duration); ok {
					ev.Offset = sec
				}
			}
		}
		out = append(out, ev)
	}
	return out
}

func adParameters(p *AdParameters) *timeline.VASTProperty {
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return nil
	}
	return &timeline.VASTProperty{
		Name:       "AdParameters",
		Value:      strings.TrimSpace(p.Value),
		Attributes: map[string]string{"xmlEncoded": strconv.FormatBool(p.XMLEncoded)},
	}
}

func advertProperties(in *InLine) []timeline.VASTProperty {
	var out []timeline.VASTProperty
	add := func(name, value string, attrs map[string]string) {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, timeline.VASTProperty{Name: name, Value: value, Attributes: attrs})
		}
	}
	var sysAttrs map[string]string
	if in.AdSystem.Version != "" {
		sysAttrs = map[string]string{"version": in.AdSystem.Version}
	}
	add("AdSystem", in.AdSystem.Name, sysAttrs)
	add("AdTitle", in.AdTitle, nil)
	add("AdServingId", in.AdServingID, nil)
	add("Advertiser", in.Advertiser, nil)
	add("Description", in.Description, nil)
	for _, c := range in.Category {
		add("Category", c.Value, map[string]string{"authority": c.Authority})
	}
	return out
}

// properties drops empty values and sorts by name for stable output.
func properties(kv map[string]string) []timeline.VASTProperty {
	var out []timeline.VASTProperty
	for k, v := range kv {
		if v != "" {
			out = append(out, timeline.VASTProperty{Name: k, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func viewableURLs(vs []*ViewableImpression) map[model.ViewableEvent][]string {
	out := make(map[model.ViewableEvent][]string)
	for _, v := range vs {
		if v == nil {
			continue
		}
		out[model.Viewable] = append(out[model.Viewable], urls(v.Viewable)...)
		out[model.NotViewable] = append(out[model.NotViewable], urls(v.NotViewable)...)
		out[model.ViewUndetermined] = append(out[model.ViewUndetermined], urls(v.ViewUndetermined)...)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
