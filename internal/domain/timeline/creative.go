// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"sync"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

// CreativeKind distinguishes the creative specialisations.
type CreativeKind string

const (
	KindLinear      CreativeKind = "linear"
	KindNonLinear   CreativeKind = "nonlinear"
	KindCompanion   CreativeKind = "companion"
	KindInteractive CreativeKind = "interactive"
	KindIcon        CreativeKind = "icon"
)

// TrackingEvent is a VAST Tracking element. Offset is the progress offset in
// seconds and is negative when the event has none.
type TrackingEvent struct {
	Event  string  `json:"event"`
	URL    string  `json:"url"`
	Offset float64 `json:"offset,omitempty"`
}

// UniversalAdID identifies a creative across ad systems.
type UniversalAdID struct {
	Registry string `json:"registry"`
	Value    string `json:"value"`
}

// Creative holds what every creative flavour shares, including the event
// handling contract. Tracking only fires while the creative is visible and its
// advert is active.
type Creative struct {
	Kind              CreativeKind
	ID                string
	AdID              string
	AdvertID          string
	Sequence          int
	AdParameters      *VASTProperty
	Extensions        []*XMLNode
	ClickThroughURL   string
	ClickTrackingURLs []string
	UniversalAdIDs    []UniversalAdID
	Tracking          []TrackingEvent

	mu      sync.Mutex
	visible bool
	advert  *Advert
}

func (c *Creative) attach(a *Advert) {
	c.advert = a
	c.AdvertID = a.ID
	// Linear creatives are on screen whenever their advert plays.
	if c.Kind == KindLinear {
		c.visible = true
	}
}

// Advert returns the owning advert.
func (c *Creative) Advert() *Advert { return c.advert }

// IsVisible reports the visibility flag set by the host.
func (c *Creative) IsVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// SetVisible records whether the host is presenting the creative. Becoming
// visible fires creativeView for non-linear, companion and interactive
// creatives, and iconViewTracking for icons.
func (c *Creative) SetVisible(visible bool) {
	c.mu.Lock()
	was := c.visible
	c.visible = visible
	c.mu.Unlock()
	if !visible || was {
		return
	}
	switch c.Kind {
	case KindLinear:
	case KindIcon:
		c.fire(model.TrackIconViewTracking, c.TrackingURLs(model.TrackIconViewTracking))
	default:
		c.fire(model.TrackCreativeView, c.TrackingURLs(model.TrackCreativeView))
	}
}

// TrackingURLs returns the URLs registered for event.
func (c *Creative) TrackingURLs(event string) []string {
	var urls []string
	for _, t := range c.Tracking {
		if t.Event == event {
			urls = append(urls, t.URL)
		}
	}
	return urls
}

// TrackingEventDidOccur reports a tracking event raised by the host, such as
// mute, fullscreen or expand.
func (c *Creative) TrackingEventDidOccur(event string) {
	c.fire(event, c.TrackingURLs(event))
}

// ClickThroughDidOccur reports that the user followed the click-through URL.
func (c *Creative) ClickThroughDidOccur() {
	c.fire(c.clickEvent(), c.ClickTrackingURLs)
}

func (c *Creative) clickEvent() string {
	switch c.Kind {
	case KindNonLinear:
		return model.TrackNonLinearClickTracking
	case KindIcon:
		return model.TrackIconClickTracking
	}
	return model.TrackClickTracking
}

func (c *Creative) fire(event string, urls []string) {
	if !c.IsVisible() || c.advert == nil {
		return
	}
	c.advert.report(Beacon{Event: event, URLs: urls, CreativeID: c.ID})
}

// LinearCreative is the video creative of an advert.
type LinearCreative struct {
	Creative
	Duration        float64
	SkipOffset      float64
	CustomClickURLs []string
	MediaFiles      []MediaFile
}

// MediaFile is a rendition of the linear creative. The stream is stitched
// server side so these are informational.
type MediaFile struct {
	URL      string `json:"url"`
	Delivery string `json:"delivery,omitempty"`
	MIMEType string `json:"type,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Bitrate  int    `json:"bitrate,omitempty"`
	Codec    string `json:"codec,omitempty"`
}

// CustomClickDidOccur fires the CustomClick tracking URLs.
func (l *LinearCreative) CustomClickDidOccur() {
	l.fire(model.TrackClickTracking, l.CustomClickURLs)
}

// NonLinearCreative is an overlay shown over the content.
type NonLinearCreative struct {
	Creative
	Properties []VASTProperty
	Resources  map[model.ResourceType]*Resource
}

// Property returns the named VAST property.
func (n *NonLinearCreative) Property(name string) (VASTProperty, bool) {
	return findProperty(n.Properties, name)
}

// ResourceOfType returns the resource of type t, if present.
func (n *NonLinearCreative) ResourceOfType(t model.ResourceType) (*Resource, bool) {
	r, ok := n.Resources[t]
	return r, ok
}

// CompanionCreative is a display unit shown alongside the player.
type CompanionCreative struct {
	Creative
	AltText    string
	Properties []VASTProperty
	Resources  map[model.ResourceType]*Resource
}

// Property returns the named VAST property.
func (c *CompanionCreative) Property(name string) (VASTProperty, bool) {
	return findProperty(c.Properties, name)
}

// ResourceOfType returns the resource of type t, if present.
func (c *CompanionCreative) ResourceOfType(t model.ResourceType) (*Resource, bool) {
	r, ok := c.Resources[t]
	return r, ok
}

// InteractiveCreative is a SIMID or VPAID unit. Rendering is the host's job.
type InteractiveCreative struct {
	Creative
	Source         string
	APIFramework   string
	AdvertDuration float64
	NonLinears     []*NonLinearCreative
}

// IndustryIcon is an icon overlay such as AdChoices.
type IndustryIcon struct {
	Creative
	Program             string
	Width, Height       int
	XPosition           string
	YPosition           string
	Offset              float64
	Duration            float64
	Resources           map[model.ResourceType]*Resource
	ClickFallbackImages []FallbackImage
}

// FallbackImage is shown when the icon click-through cannot be opened.
type FallbackImage struct {
	Width    int
	Height   int
	AltText  string
	Resource *Resource
}

// ResourceOfType returns the resource of type t, if present.
func (i *IndustryIcon) ResourceOfType(t model.ResourceType) (*Resource, bool) {
	r, ok := i.Resources[t]
	return r, ok
}
