// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package vast decodes VAST 2-4 and VMAP 1.0 documents and turns them into
// timeline ad breaks.
package vast

import (
	"encoding/xml"
	"strings"

	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/beevik/etree"
)

// Document is a VAST response.
type Document struct {
	XMLName xml.Name `xml:"VAST"`
	Version string   `xml:"version,attr"`
	Ads     []Ad     `xml:"Ad"`
	Errors  []Text   `xml:"Error"`
}

// Ad is either an InLine or a Wrapper.
type Ad struct {
	ID            string   `xml:"id,attr"`
	Sequence      int      `xml:"sequence,attr,omitempty"`
	ConditionalAd bool     `xml:"conditionalAd,attr,omitempty"`
	AdType        string   `xml:"adType,attr,omitempty"`
	InLine        *InLine  `xml:"InLine"`
	Wrapper       *Wrapper `xml:"Wrapper"`
}

// InLine carries everything needed to play the ad.
type InLine struct {
	AdSystem           AdSystem            `xml:"AdSystem"`
	AdTitle            string              `xml:"AdTitle"`
	AdServingID        string              `xml:"AdServingId"`
	Advertiser         string              `xml:"Advertiser"`
	Description        string              `xml:"Description"`
	Category           []Category          `xml:"Category"`
	Pricing            *Pricing            `xml:"Pricing"`
	Errors             []Text              `xml:"Error"`
	Impressions        []Text              `xml:"Impression"`
	ViewableImpression *ViewableImpression `xml:"ViewableImpression"`
	Creatives          []Creative          `xml:"Creatives>Creative"`
	Verifications      []Verification      `xml:"AdVerifications>Verification"`
	Extensions         []Extension         `xml:"Extensions>Extension"`
}

// Wrapper points at another VAST document and contributes tracking.
type Wrapper struct {
	AdSystem           AdSystem            `xml:"AdSystem"`
	VASTAdTagURI       string              `xml:"VASTAdTagURI"`
	FollowAdditional   *bool               `xml:"followAdditionalWrappers,attr"`
	FallbackOnNoAd     bool                `xml:"fallbackOnNoAd,attr"`
	Errors             []Text              `xml:"Error"`
	Impressions        []Text              `xml:"Impression"`
	ViewableImpression *ViewableImpression `xml:"ViewableImpression"`
	Creatives          []Creative          `xml:"Creatives>Creative"`
	Verifications      []Verification      `xml:"AdVerifications>Verification"`
	Extensions         []Extension         `xml:"Extensions>Extension"`
}

type AdSystem struct {
	Version string `xml:"version,attr"`
	Name    string `xml:",chardata"`
}

type Category struct {
	Authority string `xml:"authority,attr"`
	Value     string `xml:",chardata"`
}

type Pricing struct {
	Model    string `xml:"model,attr"`
	Currency string `xml:"currency,attr"`
	Value    string `xml:",chardata"`
}

// Text is a URL or text node with an optional id.
type Text struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

// URL returns the trimmed character data.
func (t Text) URL() string { return strings.TrimSpace(t.Value) }

type ViewableImpression struct {
	ID               string `xml:"id,attr"`
	Viewable         []Text `xml:"Viewable"`
	NotViewable      []Text `xml:"NotViewable"`
	ViewUndetermined []Text `xml:"ViewUndetermined"`
}

type Creative struct {
	ID             string          `xml:"id,attr"`
	AdID           string          `xml:"adId,attr"`
	Sequence       int             `xml:"sequence,attr"`
	APIFramework   string          `xml:"apiFramework,attr"`
	UniversalAdIDs []UniversalAdID `xml:"UniversalAdId"`
	Linear         *Linear         `xml:"Linear"`
	NonLinearAds   *NonLinearAds   `xml:"NonLinearAds"`
	CompanionAds   *CompanionAds   `xml:"CompanionAds"`
	Extensions     []Extension     `xml:"CreativeExtensions>CreativeExtension"`
}

type UniversalAdID struct {
	IDRegistry string `xml:"idRegistry,attr"`
	IDValue    string `xml:"idValue,attr"`
	Value      string `xml:",chardata"`
}

type Linear struct {
	SkipOffset     string        `xml:"skipoffset,attr"`
	Duration       string        `xml:"Duration"`
	AdParameters   *AdParameters `xml:"AdParameters"`
	MediaFiles     []MediaFile   `xml:"MediaFiles>MediaFile"`
	Interactive    []Interactive `xml:"MediaFiles>InteractiveCreativeFile"`
	VideoClicks    *VideoClicks  `xml:"VideoClicks"`
	TrackingEvents []Tracking    `xml:"TrackingEvents>Tracking"`
	Icons          []Icon        `xml:"Icons>Icon"`
}

type AdParameters struct {
	XMLEncoded bool   `xml:"xmlEncoded,attr"`
	Value      string `xml:",chardata"`
}

type MediaFile struct {
	ID           string `xml:"id,attr"`
	Delivery     string `xml:"delivery,attr"`
	Type         string `xml:"type,attr"`
	Width        int    `xml:"width,attr"`
	Height       int    `xml:"height,attr"`
	Bitrate      int    `xml:"bitrate,attr"`
	Codec        string `xml:"codec,attr"`
	APIFramework string `xml:"apiFramework,attr"`
	URL          string `xml:",chardata"`
}

// Interactive is a VAST 4 InteractiveCreativeFile (SIMID and friends).
type Interactive struct {
	Type             string `xml:"type,attr"`
	APIFramework     string `xml:"apiFramework,attr"`
	VariableDuration bool   `xml:"variableDuration,attr"`
	URL              string `xml:",chardata"`
}

type VideoClicks struct {
	ClickThrough  *Text  `xml:"ClickThrough"`
	ClickTracking []Text `xml:"ClickTracking"`
	CustomClick   []Text `xml:"CustomClick"`
}

type Tracking struct {
	Event  string `xml:"event,attr"`
	Offset string `xml:"offset,attr"`
	URL    string `xml:",chardata"`
}

type NonLinearAds struct {
	NonLinears     []NonLinear `xml:"NonLinear"`
	TrackingEvents []Tracking  `xml:"TrackingEvents>Tracking"`
}

// Resources groups the three VAST resource kinds.
type Resources struct {
	Static []StaticResource `xml:"StaticResource"`
	HTML   []HTMLResource   `xml:"HTMLResource"`
	IFrame []Text           `xml:"IFrameResource"`
}

type StaticResource struct {
	CreativeType string `xml:"creativeType,attr"`
	Value        string `xml:",chardata"`
}

type HTMLResource struct {
	XMLEncoded bool   `xml:"xmlEncoded,attr"`
	Value      string `xml:",chardata"`
}

type NonLinear struct {
	ID                   string `xml:"id,attr"`
	Width                string `xml:"width,attr"`
	Height               string `xml:"height,attr"`
	ExpandedWidth        string `xml:"expandedWidth,attr"`
	ExpandedHeight       string `xml:"expandedHeight,attr"`
	Scalable             string `xml:"scalable,attr"`
	MaintainAspectRatio  string `xml:"maintainAspectRatio,attr"`
	MinSuggestedDuration string `xml:"minSuggestedDuration,attr"`
	APIFramework         string `xml:"apiFramework,attr"`
	Resources
	AdParameters  *AdParameters `xml:"AdParameters"`
	ClickThrough  *Text         `xml:"NonLinearClickThrough"`
	ClickTracking []Text        `xml:"NonLinearClickTracking"`
}

type CompanionAds struct {
	Required   string      `xml:"required,attr"`
	Companions []Companion `xml:"Companion"`
}

type Companion struct {
	ID             string `xml:"id,attr"`
	Width          string `xml:"width,attr"`
	Height         string `xml:"height,attr"`
	AssetWidth     string `xml:"assetWidth,attr"`
	AssetHeight    string `xml:"assetHeight,attr"`
	ExpandedWidth  string `xml:"expandedWidth,attr"`
	ExpandedHeight string `xml:"expandedHeight,attr"`
	APIFramework   string `xml:"apiFramework,attr"`
	AdSlotID       string `xml:"adSlotId,attr"`
	RenderingMode  string `xml:"renderingMode,attr"`
	Resources
	AltText        string        `xml:"AltText"`
	AdParameters   *AdParameters `xml:"AdParameters"`
	ClickThrough   *Text         `xml:"CompanionClickThrough"`
	ClickTracking  []Text        `xml:"CompanionClickTracking"`
	TrackingEvents []Tracking    `xml:"TrackingEvents>Tracking"`
}

type Icon struct {
	Program      string `xml:"program,attr"`
	Width        int    `xml:"width,attr"`
	Height       int    `xml:"height,attr"`
	XPosition    string `xml:"xPosition,attr"`
	YPosition    string `xml:"yPosition,attr"`
	Duration     string `xml:"duration,attr"`
	Offset       string `xml:"offset,attr"`
	APIFramework string `xml:"apiFramework,attr"`
	Resources
	ClickThrough   *Text           `xml:"IconClicks>IconClickThrough"`
	ClickTracking  []Text          `xml:"IconClicks>IconClickTracking"`
	FallbackImages []FallbackImage `xml:"IconClicks>IconClickFallbackImages>IconClickFallbackImage"`
	ViewTracking   []Text          `xml:"IconViewTracking"`
}

type FallbackImage struct {
	Width   int              `xml:"width,attr"`
	Height  int              `xml:"height,attr"`
	AltText string           `xml:"AltText"`
	Static  []StaticResource `xml:"StaticResource"`
}

type Verification struct {
	Vendor         string               `xml:"vendor,attr"`
	JavaScript     []VerificationScript `xml:"JavaScriptResource"`
	Executable     []VerificationScript `xml:"ExecutableResource"`
	TrackingEvents []Tracking           `xml:"TrackingEvents>Tracking"`
	Parameters     string               `xml:"VerificationParameters"`
}

type VerificationScript struct {
	APIFramework    string `xml:"apiFramework,attr"`
	BrowserOptional bool   `xml:"browserOptional,attr"`
	Type            string `xml:"type,attr"`
	URL             string `xml:",chardata"`
}

// Extension keeps a vendor extension as a generic XML tree.
type Extension struct {
	Type string
	Node *timeline.XMLNode
}

// UnmarshalXML rebuilds the element with etree so callers can walk it without a schema.
func (e *Extension) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Inner string `xml:",innerxml"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	el := etree.NewElement(start.Name.Local)
	for _, a := range start.Attr {
		if a.Name.Local == "type" && a.Name.Space == "" {
			e.Type = a.Value
		}
		el.CreateAttr(a.Name.Local, a.Value)
	}

	inner := strings.TrimSpace(raw.Inner)
	if inner != "" {
		doc := etree.NewDocument()
		if err := doc.ReadFromString("<x>" + inner + "</x>"); err == nil && doc.Root() != nil {
			children := append([]etree.Token(nil), doc.Root().Child...)
			for _, tok := range children {
				el.AddChild(tok)
			}
		} else {
			el.SetText(inner)
		}
	}
	e.Node = timeline.NewXMLNode(el)
	return nil
}
