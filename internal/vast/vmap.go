// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vast

import "encoding/xml"

// VMAP is an IAB VMAP 1.0 playlist. Element names match in any namespace so
// both prefixed (vmap:AdBreak) and bare documents decode.
type VMAP struct {
	XMLName    xml.Name    `xml:"VMAP"`
	Version    string      `xml:"version,attr"`
	AdBreaks   []VMAPBreak `xml:"AdBreak"`
	Extensions []Extension `xml:"Extensions>Extension"`
}

type VMAPBreak struct {
	TimeOffset     string      `xml:"timeOffset,attr"`
	BreakType      string      `xml:"breakType,attr"`
	BreakID        string      `xml:"breakId,attr"`
	RepeatAfter    string      `xml:"repeatAfter,attr"`
	AdSource       *AdSource   `xml:"AdSource"`
	TrackingEvents []Tracking  `xml:"TrackingEvents>Tracking"`
	Extensions     []Extension `xml:"Extensions>Extension"`
}

type AdSource struct {
	ID               string      `xml:"id,attr"`
	AllowMultipleAds string      `xml:"allowMultipleAds,attr"`
	FollowRedirects  string      `xml:"followRedirects,attr"`
	VASTAdData       *VASTAdData `xml:"VASTAdData"`
	AdTagURI         *AdTagURI   `xml:"AdTagURI"`
}

type VASTAdData struct {
	VAST *Document `xml:"VAST"`
}

type AdTagURI struct {
	TemplateType string `xml:"templateType,attr"`
	URL          string `xml:",chardata"`
}
