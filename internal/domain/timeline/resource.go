// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

var ErrResourceData = errors.New("invalid resource data")

// Resource is the renderable payload of a non-linear, companion or icon creative.
// Exactly one of string data and byte data is populated: static and iframe
// resources carry a URI, HTML carries markup, and encoded HTML or a prefetched
// static image carries bytes.
type Resource struct {
	Type         model.ResourceType
	CreativeType string
	Encoded      bool

	uri   string
	str   string
	bytes []byte
}

// NewResource builds a resource from the raw VAST element text.
func NewResource(t model.ResourceType, creativeType, data string, encoded bool) (*Resource, error) {
	data = strings.TrimSpace(data)
	r := &Resource{Type: t, CreativeType: creativeType, Encoded: encoded}
	switch {
	case data == "":
		return nil, fmt.Errorf("%w: empty %s resource", ErrResourceData, t)
	case t == model.ResourceHTML && encoded:
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResourceData, err)
		}
		r.bytes = b
	case t == model.ResourceStatic || t == model.ResourceIFrame:
		r.uri = data
		r.str = data
	default:
		r.str = data
	}
	return r, nil
}

// StringData returns the textual payload, if this resource carries one.
func (r *Resource) StringData() (string, bool) {
	if r.bytes != nil {
		return "", false
	}
	return r.str, true
}

// ByteData returns the binary payload, if this resource carries one.
func (r *Resource) ByteData() ([]byte, bool) {
	if r.bytes == nil {
		return nil, false
	}
	return r.bytes, true
}

// URI is the source location of a static or iframe resource.
func (r *Resource) URI() string { return r.uri }

// NeedsPrefetch reports whether the resource is a static URI not yet downloaded.
func (r *Resource) NeedsPrefetch() bool {
	return r.Type == model.ResourceStatic && r.bytes == nil && r.uri != ""
}

// SetPrefetched moves downloaded bytes into the resource, dropping the string form.
func (r *Resource) SetPrefetched(b []byte) {
	if b == nil {
		b = []byte{}
	}
	r.bytes = b
	r.str = ""
}
