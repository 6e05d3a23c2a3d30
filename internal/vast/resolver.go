// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vast

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/log"
)

// DefaultMaxWrapperDepth is the VAST recommended limit of chained wrappers.
const DefaultMaxWrapperDepth = 5

// VAST error codes reported to Error URLs when a wrapper chain fails.
const (
	ErrorCodeWrapperGeneral = 300
	ErrorCodeWrapperTimeout = 301
	ErrorCodeWrapperLimit   = 302
	ErrorCodeWrapperNoAds   = 303
)

var (
	ErrWrapperDepth = errors.New("wrapper depth exceeded")
	ErrWrapperLoop  = errors.New("wrapper chain revisits a tag")
	ErrNoAds        = errors.New("wrapper resolved to no ads")
)

// Fetcher downloads a VAST tag.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// WrapperError describes a wrapper chain that could not be resolved. ErrorURLs
// collects the Error elements of every wrapper on the chain.
type WrapperError struct {
	AdID      string
	Code      int
	ErrorURLs []string
	Err       error
}

func (e *WrapperError) Error() string {
	return fmt.Sprintf("resolve wrapper %q (vast error %d): %v", e.AdID, e.Code, e.Err)
}

func (e *WrapperError) Unwrap() error { return e.Err }

// Resolved is an inline ad with the wrappers that led to it.
type Resolved struct {
	Ad       Ad
	Wrappers []*Wrapper // outermost first
	Lineage  []timeline.WrapperEntry
}

// Resolver follows Wrapper VASTAdTagURI chains.
type Resolver struct {
	fetcher  Fetcher
	maxDepth int
}

// NewResolver creates a resolver. A nil fetcher makes every wrapper fail.
func NewResolver(f Fetcher, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxWrapperDepth
	}
	return &Resolver{fetcher: f, maxDepth: maxDepth}
}

// Resolve returns every inline ad reachable from doc in document order.
// Failed wrapper chains are dropped and reported as *WrapperError values.
func (r *Resolver) Resolve(ctx context.Context, doc *Document) ([]Resolved, []error) {
	var (
		out  []Resolved
		errs []error
	)
	for _, ad := range doc.Ads {
		got, err := r.resolveAd(ctx, ad, nil, nil, map[string]bool{})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, got...)
	}
	return out, errs
}

func (r *Resolver) resolveAd(ctx context.Context, ad Ad, chain []*Wrapper, lineage []timeline.WrapperEntry, visited map[string]bool) ([]Resolved, error) {
	if ad.InLine != nil {
		return []Resolved{{Ad: ad, Wrappers: chain, Lineage: lineage}}, nil
	}
	if ad.Wrapper == nil {
		return nil, nil
	}

	w := ad.Wrapper
	chain = append(append([]*Wrapper(nil), chain...), w)
	lineage = append(append([]timeline.WrapperEntry(nil), lineage...), timeline.WrapperEntry{
		AdID:       ad.ID,
		CreativeID: firstCreativeID(w.Creatives),
		AdSystem:   w.AdSystem.Name,
	})
	fail := func(code int, err error) error {
		return &WrapperError{AdID: ad.ID, Code: code, ErrorURLs: chainErrorURLs(chain), Err: err}
	}

	if len(chain) > r.maxDepth {
		return nil, fail(ErrorCodeWrapperLimit, ErrWrapperDepth)
	}
	tag := Text{Value: w.VASTAdTagURI}.URL()
	if tag == "" {
		return nil, fail(ErrorCodeWrapperGeneral, errors.New("wrapper has no VASTAdTagURI"))
	}
	if visited[tag] {
		return nil, fail(ErrorCodeWrapperGeneral, ErrWrapperLoop)
	}
	visited = maps.Clone(visited)
	visited[tag] = true
	if r.fetcher == nil {
		return nil, fail(ErrorCodeWrapperGeneral, errors.New("no fetcher configured"))
	}

	body, err := r.fetcher.Fetch(ctx, tag)
	if err != nil {
		code := ErrorCodeWrapperGeneral
		if errors.Is(err, context.DeadlineExceeded) {
			code = ErrorCodeWrapperTimeout
		}
		return nil, fail(code, err)
	}
	inner, err := ParseVAST(body)
	if err != nil {
		return nil, fail(ErrorCodeWrapperGeneral, err)
	}

	logger := log.WithComponent("vast")
	logger.Debug().
		Str(log.FieldAdvertID, ad.ID).
		Str(log.FieldURL, tag).
		Int("depth", len(chain)).
		Int("ads", len(inner.Ads)).
		Msg("wrapper resolved")

	var out []Resolved
	for _, next := range inner.Ads {
		got, err := r.resolveAd(ctx, next, chain, lineage, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
		if w.FollowAdditional != nil && !*w.FollowAdditional {
			break
		}
	}
	if len(out) == 0 {
		return nil, fail(ErrorCodeWrapperNoAds, ErrNoAds)
	}
	return out, nil
}

func firstCreativeID(cs []Creative) string {
	for _, c := range cs {
		if c.ID != "" {
			return c.ID
		}
	}
	return ""
}

func chainErrorURLs(chain []*Wrapper) []string {
	var out []string
	for _, w := range chain {
		out = append(out, urls(w.Errors)...)
	}
	return out
}

func urls(ts []Text) []string {
	var out []string
	for _, t := range ts {
		if u := t.URL(); u != "" {
			out = append(out, u)
		}
	}
	return out
}
