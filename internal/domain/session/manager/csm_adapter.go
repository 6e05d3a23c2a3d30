// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/adsession/internal/csm"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/session/ports"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/vast"
)

// CSMAdapter implements ports.CSM on top of the HTTP client and the VAST builder.
type CSMAdapter struct {
	client   *csm.Client
	maxDepth int
}

var _ ports.CSM = (*CSMAdapter)(nil)

func NewCSMAdapter(client *csm.Client, maxWrapperDepth int) *CSMAdapter {
	return &CSMAdapter{client: client, maxDepth: maxWrapperDepth}
}

// recordingFetcher keeps every tag body it downloads so the session can
// publish them as VASTReceived events.
type recordingFetcher struct {
	inner vast.Fetcher
	mu    sync.Mutex
	raw   []string
}

func (f *recordingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	b, err := f.inner.Fetch(ctx, url)
	if err == nil {
		f.mu.Lock()
		f.raw = append(f.raw, string(b))
		f.mu.Unlock()
	}
	return b, err
}

func (f *recordingFetcher) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.raw...)
}

func (a *CSMAdapter) builder() (*vast.Builder, *recordingFetcher) {
	rf := &recordingFetcher{inner: a.client}
	return vast.NewBuilder(vast.NewResolver(rf, a.maxDepth), rf), rf
}

func (a *CSMAdapter) Resolve(ctx context.Context, sourceURL string, mode model.PlaybackMode) (*ports.Resolution, error) {
	res, err := a.client.Init(ctx, sourceURL, mode)
	out := &ports.Resolution{
		Code:         res.Code,
		SessionID:    res.SessionID,
		PlaybackURL:  res.PlaybackURL,
		AnalyticsURL: res.AnalyticsURL,
		PollInterval: res.PollInterval,
		Window:       res.DVRWindow,
	}
	if err != nil {
		return out, err
	}
	if res.BodyKind != csm.BodyVMAP {
		return out, nil
	}

	doc, err := vast.ParseVMAP(res.Body)
	if err != nil {
		out.Code = model.CodeUnknownFormat
		return out, fmt.Errorf("decode vmap: %w", err)
	}
	out.RawVMAP = string(res.Body)
	b, rf := a.builder()
	out.Breaks, out.Warnings = b.BuildVMAP(ctx, doc, 0)
	out.RawVAST = rf.bodies()
	for _, br := range out.Breaks {
		if end := br.End(); end > out.Duration {
			out.Duration = end
		}
	}
	return out, nil
}

func (a *CSMAdapter) Poll(ctx context.Context, analyticsURL string) (*ports.Update, error) {
	res, err := a.client.Poll(ctx, analyticsURL)
	if err != nil {
		if errors.Is(err, csm.ErrSessionExpired) {
			return nil, fmt.Errorf("%w: %w", ports.ErrExpired, err)
		}
		return nil, err
	}
	up := &ports.Update{PollInterval: res.PollInterval, Window: res.DVRWindow}
	if len(res.Body) == 0 {
		if up.Window == nil && up.PollInterval == 0 {
			return nil, nil
		}
		return up, nil
	}
	if vast.Sniff(res.Body) != "vmap" {
		return up, fmt.Errorf("poll body: %w", vast.ErrNotVMAP)
	}
	doc, err := vast.ParseVMAP(res.Body)
	if err != nil {
		return up, err
	}
	up.RawVMAP = string(res.Body)
	b, rf := a.builder()
	up.Breaks, up.Warnings = b.BuildStitchedVMAP(ctx, doc)
	up.RawVAST = rf.bodies()
	return up, nil
}

func (a *CSMAdapter) KeepAlive(ctx context.Context, playbackURL string) error {
	return a.client.KeepAlive(ctx, playbackURL)
}

func (a *CSMAdapter) FetchResource(ctx context.Context, url string) ([]byte, error) {
	return a.client.FetchResource(ctx, url)
}

// window returns w or the invalid window when nil.
func window(w *timeline.Window) timeline.Window {
	if w == nil {
		return timeline.InvalidDVRWindow
	}
	return *w
}
