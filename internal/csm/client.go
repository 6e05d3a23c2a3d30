// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package csm talks to the central streaming manager: session
// initialisation, analytics polling and VAST tag downloads.
package csm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/metrics"
	"github.com/ManuGH/adsession/internal/resilience"
	"github.com/ManuGH/adsession/internal/telemetry"
	"github.com/ManuGH/adsession/internal/vast"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// Response headers of the session manager.
const (
	HeaderSessionID    = "X-CSM-Session-ID"
	HeaderPlaybackURL  = "X-CSM-Playback-URL"
	HeaderAnalyticsURL = "X-CSM-Analytics-URL"
	HeaderPollInterval = "X-CSM-Poll-Interval"
	HeaderFallback     = "X-CSM-Fallback"
	HeaderDVRWindow    = "X-CSM-DVR-Window"
)

const maxBody = 8 << 20

// Body kinds returned by Init.
const (
	BodyVMAP     = "vmap"
	BodyPlaylist = "playlist"
)

// Config tunes a Client. Zero values fall back to sensible defaults.
type Config struct {
	Timeout          time.Duration
	ResourceTimeout  time.Duration
	UserAgent        string
	ProxyUserAgent   string
	CustomHeaders    map[string]string
	BreakerThreshold int
	BreakerReset     time.Duration
}

// InitResult describes a resolved session.
type InitResult struct {
	Code         model.ResultCode
	SessionID    string
	PlaybackURL  string
	AnalyticsURL string
	PollInterval time.Duration
	DVRWindow    *timeline.Window
	BodyKind     string
	Body         []byte
}

// PollResult is one analytics poll. Body is empty when nothing changed.
type PollResult struct {
	Body         []byte
	PollInterval time.Duration
	DVRWindow    *timeline.Window
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.CircuitBreaker
	tags    singleflight.Group
	logger  zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker replaces the poll circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// NewClient builds a client whose transport is traced with otelhttp.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ResourceTimeout <= 0 {
		cfg.ResourceTimeout = 2 * time.Second
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone()),
		},
		logger: log.WithComponent("csm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.New("csm-poll", cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailureFilter(countsAsOutage))
	}
	return c
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &InitError{Code: model.CodeMalformedURL, Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &InitError{Code: model.CodeMalformedURL, Err: fmt.Errorf("unsupported url %q", raw)}
	}
	return u, nil
}

// Init resolves a session for rawURL. Every call opens its own session on
// the manager. The returned result always carries a code; the error is
// non-nil exactly when the code is not success, except for the fallback code
// which comes with a usable playback URL.
func (c *Client) Init(ctx context.Context, rawURL string, mode model.PlaybackMode) (*InitResult, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return &InitResult{Code: model.CodeMalformedURL}, err
	}
	return c.doInit(ctx, u, mode)
}

func (c *Client) doInit(ctx context.Context, u *url.URL, mode model.PlaybackMode) (res *InitResult, err error) {
	ctx, span := telemetry.Tracer("csm").Start(ctx, "csm.init")
	span.SetAttributes(telemetry.SessionAttributes("", string(mode))...)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = res.Code.String()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int(telemetry.ResultCodeKey, int(res.Code)))
		span.End()
		metrics.ObserveCSMRequest("init", outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.get(ctx, u.String(), c.cfg.UserAgent)
	if err != nil {
		code := classifyTransport(err)
		return &InitResult{Code: code}, &InitError{Code: code, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := model.ResultCode(resp.StatusCode)
		return &InitResult{Code: code}, &InitError{Code: code}
	}

	res = &InitResult{
		SessionID:    strings.TrimSpace(resp.Header.Get(HeaderSessionID)),
		PlaybackURL:  strings.TrimSpace(resp.Header.Get(HeaderPlaybackURL)),
		AnalyticsURL: strings.TrimSpace(resp.Header.Get(HeaderAnalyticsURL)),
		PollInterval: parseInterval(resp.Header.Get(HeaderPollInterval)),
	}
	if res.PlaybackURL == "" {
		res.PlaybackURL = resp.Request.URL.String()
	}

	if isTrue(resp.Header.Get(HeaderFallback)) {
		res.Code = model.CodeFallbackURL
		return res, &InitError{Code: res.Code, Err: errors.New("manager returned fallback url")}
	}
	if res.SessionID == "" {
		res.Code = model.CodeNonSDKURL
		return res, &InitError{Code: res.Code, Err: fmt.Errorf("missing %s header", HeaderSessionID)}
	}
	if mode == model.ModeDVRLive {
		w, err := ParseDVRWindow(resp.Header.Get(HeaderDVRWindow))
		if err != nil {
			res.Code = model.CodeNoDVRLive
			return res, &InitError{Code: res.Code, Err: err}
		}
		res.DVRWindow = w
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		res.Code = classifyTransport(err)
		return res, &InitError{Code: res.Code, Err: err}
	}
	res.Body = body
	switch {
	case mode.HasTimelineUpFront() && vast.Sniff(body) == "vmap":
		res.BodyKind = BodyVMAP
	case !mode.HasTimelineUpFront() && bytes.HasPrefix(bytes.TrimSpace(body), []byte("#EXTM3U")):
		res.BodyKind = BodyPlaylist
	default:
		res.Code = model.CodeUnknownFormat
		return res, &InitError{Code: res.Code, Err: errors.New("unrecognised body")}
	}

	c.logger.Info().
		Str(log.FieldSessionID, res.SessionID).
		Str(log.FieldMode, string(mode)).
		Str("body", res.BodyKind).
		Dur("poll_interval", res.PollInterval).
		Msg("session initialised")
	return res, nil
}

// Poll fetches analytics updates. 404 and 410 report ErrSessionExpired.
func (c *Client) Poll(ctx context.Context, analyticsURL string) (*PollResult, error) {
	if analyticsURL == "" {
		return nil, ErrNoAnalyticsURL
	}
	var out *PollResult
	start := time.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		resp, err := c.get(ctx, analyticsURL, c.cfg.UserAgent)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			return ErrSessionExpired
		case resp.StatusCode == http.StatusNoContent:
			out = &PollResult{}
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
			if err != nil {
				return err
			}
			out = &PollResult{Body: body}
		default:
			return &StatusError{Op: "poll", Status: resp.StatusCode}
		}
		out.PollInterval = parseInterval(resp.Header.Get(HeaderPollInterval))
		if h := resp.Header.Get(HeaderDVRWindow); h != "" {
			if w, err := ParseDVRWindow(h); err == nil {
				out.DVRWindow = w
			}
		}
		return nil
	})
	outcome := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		outcome = "circuit_open"
	case errors.Is(err, ErrSessionExpired):
		outcome = "expired"
	case err != nil:
		outcome = "error"
	}
	metrics.ObserveCSMRequest("poll", outcome, time.Since(start))
	return out, err
}

// KeepAlive touches the playback URL so a proxy keeps the session open while
// the player is paused.
func (c *Client) KeepAlive(ctx context.Context, playbackURL string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ua := c.cfg.ProxyUserAgent
	if ua == "" {
		ua = c.cfg.UserAgent
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, playbackURL, nil)
	if err != nil {
		return err
	}
	c.decorate(req, ua)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &StatusError{Op: "keepalive", Status: resp.StatusCode}
	}
	return nil
}

// Fetch downloads a VAST tag. It satisfies vast.Fetcher. Concurrent fetches
// of one tag share a single download that outlives callers giving up early;
// the client timeout still bounds it.
func (c *Client) Fetch(ctx context.Context, tagURL string) ([]byte, error) {
	ch := c.tags.DoChan(tagURL, func() (any, error) {
		return c.download(context.WithoutCancel(ctx), "tag", tagURL, c.cfg.Timeout)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		body := r.Val.([]byte)
		if r.Shared {
			c.logger.Debug().Str(log.FieldURL, tagURL).Msg("tag download shared with concurrent caller")
			body = bytes.Clone(body)
		}
		return body, nil
	}
}

// FetchResource downloads a creative resource within the resource timeout.
func (c *Client) FetchResource(ctx context.Context, resourceURL string) ([]byte, error) {
	return c.download(ctx, "resource", resourceURL, c.cfg.ResourceTimeout)
}

func (c *Client) download(ctx context.Context, op, rawURL string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	resp, err := c.get(ctx, rawURL, c.cfg.UserAgent)
	if err != nil {
		metrics.ObserveCSMRequest(op, "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.ObserveCSMRequest(op, "status", time.Since(start))
		return nil, &StatusError{Op: op, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	metrics.ObserveCSMRequest(op, "ok", time.Since(start))
	return body, err
}

func (c *Client) get(ctx context.Context, rawURL, ua string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req, ua)
	return c.http.Do(req)
}

func (c *Client) decorate(req *http.Request, ua string) {
	for k, v := range c.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
}

// ParseDVRWindow parses "start,end,size[,streamStart]" in seconds.
func ParseDVRWindow(h string) (*timeline.Window, error) {
	h = strings.TrimSpace(h)
	if h == "" {
		return nil, fmt.Errorf("missing %s header", HeaderDVRWindow)
	}
	parts := strings.Split(h, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return nil, fmt.Errorf("malformed %s header %q", HeaderDVRWindow, h)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed %s header %q: %w", HeaderDVRWindow, h, err)
		}
		vals[i] = v
	}
	w := &timeline.Window{Start: vals[0], End: vals[1], Size: vals[2]}
	if len(vals) == 4 {
		w.StreamStart = vals[3]
	}
	if w.End < w.Start {
		return nil, fmt.Errorf("dvr window ends before it starts: %q", h)
	}
	return w, nil
}

func parseInterval(h string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func isTrue(h string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(h))
	return err == nil && b
}
