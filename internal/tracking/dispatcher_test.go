// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tracking

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/csm"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newSender(t *testing.T, store outbox.Store, cfg SenderConfig, opts ...SenderOption) *Sender {
	t.Helper()
	s := NewSender(cfg, store, opts...)
	s.Start(context.Background())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestDispatcherDeliversExpandedBeacons(t *testing.T) {
	srv := csm.NewMockServer()
	defer srv.Close()
	s := newSender(t, outbox.NewMemoryStore(), SenderConfig{Workers: 2})
	d := NewDispatcher(s, Options{SessionID: "sess-1", UserAgent: "player"})
	d.SetPlayhead(65, 35)

	var seen []string
	d.Observe(func(b timeline.Beacon) { seen = append(seen, b.Event) })

	d.Report(timeline.Beacon{
		Event:    model.TrackImpression,
		URLs:     []string{srv.TrackURL("imp?cp=[CONTENTPLAYHEAD]&x=[CUSTOM]"), " "},
		AdvertID: "ad-1",
		Macros:   map[string]string{"CUSTOM": "a b"},
	})
	d.Report(timeline.Beacon{Event: model.TrackBreakStart})
	require.NoError(t, s.Close(context.Background()))

	beacons := srv.Beacons()
	require.Len(t, beacons, 1)
	assert.Equal(t, "/track/imp?cp=00%3A00%3A35.000&x=a+b", beacons[0])
	assert.Equal(t, []string{model.TrackImpression, model.TrackBreakStart}, seen)
}

func TestDispatcherSuppression(t *testing.T) {
	srv := csm.NewMockServer()
	defer srv.Close()
	s := newSender(t, outbox.NewMemoryStore(), SenderConfig{Workers: 1})
	d := NewDispatcher(s, Options{ExcludeFromSuppression: model.CategoryBreakEvents})

	var seen int
	d.Observe(func(timeline.Beacon) { seen++ })

	assert.Nil(t, d.Suppress(true))
	assert.True(t, d.Suppressed())
	d.Report(timeline.Beacon{Event: model.TrackStart, URLs: []string{srv.TrackURL("start")}})
	d.Report(timeline.Beacon{Event: model.TrackBreakStart, URLs: []string{srv.TrackURL("bs")}})

	held := d.Suppress(false)
	require.Len(t, held, 1)
	assert.Equal(t, model.TrackStart, held[0].Event)
	assert.Equal(t, model.CategoryTimelineEvents, held[0].Category)
	assert.Empty(t, d.Suppress(false))

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []string{"/track/bs"}, srv.Beacons())
	assert.Equal(t, 1, seen)
}

func TestFailedBeaconsAreReplayed(t *testing.T) {
	srv := csm.NewMockServer()
	defer srv.Close()
	srv.FailTracking(1)
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := outbox.NewMemoryStore()
	s := newSender(t, store, SenderConfig{Workers: 1, RetryBase: time.Second, MaxAttempts: 3}, WithNow(clk.now))
	d := NewDispatcher(s, Options{SessionID: "sess-9"})

	d.Report(timeline.Beacon{Event: model.TrackComplete, URLs: []string{srv.TrackURL("complete")}})
	require.NoError(t, s.Close(context.Background()))

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	due, err := store.Due(context.Background(), clk.now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, "sess-9", due[0].SessionID)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Contains(t, due[0].LastError, "503")

	sent, err := s.Replay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent, "entry is not due yet")

	clk.advance(time.Minute)
	sent, err = s.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	n, _ = store.Len(context.Background())
	assert.Zero(t, n)
	assert.Equal(t, []string{"/track/complete"}, srv.Beacons())
}

func TestBeaconDroppedAfterFinalAttempt(t *testing.T) {
	srv := csm.NewMockServer()
	defer srv.Close()
	srv.FailTracking(10)
	store := outbox.NewMemoryStore()
	s := newSender(t, store, SenderConfig{Workers: 1, MaxAttempts: 1})
	d := NewDispatcher(s, Options{})

	d.Report(timeline.Beacon{Event: model.TrackStart, URLs: []string{srv.TrackURL("start")}})
	require.NoError(t, s.Close(context.Background()))
	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDispatcherAppliesEncryptedTrackingAndHeaders(t *testing.T) {
	var mu sync.Mutex
	var got []*http.Request
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	})}
	s := newSender(t, outbox.NewMemoryStore(), SenderConfig{Workers: 1}, WithHTTPClient(hc))
	d := NewDispatcher(s, Options{
		UserAgent:              "player/1",
		CustomHeaders:          map[string]string{"X-Tenant": "acme"},
		ApplyEncryptedTracking: true,
	})

	d.Report(timeline.Beacon{Event: model.TrackStart, URLs: []string{"http://t.example/start", "https://t.example/s2"}})
	require.NoError(t, s.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "https", r.URL.Scheme)
		assert.Equal(t, "player/1", r.Header.Get("User-Agent"))
		assert.Equal(t, "acme", r.Header.Get("X-Tenant"))
		assert.True(t, strings.HasPrefix(r.URL.Path, "/s"))
	}
}

func TestSenderRejectsAfterClose(t *testing.T) {
	s := NewSender(SenderConfig{}, outbox.NewMemoryStore())
	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, s.enqueue(request{url: "https://x"}), ErrSenderClosed)
}
