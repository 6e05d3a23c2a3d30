// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tracking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderBackoffIsCapped(t *testing.T) {
	s := NewSender(SenderConfig{RetryBase: time.Second}, outbox.NewMemoryStore())

	assert.Equal(t, 2*time.Second, s.backoff(1))
	assert.Equal(t, 8*time.Second, s.backoff(3))
	assert.Equal(t, maxBackoff, s.backoff(30))
}

func TestSenderParksOnQueueOverflow(t *testing.T) {
	store := outbox.NewMemoryStore()
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	// Not started: nothing drains the queue.
	s := NewSender(SenderConfig{QueueSize: 1, RetryBase: time.Second}, store, WithNow(c.now))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	require.NoError(t, s.enqueue(request{id: "a", url: "https://t.example/a", event: "start"}))
	require.NoError(t, s.enqueue(request{id: "b", url: "https://t.example/b", event: "start"}))

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, err := store.Due(context.Background(), c.now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "b", due[0].ID)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "queue full", due[0].LastError)
	assert.Equal(t, c.now().Add(2*time.Second), due[0].NextAttempt)
}

func TestReplayKeepsUserAgentAndHeaders(t *testing.T) {
	var (
		mu      sync.Mutex
		gotUA   string
		gotHead string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA, gotHead = r.UserAgent(), r.Header.Get("X-Custom")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := outbox.NewMemoryStore()
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSender(SenderConfig{QueueSize: 1, RetryBase: time.Second}, store, WithNow(c.now))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	headers := map[string]string{"X-Custom": "yes"}
	require.NoError(t, s.enqueue(request{id: "a", url: srv.URL + "/a", event: "start"}))
	require.NoError(t, s.enqueue(request{
		id: "b", url: srv.URL + "/b", event: "start",
		userAgent: "adsession/test", headers: headers,
	}))

	c.advance(time.Minute)
	sent, err := s.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "adsession/test", gotUA)
	assert.Equal(t, "yes", gotHead)
}
