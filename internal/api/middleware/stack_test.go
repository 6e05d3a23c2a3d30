// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/adsession/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovererReturnsJSON(t *testing.T) {
	r := NewRouter(StackConfig{EnableLogging: true})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body["requestId"])
}

func TestRecovererReportsGeneratedRequestID(t *testing.T) {
	r := NewRouter(StackConfig{})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["requestId"])
	assert.Equal(t, w.Header().Get(HeaderRequestID), body["requestId"])
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	r := NewRouter(StackConfig{EnableMetrics: true})
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = log.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
}

func TestMetricsWriterSupportsFlush(t *testing.T) {
	r := NewRouter(StackConfig{EnableMetrics: true, EnableLogging: true, TracingService: "test"})
	r.Get("/stream", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data: x\n\n"))
		assert.NoError(t, http.NewResponseController(w).Flush())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.True(t, w.Flushed)
}

func TestRouteMasksSessionTokens(t *testing.T) {
	for path, want := range map[string]string{
		"/healthz":                 "/healthz",
		"/sessions/":               "/sessions",
		"/sessions/abc":            "/sessions/{token}",
		"/sessions/abc/events":     "/sessions/{token}/events",
		"/sessions/abc/events?x=1": "/sessions/{token}/events",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, want, routeOf(req), path)
	}
}

func TestShouldTraceSkipsStreamsAndProbes(t *testing.T) {
	assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/metrics", nil)))
	assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/sessions/abc/events", nil)))
	assert.True(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)))
}
