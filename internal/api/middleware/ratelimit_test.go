// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func serveFrom(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_EnforcesLimit(t *testing.T) {
	limited := RateLimit(RateLimitConfig{RequestLimit: 3, WindowSize: time.Second})(okHandler())

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serveFrom(limited, "192.168.1.1:12345").Code, "request %d", i+1)
	}

	w := serveFrom(limited, "192.168.1.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestRateLimit_DifferentIPsIndependent(t *testing.T) {
	limited := RateLimit(RateLimitConfig{RequestLimit: 2, WindowSize: time.Second})(okHandler())

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serveFrom(limited, "192.168.1.1:12345").Code)
	}
	assert.Equal(t, http.StatusOK, serveFrom(limited, "192.168.1.2:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(limited, "192.168.1.1:12345").Code)
}
