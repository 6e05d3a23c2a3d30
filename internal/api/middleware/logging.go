// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/adsession/internal/log"
)

// AccessLog writes one structured line per request. Event streams are
// logged when they end.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mw := &metricsWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(mw, r)

		logger := log.WithComponentFromContext(r.Context(), "api")
		ev := logger.Info()
		if mw.statusCode >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		if traceID, _ := ExtractTraceContext(r); traceID != "" {
			ev = ev.Str("trace_id", traceID)
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int(log.FieldStatus, mw.statusCode).
			Int("bytes", mw.bytesWritten).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
