// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelHTTP wraps the handler with OpenTelemetry HTTP instrumentation.
func OTelHTTP(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			serviceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithSpanOptions(trace.WithAttributes(semconv.ServiceName(serviceName))),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanNameFormatter),
		)
	}
}

// shouldTrace skips probes, scrapes and event streams. A stream span would
// stay open for the life of the session.
func shouldTrace(r *http.Request) bool {
	switch p := r.URL.Path; {
	case p == "/healthz", p == "/metrics":
		return false
	case strings.HasSuffix(p, "/events"):
		return false
	}
	return true
}

// spanNameFormatter names spans "<op> <method> <route>" with the session token
// replaced, e.g. "adsession GET /sessions/{token}".
func spanNameFormatter(operation string, r *http.Request) string {
	return operation + " " + r.Method + " " + routeOf(r)
}

// routeOf returns the path with any session token masked. It runs before
// chi has matched, so the pattern is derived from the path itself.
func routeOf(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "sessions" && parts[1] != "" {
		parts[1] = "{token}"
	}
	return "/" + strings.Join(parts, "/")
}

// ExtractTraceContext returns the trace and span id of the active span, or
// empty strings.
func ExtractTraceContext(r *http.Request) (traceID, spanID string) {
	spanCtx := trace.SpanContextFromContext(r.Context())
	if !spanCtx.IsValid() {
		return "", ""
	}
	return spanCtx.TraceID().String(), spanCtx.SpanID().String()
}
