// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func captureBase(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Base()
	Reconfigure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	})
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		set  func(context.Context, string) context.Context
		get  func(context.Context) string
		id   string
	}{
		{"request id nil ctx", nil, ContextWithRequestID, RequestIDFromContext, "req-1"},
		{"correlation id", context.Background(), ContextWithCorrelationID, CorrelationIDFromContext, "corr-1"},
		{"session id", context.Background(), ContextWithSessionID, SessionIDFromContext, "sess-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.set(tt.ctx, tt.id)
			assert.Equal(t, tt.id, tt.get(ctx))
		})
	}

	assert.Empty(t, RequestIDFromContext(nil))
	assert.Empty(t, SessionIDFromContext(context.WithValue(context.Background(), sessionIDKey, 42)))
}

func TestWithContextAddsFields(t *testing.T) {
	buf := captureBase(t)

	ctx := ContextWithSessionID(ContextWithRequestID(context.Background(), "req-9"), "sess-9")
	l := WithComponentFromContext(ctx, "manager")
	l.Info().Msg("hello")

	entry := decodeLine(t, buf)
	assert.Equal(t, "req-9", entry[FieldRequestID])
	assert.Equal(t, "sess-9", entry[FieldSessionID])
	assert.Equal(t, "manager", entry[FieldComponent])
	assert.Equal(t, "test", entry["service"])
}

func TestWithTraceContext(t *testing.T) {
	buf := captureBase(t)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	l := WithTraceContext(trace.ContextWithSpanContext(context.Background(), sc))
	l.Info().Msg("traced")

	entry := decodeLine(t, buf)
	assert.Equal(t, traceID.String(), entry["trace_id"])
	assert.Equal(t, spanID.String(), entry["span_id"])
}

func TestDebugAreaPromotion(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.InfoLevel)

	Debug(l, DebugParsing, DebugPolling).Msg("hidden")
	assert.Zero(t, buf.Len())

	Debug(l, DebugParsing|DebugPolling, DebugPolling).Msg("shown")
	entry := decodeLine(t, &buf)
	assert.Equal(t, true, entry["debug"])
	assert.Equal(t, "shown", entry["message"])
}

func TestDerive(t *testing.T) {
	buf := captureBase(t)
	l := Derive(func(c *zerolog.Context) { *c = c.Str(FieldToken, "tok") })
	l.Info().Msg("derived")
	assert.Equal(t, "tok", decodeLine(t, buf)[FieldToken])

	assert.NotPanics(t, func() {
		plain := Derive(nil)
		plain.Info().Msg("nil builder")
	})
}
