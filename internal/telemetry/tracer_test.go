// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProviderDisabledInstallsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "t", ExporterType: "carrier-pigeon"})
	require.EqualError(t, err, "unsupported exporter type: carrier-pigeon (supported: grpc, http)")
}

func TestNewProviderRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	p, err := NewProvider(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "adsession-test",
		SamplingRate:   1,
		SpanProcessors: []sdktrace.SpanProcessor{rec},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "session.create")
	span.SetAttributes(SessionAttributes("s-1", "VOD")...)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "session.create", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String(SessionModeKey, "VOD"))
	assert.Contains(t, ended[0].Attributes(), attribute.String(SessionIDKey, "s-1"))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", samplerFor(1.5).Description())
	assert.Equal(t, "AlwaysOffSampler", samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestBeaconAttributesOmitEmptyIDs(t *testing.T) {
	attrs := BeaconAttributes("start", "timeline", "", "", 1)
	assert.Len(t, attrs, 3)
	attrs = BeaconAttributes("start", "timeline", "b1", "a1", 2)
	assert.Len(t, attrs, 5)
}
