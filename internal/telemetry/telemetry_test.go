package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/inferguard/inferguard/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "inferguard-test",
		OTLPEndpoint: "localhost:4317",
		Enabled:      false,
	})

	require.NoError(t, err)
	assert.False(t, provider.Enabled())
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{1.5, "AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		got := telemetry.Sampler(tt.ratio).Description()
		assert.Contains(t, got, tt.want, "ratio %v", tt.ratio)
	}
}

func TestStartEnd(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, passed := telemetry.Start(context.Background(), "checks", "checks.latency",
		attribute.String("check.type", "latency"))
	telemetry.End(passed, "", attribute.Bool("check.passed", true))

	_, failed := telemetry.Start(ctx, "remediation", "remediation.restart_service")
	telemetry.End(failed, "restart timed out")

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "checks.latency", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.ElementsMatch(t, []attribute.KeyValue{
		attribute.String("check.type", "latency"),
		attribute.Bool("check.passed", true),
	}, spans[0].Attributes())

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "restart timed out", spans[1].Status().Description)
	assert.Equal(t, spans[0].SpanContext().SpanID(), spans[1].Parent().SpanID(), "child of the ctx span")
	assert.Equal(t, "checks", spans[0].InstrumentationScope().Name)
}
