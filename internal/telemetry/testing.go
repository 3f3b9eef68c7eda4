package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewTestTelemetry makes in-memory providers global for the rest of the
// test and restores the previous ones on cleanup. Code under test must
// call otel.Tracer or otel.Meter after this point to be recorded.
func NewTestTelemetry(tb testing.TB) *TestTelemetry {
	tb.Helper()

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	prevTracer, prevMeter := otel.GetTracerProvider(), otel.GetMeterProvider()
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	tel := &Telemetry{config: cfg, tracerProvider: tp, meterProvider: mp}

	tb.Cleanup(func() {
		_ = tel.Shutdown(context.Background())
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	})
	return &TestTelemetry{Telemetry: tel, spans: spans, reader: reader}
}

// Spans returns the spans ended so far.
func (t *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return t.spans.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) sdktrace.ReadOnlySpan {
	for _, s := range t.Spans() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (t *TestTelemetry) requireSpan(tb testing.TB, name string) sdktrace.ReadOnlySpan {
	tb.Helper()
	s := t.SpanByName(name)
	if s == nil {
		names := make([]string, 0)
		for _, ended := range t.Spans() {
			names = append(names, ended.Name())
		}
		require.FailNow(tb, "span not recorded", "want %q, have %v", name, names)
	}
	return s
}

func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	t.requireSpan(tb, name)
}

func (t *TestTelemetry) AssertSpanStatus(tb testing.TB, name string, want codes.Code) {
	tb.Helper()
	assert.Equal(tb, want, t.requireSpan(tb, name).Status().Code, "status of span %q", name)
}

// AssertSpanAttribute compares the attribute in its native Go type
// (string, int64, float64 or bool).
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, name, key string, want any) {
	tb.Helper()
	for _, kv := range t.requireSpan(tb, name).Attributes() {
		if string(kv.Key) == key {
			assert.Equal(tb, want, nativeValue(kv.Value), "attribute %q of span %q", key, name)
			return
		}
	}
	assert.Fail(tb, "attribute missing", "span %q has no attribute %q", name, key)
}

// Collect reads the current metric state.
func (t *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := t.reader.Collect(ctx, &rm)
	return rm, err
}

func nativeValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	}
	return v.AsInterface()
}
