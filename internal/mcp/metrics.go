package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/loader"
	"github.com/fyrsmithlabs/procrag/internal/retrieval"
)

const meterName = "github.com/fyrsmithlabs/procrag/internal/mcp"

// Metrics counts tool calls, their latency and failures by reason.
type Metrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates Metrics on the global meter provider. Instruments
// that fail to register are logged and skipped.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(meterName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create mcp instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &Metrics{}
	var err error
	m.calls, err = meter.Int64Counter("procrag.mcp.tool.invocations_total",
		metric.WithDescription("Tool calls by tool name"),
		metric.WithUnit("{invocation}"))
	warn("invocations_total", err)

	m.duration, err = meter.Float64Histogram("procrag.mcp.tool.duration_seconds",
		metric.WithDescription("Tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10))
	warn("duration_seconds", err)

	m.failures, err = meter.Int64Counter("procrag.mcp.tool.errors_total",
		metric.WithDescription("Failed tool calls by tool and reason"),
		metric.WithUnit("{error}"))
	warn("errors_total", err)

	m.inFlight, err = meter.Int64UpDownCounter("procrag.mcp.tool.active_requests",
		metric.WithDescription("Tool calls in progress"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	return m
}

// Begin marks a call to tool as in flight. The returned func ends it
// and records its outcome.
func (m *Metrics) Begin(ctx context.Context, tool string) func(err error) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	start := time.Now()
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, attrs)
		}
		m.RecordInvocation(ctx, tool, time.Since(start), err)
	}
}

// RecordInvocation records one finished tool call.
func (m *Metrics) RecordInvocation(ctx context.Context, tool string, elapsed time.Duration, err error) {
	toolAttr := attribute.String("tool", tool)
	if m.calls != nil {
		m.calls.Add(ctx, 1, metric.WithAttributes(toolAttr))
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(toolAttr))
	}
	if err != nil && m.failures != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(toolAttr, attribute.String("reason", categorizeError(err))))
	}
}

// categorizeError maps err to a low-cardinality reason label.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}
	var (
		loadErr      *loader.LoadError
		retrievalErr *retrieval.RetrievalError
	)
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, retrieval.ErrInvalidTopK):
		return "validation_error"
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, document.ErrMalformedUnit):
		return "malformed_unit"
	case errors.As(err, &loadErr):
		return "load_error"
	case errors.As(err, &retrievalErr):
		return "retrieval_error"
	}
	return "internal_error"
}
