package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/fyrsmithlabs/procrag/internal/embeddings"

// Operation names recorded on the "operation" attribute.
const (
	opEmbedDocuments = "embed_documents"
	opEmbedQuery     = "embed_query"
)

// Metrics records embedding latency, volume and failures per model.
type Metrics struct {
	logger   *zap.Logger
	duration metric.Float64Histogram
	batch    metric.Int64Histogram
	texts    metric.Int64Counter
	errors   metric.Int64Counter
}

// NewMetrics creates Metrics on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(meterName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{logger: logger}

	var err error
	if m.duration, err = meter.Float64Histogram("procrag.embedding.generation_duration_seconds",
		metric.WithDescription("Embedding call latency by model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	); err != nil {
		m.instrumentFailed("generation_duration_seconds", err)
	}
	if m.batch, err = meter.Int64Histogram("procrag.embedding.batch_size",
		metric.WithDescription("Texts per embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 4, 16, 64, 128, 256, 512),
	); err != nil {
		m.instrumentFailed("batch_size", err)
	}
	if m.texts, err = meter.Int64Counter("procrag.embedding.texts_total",
		metric.WithDescription("Texts embedded successfully"),
		metric.WithUnit("{text}"),
	); err != nil {
		m.instrumentFailed("texts_total", err)
	}
	if m.errors, err = meter.Int64Counter("procrag.embedding.errors_total",
		metric.WithDescription("Failed embedding calls by model and operation"),
		metric.WithUnit("{error}"),
	); err != nil {
		m.instrumentFailed("errors_total", err)
	}
	return m
}

func (m *Metrics) instrumentFailed(name string, err error) {
	m.logger.Warn("failed to create embedding instrument", zap.String("instrument", name), zap.Error(err))
}

// observe starts timing one call of n texts. The returned func records
// the outcome from *errp and is meant to be deferred:
//
//	defer p.metrics.observe(ctx, model, opEmbedQuery, 1)(&err)
func (m *Metrics) observe(ctx context.Context, model, op string, n int) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		m.RecordGeneration(ctx, model, op, time.Since(start), n, err)
	}
}

// RecordGeneration records one embedding call.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, duration time.Duration, batchSize int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.batch != nil && batchSize > 0 {
		m.batch.Record(ctx, int64(batchSize), attrs)
	}
	if err != nil {
		if m.errors != nil {
			m.errors.Add(ctx, 1, attrs)
		}
		return
	}
	if m.texts != nil && batchSize > 0 {
		m.texts.Add(ctx, int64(batchSize), attrs)
	}
}
