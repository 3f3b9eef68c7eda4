package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectEmbeddingMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			out[md.Name] = md.Data
		}
	}
	return out
}

func sumInt64(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordGeneration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter(meterName), nil)

	ctx := context.Background()
	m.RecordGeneration(ctx, "text-embedding-3-small", opEmbedDocuments, 100*time.Millisecond, 10, nil)
	m.RecordGeneration(ctx, "text-embedding-3-small", opEmbedQuery, 50*time.Millisecond, 1, nil)
	m.RecordGeneration(ctx, "text-embedding-3-small", opEmbedDocuments, 25*time.Millisecond, 5, errors.New("generation failed"))

	got := collectEmbeddingMetrics(t, reader)

	hist, ok := got["procrag.embedding.generation_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var calls uint64
	for _, dp := range hist.DataPoints {
		calls += dp.Count
	}
	assert.Equal(t, uint64(3), calls)

	assert.Contains(t, got, "procrag.embedding.batch_size")
	assert.Equal(t, int64(11), sumInt64(t, got["procrag.embedding.texts_total"]))
	assert.Equal(t, int64(1), sumInt64(t, got["procrag.embedding.errors_total"]))
}

func TestMetrics_Observe(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter(meterName), nil)

	ctx := context.Background()
	call := func(err error) (out error) {
		defer m.observe(ctx, "test", opEmbedQuery, 1)(&out)
		return err
	}
	require.NoError(t, call(nil))
	require.Error(t, call(ErrEmbeddingFailed))

	got := collectEmbeddingMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt64(t, got["procrag.embedding.texts_total"]))
	assert.Equal(t, int64(1), sumInt64(t, got["procrag.embedding.errors_total"]))
}
