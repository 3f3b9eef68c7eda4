package vectorstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// OperationsTotal counts store operations by store, op and result
	// (success or error).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Vector store operations by store, operation and result.",
		},
		[]string{"store", "op", "result"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "procrag",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Vector store operation latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"store", "op"},
	)
)

// beginOp starts a span named "<spanPrefix>.<op>" and returns a func
// that, given the operation's error, closes the span and records the
// Prometheus metrics. Typical use:
//
//	ctx, end := beginOp(ctx, tracer, "chromem", "ChromemStore", "search")
//	defer end(&err)
func beginOp(ctx context.Context, tracer trace.Tracer, store, spanPrefix, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, spanPrefix+"."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		OperationsTotal.WithLabelValues(store, op, result).Inc()
		OperationDuration.WithLabelValues(store, op).Observe(time.Since(start).Seconds())
	}
}
