package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type correlationKey int

const (
	queryKey correlationKey = iota
	sourceKey
)

// WithQueryID tags ctx with the retrieval query being answered.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryKey, id)
}

// WithSourceID tags ctx with the document being ingested.
func WithSourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sourceKey, id)
}

func QueryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(queryKey).(string)
	return id
}

func SourceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sourceKey).(string)
	return id
}

// ContextFields returns the trace and correlation IDs carried by ctx,
// in a fixed order. Absent values produce no field.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := QueryIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("query.id", id))
	}
	if id := SourceIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("source.id", id))
	}
	return fields
}
