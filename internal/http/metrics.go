package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/fyrsmithlabs/procrag/internal/http"

// Metrics records request and query instruments. A nil instrument (one
// that failed to register) is skipped.
type Metrics struct {
	logger   *zap.Logger
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	bytesOut metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
	units    metric.Int64Histogram
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
	if m.requests, err = meter.Int64Counter("procrag.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		m.instrumentFailed("requests_total", err)
	}
	if m.latency, err = meter.Float64Histogram("procrag.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	); err != nil {
		m.instrumentFailed("request_duration_seconds", err)
	}
	if m.bytesOut, err = meter.Int64Histogram("procrag.http.response_size_bytes",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 1024, 4096, 16384, 65536, 262144, 1048576),
	); err != nil {
		m.instrumentFailed("response_size_bytes", err)
	}
	if m.inFlight, err = meter.Int64UpDownCounter("procrag.http.active_requests",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		m.instrumentFailed("active_requests", err)
	}
	if m.units, err = meter.Int64Histogram("procrag.http.query.units",
		metric.WithDescription("Units returned per query request"),
		metric.WithUnit("{unit}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10, 20, 50),
	); err != nil {
		m.instrumentFailed("query.units", err)
	}
	return m
}

func (m *Metrics) instrumentFailed(name string, err error) {
	m.logger.Warn("failed to create http instrument", zap.String("instrument", name), zap.Error(err))
}

// Middleware records one data point per request. The status of a
// returned error is taken from the error, since echo writes the
// response after the middleware chain unwinds.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", route(c.Path())),
				attribute.Int("status", responseStatus(c, err)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, elapsed.Seconds(), attrs)
			}
			if m.bytesOut != nil {
				m.bytesOut.Record(ctx, c.Response().Size, attrs)
			}
			return err
		}
	}
}

// RecordQuery records how many units a query returned.
func (m *Metrics) RecordQuery(ctx context.Context, units int) {
	if m.units != nil {
		m.units.Record(ctx, int64(units))
	}
}

func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// route reports unmatched requests as "/". Matched routes already come
// back as their pattern, e.g. /api/v1/documents/:id.
func route(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
