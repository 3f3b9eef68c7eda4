package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/procrag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Sampling.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	logger, err := NewLogger(cfg, nil, WithWriter(&buf))
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONFieldsAndServiceName(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Info(context.Background(), "document ingested", zap.Int("units", 12))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "document ingested", lines[0]["msg"])
	assert.Equal(t, "procrag", lines[0]["service"])
	assert.Equal(t, float64(12), lines[0]["units"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Level = zapcore.WarnLevel })
	ctx := context.Background()

	logger.Debug(ctx, "hidden")
	logger.Info(ctx, "hidden too")
	logger.Warn(ctx, "shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
}

func TestLogger_TraceLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Level = TraceLevel })

	logger.Trace(context.Background(), "rule matched", zap.String("rule", "step_label"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "rule matched", lines[0]["msg"])
}

func TestLogger_Redaction(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)
	ctx := context.Background()

	logger.Info(ctx, "calling provider with sk-abcdefghijklmnopqrstuvwx",
		zap.String("api_key", "sk-live-123"),
		zap.String("header", "Bearer abc.def"),
		Secret("openai_key", config.Secret("sk-0123456789")),
	)
	logger.With(zap.String("token", "t-1")).Info(ctx, "child")

	out := buf.String()
	assert.NotContains(t, out, "sk-live-123")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwx")
	assert.NotContains(t, out, "sk-0123456789")
	assert.NotContains(t, out, "t-1")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, "[REDACTED:13]", lines[0]["openai_key"])
	assert.Equal(t, "calling provider with [REDACTED]", lines[0]["msg"])
	assert.Equal(t, "[REDACTED]", lines[1]["token"])
}

func TestLogger_ContextFields(t *testing.T) {
	tp := trace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ctx = WithQueryID(ctx, "q-1")
	ctx = WithSourceID(ctx, "manual.pdf")

	logger, buf := newBufferLogger(t, nil)
	logger.Info(ctx, "query served")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, span.SpanContext().TraceID().String(), lines[0]["trace_id"])
	assert.Equal(t, "q-1", lines[0]["query.id"])
	assert.Equal(t, "manual.pdf", lines[0]["source.id"])
}

func TestLogger_Sampling(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) {
		c.Sampling = SamplingConfig{Enabled: true, Tick: config.Duration(60e9), Initial: 2, Thereafter: 0}
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		logger.Info(ctx, "repeated")
	}
	for i := 0; i < 10; i++ {
		logger.Error(ctx, "failure")
	}

	var infos, errs int
	for _, line := range decodeLines(t, buf) {
		switch line["msg"] {
		case "repeated":
			infos++
		case "failure":
			errs++
		}
	}
	assert.Equal(t, 2, infos)
	assert.Equal(t, 10, errs, "error entries are never sampled")
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
	assert.Equal(t, "", QueryIDFromContext(context.Background()))

	ctx := WithSourceID(context.Background(), "pump.txt")
	fields := ContextFields(ctx)
	require.Len(t, fields, 1)
	assert.Equal(t, "source.id", fields[0].Key)
}

func TestTestLogger_AssertField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "query served", zap.Int("results", 3), zap.String("category", "procedure"))

	tl.AssertField(t, "query served", "results", int64(3))
	tl.AssertField(t, "query served", "category", "procedure")
	assert.Len(t, tl.All(), 1)
	assert.Equal(t, []string{"query served"}, tl.Messages(zapcore.InfoLevel))
	assert.Empty(t, tl.Messages(zapcore.WarnLevel))
	tl.AssertNotLogged(t, zapcore.InfoLevel, "query failed")

	tl.Reset()
	assert.Empty(t, tl.All())
}
