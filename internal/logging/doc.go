// Package logging provides structured logging for procrag on top of Zap.
//
// Features:
//   - Context-aware methods that append trace_id/span_id plus query and
//     source IDs carried in the context
//   - JSON or console encoding to stderr, keeping stdout for command output
//   - Optional OpenTelemetry log export through the otelzap bridge
//   - Field-name and pattern redaction (API keys, bearer tokens)
//   - Sampling below Error level, with TraceLevel for per-rule detail
//
// # Usage
//
//	cfg, err := logging.FromConfig(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithSourceID(ctx, "manual.pdf")
//	logger.Info(ctx, "document ingested", zap.Int("units", 12))
//
// Library packages take a *zap.Logger; pass logger.Underlying().
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "query served", zap.Int("results", 3))
//	tl.AssertLogged(t, zapcore.InfoLevel, "query served")
//	tl.AssertField(t, "query served", "results", int64(3))
package logging
