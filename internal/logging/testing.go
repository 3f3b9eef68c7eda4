package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are kept in memory for assertions.
// Every level down to TraceLevel is recorded; sampling and redaction are off.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger creates a TestLogger. Pass Underlying() to code that takes
// a *zap.Logger.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{zap: zap.New(core)},
		logs:   logs,
	}
}

// All returns every recorded entry in order.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.logs.All()
}

// Messages returns the recorded messages at level.
func (t *TestLogger) Messages(level zapcore.Level) []string {
	entries := t.logs.FilterLevelExact(level).All()
	msgs := make([]string, len(entries))
	for i, e := range entries {
		msgs[i] = e.Message
	}
	return msgs
}

// Reset discards recorded entries.
func (t *TestLogger) Reset() {
	_ = t.logs.TakeAll()
}

// AssertLogged fails tb unless an entry at level has a message containing substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if !t.logged(level, substr) {
		tb.Errorf("no %v entry containing %q; %v entries: %q", level, substr, level, t.Messages(level))
	}
}

// AssertNotLogged fails tb if an entry at level has a message containing substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if t.logged(level, substr) {
		tb.Errorf("unexpected %v entry containing %q", level, substr)
	}
}

// AssertField fails tb unless an entry whose message contains msg carries
// key with the given value. Integers compare as int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessageSnippet(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && got == want {
			return
		}
	}
	tb.Errorf("no entry containing %q with %s=%v", msg, key, want)
}

func (t *TestLogger) logged(level zapcore.Level, substr string) bool {
	for _, e := range t.logs.FilterLevelExact(level).All() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
