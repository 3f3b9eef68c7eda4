package logging

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/procrag/internal/config"
)

// TraceLevel sits one below Debug and carries per-rule match output.
const TraceLevel = zapcore.DebugLevel - 1

// Config describes a Logger. Build one with NewDefaultConfig or
// FromConfig rather than from the zero value.
type Config struct {
	Level  zapcore.Level
	Format string // "console" or "json"

	Output     OutputConfig
	Sampling   SamplingConfig
	Caller     CallerConfig
	Stacktrace StacktraceConfig
	Redaction  RedactionConfig

	// Fields are attached to every entry.
	Fields map[string]string
}

// OutputConfig selects the sinks. Local output goes to stderr so that
// stdout stays free for command results.
type OutputConfig struct {
	Stderr bool
	OTEL   bool
}

// SamplingConfig keeps the first Initial entries per message and tick,
// then every Thereafter-th. It never applies to Error and above.
type SamplingConfig struct {
	Enabled    bool
	Tick       config.Duration
	Initial    int
	Thereafter int
}

// CallerConfig adds the calling file and line. Skip counts the frames
// inside this package.
type CallerConfig struct {
	Enabled bool
	Skip    int
}

type StacktraceConfig struct {
	Level zapcore.Level
}

// RedactionConfig masks whole fields by key and pattern matches inside
// string values and messages.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns the interactive CLI setup: console output at
// Info, sampling on, redaction of common credential fields.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "console",
		Output: OutputConfig{Stderr: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller:     CallerConfig{Skip: 2},
		Stacktrace: StacktraceConfig{Level: zapcore.ErrorLevel},
		Fields:     map[string]string{"service": "procrag"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields:  []string{"api_key", "authorization", "bearer", "credential", "password", "secret", "token"},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
				`\bsk-[A-Za-z0-9_-]{16,}`,
			},
		},
	}
}

// FromConfig applies the logging section of the config file to the
// defaults. Debug and below turn on caller info and turn off sampling.
func FromConfig(lc config.LoggingConfig) (*Config, error) {
	level, err := LevelFromString(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}

	cfg := NewDefaultConfig()
	cfg.Level = level
	cfg.Output.OTEL = lc.OTEL
	if lc.Format != "" {
		cfg.Format = lc.Format
	}
	if level <= zapcore.DebugLevel {
		cfg.Caller.Enabled = true
		cfg.Sampling.Enabled = false
	}
	return cfg, cfg.Validate()
}

// LevelFromString parses a Zap level name or "trace". "" is Info.
func LevelFromString(s string) (zapcore.Level, error) {
	switch s {
	case "":
		return zapcore.InfoLevel, nil
	case "trace":
		return TraceLevel, nil
	}
	var l zapcore.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

func (c *Config) Validate() error {
	switch {
	case c.Format != "json" && c.Format != "console":
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	case !c.Output.Stderr && !c.Output.OTEL:
		return errors.New("at least one output must be enabled (stderr or otel)")
	case c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0:
		return errors.New("sampling tick must be > 0 when sampling enabled")
	case c.Caller.Enabled && c.Caller.Skip < 0:
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip)
	}
	if _, err := newRedactor(c.Redaction); err != nil {
		return err
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("field %q: key and value must be non-empty", k)
		}
	}
	return nil
}
