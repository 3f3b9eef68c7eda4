package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/procrag/internal/config"
)

const (
	redactedValue    = "[REDACTED]"
	maxPatternLength = 200
)

// Secret logs only the length of a config.Secret.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as [REDACTED:<len>].
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// redactor holds compiled redaction rules. The zero value redacts nothing.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (redactor, error) {
	if !cfg.Enabled {
		return redactor{}, nil
	}
	r := redactor{keys: make(map[string]struct{}, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		r.keys[strings.ToLower(f)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLength {
			return redactor{}, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLength, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return redactor{}, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r redactor) empty() bool { return len(r.keys) == 0 && len(r.patterns) == 0 }

func (r redactor) key(k string) bool {
	_, ok := r.keys[strings.ToLower(k)]
	return ok
}

func (r redactor) text(s string) string {
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, redactedValue)
	}
	return s
}

func (r redactor) field(f zapcore.Field) zapcore.Field {
	switch {
	case r.key(f.Key):
		return zap.String(f.Key, redactedValue)
	case f.Type == zapcore.StringType:
		f.String = r.text(f.String)
	}
	return f
}

// RedactingEncoder masks fields whose key is listed in
// RedactionConfig.Fields and rewrites pattern matches inside string
// values and messages. Fields added through Logger.With reach the Add*
// methods; per-call fields reach EncodeEntry.
type RedactingEncoder struct {
	zapcore.Encoder
	rules redactor
}

// NewRedactingEncoder wraps base. It fails when a pattern does not
// compile or is longer than 200 characters.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	rules, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, rules: rules}, nil
}

func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if e.rules.empty() {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	masked := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		masked[i] = e.rules.field(f)
	}
	ent.Message = e.rules.text(ent.Message)
	return e.Encoder.EncodeEntry(ent, masked)
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.rules.key(key) {
		val = redactedValue
	} else {
		val = e.rules.text(val)
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.rules.key(key) {
		val = []byte(redactedValue)
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.rules.key(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.rules.key(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
}
