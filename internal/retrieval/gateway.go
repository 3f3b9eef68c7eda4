package retrieval

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fyrsmithlabs/procrag/internal/document"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	DefaultOverFetch    = 3
	DefaultMaxDeepening = 1
	DefaultTimeout      = 10 * time.Second
)

// Config tunes the gateway.
type Config struct {
	// OverFetch multiplies top_k on the first index request, and again on
	// each deepening.
	OverFetch int

	// MaxDeepening bounds how many deeper re-queries follow the first one.
	MaxDeepening int

	// Timeout applies to each index call.
	Timeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.OverFetch <= 0 {
		c.OverFetch = DefaultOverFetch
	}
	if c.MaxDeepening < 0 {
		c.MaxDeepening = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Gateway serves filtered, similarity-ordered queries over an Index.
// It holds no mutable state and is safe for concurrent use.
type Gateway struct {
	index  Index
	config Config
	logger *zap.Logger
}

// NewGateway creates a gateway over index.
func NewGateway(index Index, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Gateway{index: index, config: cfg, logger: logger}
}

// Query returns at most topK documents matching filter, most similar
// first. A short or empty result is not an error; RetrievalError is
// returned only for a non-positive topK or an index failure.
func (g *Gateway) Query(ctx context.Context, text string, filter Filter, topK int) (docs []document.StructuredDocument, err error) {
	ctx, span := otel.Tracer("procrag.retrieval").Start(ctx, "Gateway.Query")
	defer span.End()

	start := time.Now()
	defer func() {
		QueryDuration.Observe(time.Since(start).Seconds())
		result := "success"
		switch {
		case errors.Is(err, ErrInvalidTopK):
			result = "invalid"
		case err != nil:
			result = "error"
		}
		QueriesTotal.WithLabelValues(result).Inc()
	}()

	span.SetAttributes(
		attribute.Int("top_k", topK),
		attribute.Int("category_count", len(filter.Categories)),
		attribute.Bool("step_filter", filter.StepRange != nil),
	)

	if topK <= 0 {
		err = &RetrievalError{Query: text, TopK: topK, Err: ErrInvalidTopK}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if filter.StepRange != nil && filter.StepRange.Empty() {
		span.SetStatus(codes.Ok, "empty step range")
		return []document.StructuredDocument{}, nil
	}

	hint := filter.hint()
	n := saturatingMul(topK, g.config.OverFetch)

	for depth := 0; ; depth++ {
		cands, searchErr := g.search(ctx, text, n, hint)
		if searchErr != nil {
			err = &RetrievalError{Query: text, TopK: topK, Err: searchErr}
			span.RecordError(searchErr)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		kept, byCategory, bySteps := filter.apply(cands.Documents)
		FilteredOutTotal.WithLabelValues("category").Add(float64(byCategory))
		FilteredOutTotal.WithLabelValues("step_range").Add(float64(bySteps))

		g.logger.Debug("retrieval pass",
			zap.Int("depth", depth),
			zap.Int("requested", n),
			zap.Int("candidates", len(cands.Documents)),
			zap.Int("kept", len(kept)),
			zap.Int("dropped_category", byCategory),
			zap.Int("dropped_steps", bySteps),
			zap.Bool("exhausted", cands.Exhausted),
		)

		if len(kept) >= topK || cands.Exhausted || depth >= g.config.MaxDeepening {
			if len(kept) > topK {
				kept = kept[:topK]
			}
			span.SetAttributes(
				attribute.Int("depth", depth),
				attribute.Int("results_count", len(kept)),
			)
			span.SetStatus(codes.Ok, "success")
			return kept, nil
		}

		DeepeningsTotal.Inc()
		n = saturatingMul(n, g.config.OverFetch)
	}
}

// saturatingMul returns a*b for positive operands, capped at math.MaxInt.
func saturatingMul(a, b int) int {
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

// search runs one index call under the configured timeout.
func (g *Gateway) search(ctx context.Context, text string, n int, hint Hint) (Candidates, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	cands, err := g.index.Search(ctx, text, n, hint)
	if err == nil && ctx.Err() != nil {
		// The index ignored the deadline; treat a late answer as a timeout.
		err = ctx.Err()
	}
	return cands, err
}
