package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// TestProvider is a deterministic, model-free Provider for tests. Each rune
// is hashed into one of Dim buckets and the counts are L2-normalized, so
// identical texts embed identically and texts sharing characters score
// closer together.
type TestProvider struct {
	Dim int

	calls atomic.Int64
}

// NewTestProvider creates a TestProvider with dimension dim.
func NewTestProvider(dim int) *TestProvider {
	return &TestProvider{Dim: dim}
}

// EmbedDocuments embeds each text.
func (p *TestProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.embed(text)
	}
	return out, nil
}

// EmbedQuery embeds text.
func (p *TestProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	return p.embed(text), nil
}

// Calls returns how many embedding calls were made.
func (p *TestProvider) Calls() int64 {
	return p.calls.Load()
}

// Dimension returns Dim.
func (p *TestProvider) Dimension() int {
	return p.Dim
}

// Close is a no-op.
func (p *TestProvider) Close() error {
	return nil
}

func (p *TestProvider) embed(text string) []float32 {
	vec := make([]float32, p.Dim)
	for _, r := range text {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(r)))
		vec[h.Sum32()%uint32(p.Dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
