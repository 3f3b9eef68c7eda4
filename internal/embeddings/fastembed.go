//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

const (
	defaultCacheDir  = "local_cache"
	defaultMaxLength = 512
	passageBatchSize = 256
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is a Hugging Face name such as BAAI/bge-small-en-v1.5 or a
	// fastembed ID such as fast-bge-small-en-v1.5.
	Model string

	// CacheDir holds downloaded models. An ONNX runtime found under
	// CacheDir/lib is used when ONNX_PATH is unset. Default: ./local_cache
	CacheDir string

	// MaxLength is the maximum input sequence length. Default: 512
	MaxLength int
}

// FastEmbedProvider embeds text with a local ONNX model. Documents use
// the BGE "passage: " prefix and queries the "query: " prefix.
type FastEmbedProvider struct {
	mu      sync.RWMutex
	model   *fastembed.FlagEmbedding
	name    string
	dim     int
	metrics *Metrics
}

// NewFastEmbedProvider loads the model, downloading it on first use.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	known, ok := fastEmbedModels[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q (supported: %s)", ErrInvalidConfig, cfg.Model, supportedModels())
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}
	if lib := LibraryPath(filepath.Join(cacheDir, "lib")); lib != "" {
		if err := os.Setenv("ONNX_PATH", lib); err != nil {
			return nil, fmt.Errorf("setting ONNX_PATH: %w", err)
		}
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}

	quiet := false
	model, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                fastembed.EmbeddingModel(known.ID),
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	return &FastEmbedProvider{
		model:   model,
		name:    cfg.Model,
		dim:     known.Dimension,
		metrics: NewMetrics(nil),
	}, nil
}

// supportedModels lists the Hugging Face names, sorted.
func supportedModels() string {
	var names []string
	for name, m := range fastEmbedModels {
		if name != m.ID {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// EmbedDocuments embeds texts as passages.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer p.metrics.observe(ctx, p.name, opEmbedDocuments, len(texts))(&err)

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	err = p.withModel(ctx, func(m *fastembed.FlagEmbedding) error {
		var embedErr error
		vectors, embedErr = m.PassageEmbed(texts, passageBatchSize)
		return embedErr
	})
	return vectors, err
}

// EmbedQuery embeds text as a query.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	defer p.metrics.observe(ctx, p.name, opEmbedQuery, 1)(&err)

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	err = p.withModel(ctx, func(m *fastembed.FlagEmbedding) error {
		var embedErr error
		vector, embedErr = m.QueryEmbed(text)
		return embedErr
	})
	return vector, err
}

// withModel runs fn under the read lock unless ctx is done or the
// provider is closed. fn errors are wrapped with ErrEmbeddingFailed.
func (p *FastEmbedProvider) withModel(ctx context.Context, fn func(*fastembed.FlagEmbedding) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}
	if err := fn(p.model); err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return nil
}

// Dimension returns the model's vector size.
func (p *FastEmbedProvider) Dimension() int {
	return p.dim
}

// Close releases the ONNX session. Later calls fail with ErrEmbeddingFailed.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}
