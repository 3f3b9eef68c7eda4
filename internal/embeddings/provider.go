package embeddings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/procrag/internal/config"
	"github.com/fyrsmithlabs/procrag/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed" or "openai"
	Provider string
	// Model is the embedding model name
	Model string
	// BaseURL overrides the OpenAI API endpoint (only used for openai)
	BaseURL string
	// APIKey authenticates against the OpenAI API (only used for openai)
	APIKey string
	// CacheDir is the model cache directory (only used for FastEmbed)
	CacheDir string
	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
	// Burst is the limiter bucket size.
	Burst int
}

// FromConfig maps the application configuration onto a ProviderConfig.
func FromConfig(cfg config.EmbeddingsConfig) (ProviderConfig, error) {
	cacheDir, err := config.ExpandPath(cfg.CacheDir)
	if err != nil {
		return ProviderConfig{}, err
	}
	return ProviderConfig{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey.Value(),
		CacheDir:  cacheDir,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}, nil
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	if dim, ok := openAIModelDimensions[model]; ok {
		return dim
	}
	switch {
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	default:
		return 384
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "openai":
		p, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimension", p.Dimension()),
	)

	if cfg.RateLimit > 0 {
		p = NewRateLimited(p, cfg.RateLimit, cfg.Burst)
	}
	return p, nil
}
