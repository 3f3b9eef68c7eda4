// Package config provides configuration loading for procrag.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete procrag configuration.
type Config struct {
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Extraction  ExtractionConfig  `koanf:"extraction"`
	Catalog     CatalogConfig     `koanf:"catalog"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`
}

// ChromemConfig holds settings for the embedded chromem-go store.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
}

// QdrantConfig holds settings for an external Qdrant server (gRPC).
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	VectorSize uint64 `koanf:"vector_size"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     Secret `koanf:"api_key"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX, default) or "openai".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"`

	// RateLimit caps embedding requests per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// RetrievalConfig holds gateway tuning.
type RetrievalConfig struct {
	TopK         int      `koanf:"top_k"`
	OverFetch    int      `koanf:"over_fetch"`
	MaxDeepening int      `koanf:"max_deepening"`
	Timeout      Duration `koanf:"timeout"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	MaxWorkers    int      `koanf:"max_workers"`
	BatchSize     int      `koanf:"batch_size"`
	MaxFileSizeMB int64    `koanf:"max_file_size_mb"`
	Debounce      Duration `koanf:"debounce"`
}

// ExtractionConfig points at an optional locale rule table.
type ExtractionConfig struct {
	// RulesFile is a TOML rule table replacing the built-in Japanese/English rules.
	RulesFile     string `koanf:"rules_file"`
	SnippetRadius int    `koanf:"snippet_radius"`
}

// CatalogConfig holds the document catalog location.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig is the file-level view of logging settings.
// cmd/procrag maps it onto logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig is the file-level view of OpenTelemetry settings.
// cmd/procrag maps it onto telemetry.Config.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.VectorStore.Provider {
	case "chromem":
		if strings.TrimSpace(c.Chromem.Path) == "" {
			return fmt.Errorf("%w: chromem.path is required", ErrInvalidConfig)
		}
		if c.Chromem.VectorSize <= 0 {
			return fmt.Errorf("%w: chromem.vector_size must be positive", ErrInvalidConfig)
		}
	case "qdrant":
		if c.Qdrant.Host == "" {
			return fmt.Errorf("%w: qdrant.host is required", ErrInvalidConfig)
		}
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: qdrant.port %d out of range", ErrInvalidConfig, c.Qdrant.Port)
		}
	default:
		return fmt.Errorf("%w: unknown vectorstore provider %q (supported: chromem, qdrant)", ErrInvalidConfig, c.VectorStore.Provider)
	}

	switch c.Embeddings.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("%w: unknown embeddings provider %q (supported: fastembed, openai)", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if c.Embeddings.RateLimit < 0 {
		return fmt.Errorf("%w: embeddings.rate_limit cannot be negative", ErrInvalidConfig)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive, got %d", ErrInvalidConfig, c.Retrieval.TopK)
	}
	if c.Retrieval.OverFetch <= 0 {
		return fmt.Errorf("%w: retrieval.over_fetch must be positive, got %d", ErrInvalidConfig, c.Retrieval.OverFetch)
	}
	if c.Retrieval.MaxDeepening < 0 {
		return fmt.Errorf("%w: retrieval.max_deepening cannot be negative", ErrInvalidConfig)
	}

	if c.Ingest.MaxWorkers <= 0 {
		return fmt.Errorf("%w: ingest.max_workers must be positive, got %d", ErrInvalidConfig, c.Ingest.MaxWorkers)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("%w: ingest.batch_size must be positive, got %d", ErrInvalidConfig, c.Ingest.BatchSize)
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		return fmt.Errorf("%w: ingest.max_file_size_mb must be positive", ErrInvalidConfig)
	}

	if c.Extraction.SnippetRadius < 0 {
		return fmt.Errorf("%w: extraction.snippet_radius cannot be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Catalog.Path) == "" {
		return fmt.Errorf("%w: catalog.path is required", ErrInvalidConfig)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("%w: telemetry.sample_rate must be between 0 and 1", ErrInvalidConfig)
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("%w: telemetry.protocol must be grpc or http/protobuf, got %q", ErrInvalidConfig, c.Telemetry.Protocol)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}

	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "~/.config/procrag/vectorstore"
	}
	if cfg.Chromem.Collection == "" {
		cfg.Chromem.Collection = "procedures"
	}
	if cfg.Chromem.VectorSize == 0 {
		cfg.Chromem.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "procedures"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 384
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		if cfg.Embeddings.Provider == "openai" {
			cfg.Embeddings.Model = "text-embedding-3-small"
		} else {
			cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
		}
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = "~/.config/procrag/models"
	}
	if cfg.Embeddings.Burst == 0 {
		cfg.Embeddings.Burst = 1
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.OverFetch == 0 {
		cfg.Retrieval.OverFetch = 3
	}
	if cfg.Retrieval.MaxDeepening == 0 {
		cfg.Retrieval.MaxDeepening = 1
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = Duration(10 * time.Second)
	}

	if cfg.Ingest.MaxWorkers == 0 {
		cfg.Ingest.MaxWorkers = 3
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 64
	}
	if cfg.Ingest.MaxFileSizeMB == 0 {
		cfg.Ingest.MaxFileSizeMB = 100
	}
	if cfg.Ingest.Debounce == 0 {
		cfg.Ingest.Debounce = Duration(500 * time.Millisecond)
	}

	if cfg.Extraction.SnippetRadius == 0 {
		cfg.Extraction.SnippetRadius = 40
	}

	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "~/.config/procrag/catalog.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "procrag"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}
