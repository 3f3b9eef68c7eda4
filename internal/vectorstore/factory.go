package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/procrag/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a Store based on the configuration.
//
// The VectorStore.Provider field selects the implementation:
//   - "chromem" (default): embedded ChromemStore, no external services
//   - "qdrant": QdrantStore over gRPC, requires a running Qdrant server
//
// indexedFields get keyword payload indexes on Qdrant and are ignored by
// chromem.
func NewStore(cfg *config.Config, embedder Embedder, logger *zap.Logger, indexedFields ...string) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: cfg.Chromem.Collection,
			VectorSize: cfg.Chromem.VectorSize,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			CollectionName: cfg.Qdrant.Collection,
			VectorSize:     cfg.Qdrant.VectorSize,
			UseTLS:         cfg.Qdrant.UseTLS,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			IndexedFields:  indexedFields,
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider: %s (supported: chromem, qdrant)", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
