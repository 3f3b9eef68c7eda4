package vectorstore

import (
	"context"
	"errors"
)

var (
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmptyDocuments is returned by AddDocuments for an empty batch or
	// a document without an ID.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmptyFilter is returned by DeleteByFilter without conditions, so
	// a missing filter never wipes the collection.
	ErrEmptyFilter = errors.New("filter must have at least one condition")

	ErrEmbeddingFailed  = errors.New("failed to generate embeddings")
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")
)

// Metadata is a flat map of scalar values (string, int, int64, float64,
// bool). Backends that store strings only hand every value back as a
// string. Filters use the same shape and match on equality.
type Metadata = map[string]any

// Embedder turns text into vectors. Queries and documents are embedded
// separately because some models prefix them differently.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is one vector collection. ChromemStore is embedded and persists
// to disk; QdrantStore talks gRPC to a Qdrant server.
type Store interface {
	// AddDocuments embeds docs and upserts them by ID.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns at most k documents, most similar first.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// SearchWithFilters is Search over documents whose metadata equals
	// every entry of filters.
	SearchWithFilters(ctx context.Context, query string, k int, filters Metadata) ([]SearchResult, error)

	// DeleteByFilter removes every document matching all filter entries.
	DeleteByFilter(ctx context.Context, filters Metadata) error

	Count(ctx context.Context) (int, error)
	Close() error
}
