package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/config"
)

var chromemTracer = otel.Tracer("procrag.vectorstore.chromem")

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	// Path is the persistence directory. Default: ~/.config/procrag/vectorstore
	Path string

	// Compress gzips the files under Path.
	Compress bool

	// Collection defaults to "procedures".
	Collection string

	// VectorSize must equal the embedder's dimension. Default: 384
	VectorSize int
}

func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/procrag/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "procedures"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore is a Store on chromem-go. Documents live in memory and
// every write is persisted under Path. Metadata round-trips as strings.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	config     ChromemConfig
	logger     *zap.Logger
}

var _ Store = (*ChromemStore)(nil)

func NewChromemStore(cfg ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	dir, err := config.ExpandPath(cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	db, err := chromem.NewPersistentDB(dir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB at %s: %w", dir, err)
	}

	s := &ChromemStore{db: db, embedder: embedder, config: cfg, logger: logger}

	// chromem-go defaults to OpenAI when the func is nil, so it is passed
	// even when the collection already exists.
	s.collection, err = db.GetOrCreateCollection(cfg.Collection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", cfg.Collection, err)
	}

	logger.Info("chromem store opened",
		zap.String("path", dir),
		zap.String("collection", cfg.Collection),
		zap.Int("vector_size", cfg.VectorSize),
		zap.Int("documents", s.collection.Count()),
	)
	return s, nil
}

func (s *ChromemStore) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	attrs = append(attrs, attribute.String("collection", s.config.Collection))
	return beginOp(ctx, chromemTracer, "chromem", "ChromemStore", op, attrs...)
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, end := s.begin(ctx, "add", attribute.Int("document_count", len(docs)))
	defer end(&err)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	ids = make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: document at index %d has no ID", ErrEmptyDocuments, i)
		}
		ids[i], texts[i] = d.ID, d.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}

	batch := make([]chromem.Document, len(docs))
	for i, d := range docs {
		batch[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  toStrings(d.Metadata),
			Embedding: vectors[i],
		}
	}
	// Embeddings are precomputed; one goroutine is enough.
	if err := s.collection.AddDocuments(ctx, batch, 1); err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Debug("added documents", zap.String("collection", s.config.Collection), zap.Int("count", len(docs)))
	return ids, nil
}

func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.SearchWithFilters(ctx, query, k, nil)
}

// SearchWithFilters clamps k to the collection size, which chromem
// requires.
func (s *ChromemStore) SearchWithFilters(ctx context.Context, query string, k int, filters Metadata) (results []SearchResult, err error) {
	ctx, end := s.begin(ctx, "search", attribute.Int("k", k), attribute.Int("filter_count", len(filters)))
	defer end(&err)

	if err := validateSearch(query, k); err != nil {
		return nil, err
	}
	n := s.collection.Count()
	if n == 0 {
		return []SearchResult{}, nil
	}
	k = min(k, n)

	found, err := s.collection.Query(ctx, query, k, toStrings(filters), nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	results = make([]SearchResult, len(found))
	for i, r := range found {
		results[i] = SearchResult{ID: r.ID, Content: r.Content, Score: r.Similarity, Metadata: fromStrings(r.Metadata)}
	}
	s.logger.Debug("searched collection",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (s *ChromemStore) DeleteByFilter(ctx context.Context, filters Metadata) (err error) {
	ctx, end := s.begin(ctx, "delete_filter", attribute.Int("filter_count", len(filters)))
	defer end(&err)

	if len(filters) == 0 {
		return ErrEmptyFilter
	}
	before := s.collection.Count()
	if err := s.collection.Delete(ctx, toStrings(filters), nil); err != nil {
		return fmt.Errorf("deleting by filter: %w", err)
	}
	s.logger.Debug("deleted documents by filter",
		zap.Any("filters", filters),
		zap.Int("removed", before-s.collection.Count()),
	)
	return nil
}

func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op; chromem-go persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Debug("chromem store closed", zap.String("collection", s.config.Collection))
	return nil
}

func toStrings(m Metadata) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case string:
			out[k] = v
		case int:
			out[k] = strconv.Itoa(v)
		case int64:
			out[k] = strconv.FormatInt(v, 10)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func fromStrings(m map[string]string) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
