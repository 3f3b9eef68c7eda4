package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var qdrantTracer = otel.Tracer("procrag.vectorstore.qdrant")

// Payload keys reserved for the document itself.
const (
	payloadContent = "content"
	payloadID      = "id"
)

const (
	maxSearchK      = 10000
	connectTimeout  = 10 * time.Second
	defaultMsgBytes = 50 << 20
)

// pointNamespace makes PointID deterministic, so re-adding a unit
// overwrites its point.
var pointNamespace = uuid.MustParse("6f1f7a52-2c8e-4f0e-9a57-3f1b8e0c2d41")

// PointID maps a document ID to its UUIDv5 Qdrant point ID.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// QdrantConfig configures the gRPC client and collection.
type QdrantConfig struct {
	Host string // default localhost
	Port int    // gRPC port, default 6334 (6333 is REST)

	CollectionName string

	// VectorSize must equal the embedder's dimension.
	VectorSize uint64

	// Distance defaults to cosine.
	Distance qdrant.Distance

	UseTLS bool
	APIKey string

	// IndexedFields get keyword payload indexes when the collection is
	// created.
	IndexedFields []string

	// MaxRetries bounds retries of transient gRPC failures. Default: 3
	MaxRetries int

	// RetryBackoff is the first wait between retries; it doubles on each
	// attempt. Default: 1s
	RetryBackoff time.Duration

	// MaxMessageSize caps gRPC messages in both directions. Default: 50 MiB
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of consecutive transient
	// failures that opens the breaker for 30s. Default: 5
	CircuitBreakerThreshold int
}

func (c QdrantConfig) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	case c.CollectionName == "":
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	case c.VectorSize == 0:
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaultMsgBytes
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// QdrantStore is a Store on a Qdrant server. Every call is retried on
// transient gRPC errors behind a shared circuit breaker.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	breaker  *breaker
	logger   *zap.Logger
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore connects, checks server health and creates the
// collection with its payload indexes when it does not exist.
func NewQdrantStore(cfg QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
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
	if err := ValidateCollectionName(cfg.CollectionName); err != nil {
		return nil, err
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant connection is not encrypted", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
			grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
		)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   cfg,
		breaker:  newBreaker(cfg.CircuitBreakerThreshold),
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store opened",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.String("collection", cfg.CollectionName),
		zap.Uint64("vector_size", cfg.VectorSize),
	)
	return s, nil
}

func (s *QdrantStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *QdrantStore) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	attrs = append(attrs, attribute.String("collection", s.config.CollectionName))
	return beginOp(ctx, qdrantTracer, "qdrant", "QdrantStore", op, attrs...)
}

func (s *QdrantStore) retry(ctx context.Context, op string, fn func() error) error {
	return retry(ctx, s.breaker, op, s.config.MaxRetries, s.config.RetryBackoff, fn)
}

func (s *QdrantStore) ensureCollection(ctx context.Context) (err error) {
	ctx, end := s.begin(ctx, "ensure_collection")
	defer end(&err)

	name := s.config.CollectionName
	var exists bool
	if err := s.retry(ctx, "collection_exists", func() (err error) {
		exists, err = s.client.CollectionExists(ctx, name)
		return err
	}); err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	if err := s.retry(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: s.config.Distance,
			}),
		})
	}); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	for _, field := range s.config.IndexedFields {
		// Filtering still works without an index, only slower.
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		}); err != nil {
			s.logger.Warn("creating payload index failed", zap.String("field", field), zap.Error(err))
		}
	}
	s.logger.Info("created qdrant collection", zap.String("collection", name), zap.Strings("indexed_fields", s.config.IndexedFields))
	return nil
}

func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, end := s.begin(ctx, "add", attribute.Int("document_count", len(docs)))
	defer end(&err)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: document at index %d has no ID", ErrEmptyDocuments, i)
		}
		texts[i] = d.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}

	ids = make([]string, len(docs))
	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(d.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: toPayload(d),
		}
	}

	if err := s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.CollectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}); err != nil {
		return nil, fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	return ids, nil
}

func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.SearchWithFilters(ctx, query, k, nil)
}

// SearchWithFilters caps k at 10000.
func (s *QdrantStore) SearchWithFilters(ctx context.Context, query string, k int, filters Metadata) (results []SearchResult, err error) {
	ctx, end := s.begin(ctx, "search", attribute.Int("k", k), attribute.Int("filter_count", len(filters)))
	defer end(&err)

	if err := validateSearch(query, k); err != nil {
		return nil, err
	}
	k = min(k, maxSearchK)

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var points []*qdrant.ScoredPoint
	if err := s.retry(ctx, "search", func() (err error) {
		points, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.CollectionName,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			Filter:         buildFilter(filters),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	}); err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", s.config.CollectionName, err)
	}

	results = make([]SearchResult, len(points))
	for i, p := range points {
		results[i] = fromPayload(p.Payload, p.Score)
	}
	return results, nil
}

func (s *QdrantStore) DeleteByFilter(ctx context.Context, filters Metadata) (err error) {
	ctx, end := s.begin(ctx, "delete_filter", attribute.Int("filter_count", len(filters)))
	defer end(&err)

	filter := buildFilter(filters)
	if filter == nil {
		return ErrEmptyFilter
	}
	if err := s.deletePoints(ctx, "delete_filter", qdrant.NewPointsSelectorFilter(filter)); err != nil {
		return fmt.Errorf("deleting by filter: %w", err)
	}
	return nil
}

func (s *QdrantStore) deletePoints(ctx context.Context, op string, sel *qdrant.PointsSelector) error {
	return s.retry(ctx, op, func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.CollectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         sel,
		})
		return err
	})
}

// Count returns the exact point count.
func (s *QdrantStore) Count(ctx context.Context) (n int, err error) {
	ctx, end := s.begin(ctx, "count")
	defer end(&err)

	var c uint64
	if err := s.retry(ctx, "count", func() (err error) {
		c, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.CollectionName,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	}); err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(c), nil
}

// toPayload stores content and ID next to the metadata. Unknown value
// types are stored as their string form.
func toPayload(doc Document) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		payload[k] = payloadValue(v)
	}
	payload[payloadContent] = stringValue(doc.Content)
	payload[payloadID] = stringValue(doc.ID)
	return payload
}

func payloadValue(v any) *qdrant.Value {
	switch v := v.(type) {
	case string:
		return stringValue(v)
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}
	}
	return stringValue(fmt.Sprint(v))
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func fromPayload(payload map[string]*qdrant.Value, score float32) SearchResult {
	r := SearchResult{Score: score, Metadata: make(Metadata, len(payload))}
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			switch k {
			case payloadContent:
				r.Content = kind.StringValue
			case payloadID:
				r.ID = kind.StringValue
			default:
				r.Metadata[k] = kind.StringValue
			}
		case *qdrant.Value_IntegerValue:
			r.Metadata[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			r.Metadata[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			r.Metadata[k] = kind.BoolValue
		}
	}
	return r
}

// buildFilter ANDs one match condition per filter entry. Floats cannot
// be matched exactly and are skipped. It returns nil for no conditions.
func buildFilter(filters Metadata) *qdrant.Filter {
	var must []*qdrant.Condition
	for key, value := range filters {
		switch v := value.(type) {
		case string:
			must = append(must, qdrant.NewMatchKeyword(key, v))
		case int:
			must = append(must, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(key, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(key, v))
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}
