package vectorstore_test

import (
	"context"
	"hash/fnv"
	"math"
	"testing"

	"github.com/fyrsmithlabs/procrag/internal/vectorstore"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hashEmbedder builds normalized bag-of-runes vectors. Identical texts get
// identical vectors, and texts sharing characters score higher.
type hashEmbedder struct {
	dim int
}

func (e *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *hashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, r := range text {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(r)))
		vec[h.Sum32()%uint32(e.dim)]++
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

const testVectorSize = 64

func newTestChromemStore(t *testing.T) (*vectorstore.ChromemStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       dir,
		Collection: "test_procedures",
		VectorSize: testVectorSize,
	}, &hashEmbedder{dim: testVectorSize}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func seedDocuments() []vectorstore.Document {
	return []vectorstore.Document{
		{ID: "manual#0", Content: "概要 この装置の説明", Metadata: vectorstore.Metadata{"source_id": "manual", "category": "overview"}},
		{ID: "manual#1", Content: "手順1 電源を切る", Metadata: vectorstore.Metadata{"source_id": "manual", "category": "procedure", "step_min": 1}},
		{ID: "manual#2", Content: "危険 高電圧", Metadata: vectorstore.Metadata{"source_id": "manual", "category": "warning"}},
		{ID: "guide#0", Content: "手順2 バルブを閉じる", Metadata: vectorstore.Metadata{"source_id": "guide", "category": "procedure", "step_min": 2}},
	}
}
