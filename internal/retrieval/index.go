package retrieval

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/vectorstore"
	"go.uber.org/zap"
)

// Hint is metadata an Index may use to pre-filter. The gateway still
// post-filters everything it gets back.
type Hint struct {
	Category document.Category
}

// Candidates is one similarity-ordered page from an Index.
type Candidates struct {
	Documents []document.StructuredDocument

	// Exhausted is true when the index returned fewer documents than
	// requested, so asking for more cannot help.
	Exhausted bool
}

// Index is a similarity-search backend over structured documents.
type Index interface {
	Add(ctx context.Context, docs []document.StructuredDocument) error
	Search(ctx context.Context, text string, n int, hint Hint) (Candidates, error)
}

// VectorIndex adapts a vectorstore.Store to Index using the document
// metadata codec.
type VectorIndex struct {
	store  vectorstore.Store
	logger *zap.Logger
}

// IndexedFields are the metadata keys worth a payload index.
var IndexedFields = []string{document.MetaSourceID, document.MetaCategory}

// NewVectorIndex wraps store.
func NewVectorIndex(store vectorstore.Store, logger *zap.Logger) *VectorIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorIndex{store: store, logger: logger}
}

// Add encodes and stores docs. Unit IDs make re-adding idempotent.
func (v *VectorIndex) Add(ctx context.Context, docs []document.StructuredDocument) error {
	if len(docs) == 0 {
		return nil
	}
	out := make([]vectorstore.Document, len(docs))
	for i, doc := range docs {
		meta, err := document.EncodeMetadata(doc)
		if err != nil {
			return err
		}
		out[i] = vectorstore.Document{ID: doc.ID(), Content: doc.Text(), Metadata: meta}
	}
	if _, err := v.store.AddDocuments(ctx, out); err != nil {
		return fmt.Errorf("indexing %d units: %w", len(docs), err)
	}
	return nil
}

// Search returns up to n documents ordered by similarity.
func (v *VectorIndex) Search(ctx context.Context, text string, n int, hint Hint) (Candidates, error) {
	var filters vectorstore.Metadata
	if hint.Category != "" {
		filters = vectorstore.Metadata{document.MetaCategory: string(hint.Category)}
	}

	results, err := v.store.SearchWithFilters(ctx, text, n, filters)
	if err != nil {
		return Candidates{}, err
	}

	docs := make([]document.StructuredDocument, 0, len(results))
	for _, r := range results {
		doc, err := document.DecodeMetadata(r.Content, r.Metadata)
		if err != nil {
			// A foreign or corrupt point must not hide the rest of the page.
			v.logger.Warn("skipping undecodable index entry", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	return Candidates{Documents: docs, Exhausted: len(results) < n}, nil
}

// RemoveSource deletes every unit of a source document.
func (v *VectorIndex) RemoveSource(ctx context.Context, sourceID string) error {
	if err := v.store.DeleteByFilter(ctx, vectorstore.Metadata{document.MetaSourceID: sourceID}); err != nil {
		return fmt.Errorf("removing units of %s: %w", sourceID, err)
	}
	return nil
}

// Count returns the number of indexed units.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	return v.store.Count(ctx)
}

var _ Index = (*VectorIndex)(nil)
