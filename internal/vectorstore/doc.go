// Package vectorstore provides vector storage for indexed procedure units.
//
// A Store owns one collection and supports embedding-backed similarity
// search restricted by exact metadata matches. Two implementations exist:
//
//   - ChromemStore: embedded chromem-go, persisted to disk (default)
//   - QdrantStore: external Qdrant server over gRPC
//
// # Usage
//
//	store, err := vectorstore.NewStore(cfg, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_, err = store.AddDocuments(ctx, []vectorstore.Document{{
//	    ID:       "manual.pdf#3",
//	    Content:  "手順2 バルブを閉じる",
//	    Metadata: vectorstore.Metadata{"category": "procedure"},
//	}})
//
//	results, err := store.SearchWithFilters(ctx, "バルブ", 9,
//	    vectorstore.Metadata{"category": "procedure"})
//
// # Metadata
//
// Metadata values are flat scalars. ChromemStore stores everything as
// strings, so callers decoding metadata must accept string-typed numbers.
// QdrantStore preserves integer, float and bool payloads.
//
// # Document IDs
//
// Adding a document whose ID already exists replaces it. QdrantStore maps
// IDs to deterministic UUIDv5 point IDs (see PointID) so re-ingestion
// upserts instead of duplicating.
//
// # Observability
//
// Every operation opens an OpenTelemetry span and records
// procrag_vectorstore_operations_total and
// procrag_vectorstore_operation_duration_seconds.
package vectorstore
