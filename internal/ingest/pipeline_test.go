package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/extraction"
	"github.com/fyrsmithlabs/procrag/internal/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]document.StructuredDocument
	batches map[string][]int
	removed []string
	addErr  error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: map[string]document.StructuredDocument{}, batches: map[string][]int{}}
}

func (f *fakeIndex) Add(ctx context.Context, docs []document.StructuredDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for _, d := range docs {
		f.docs[d.ID()] = d
	}
	if len(docs) > 0 {
		src := docs[0].Unit.SourceID
		f.batches[src] = append(f.batches[src], len(docs))
	}
	return nil
}

func (f *fakeIndex) RemoveSource(ctx context.Context, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, sourceID)
	for id, d := range f.docs {
		if d.Unit.SourceID == sourceID {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeIndex) ids(sourceID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, d := range f.docs {
		if d.Unit.SourceID == sourceID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

type fixture struct {
	dir      string
	index    *fakeIndex
	catalog  *catalog.Catalog
	pipeline *Pipeline
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	idx := newFakeIndex()
	return &fixture{
		dir:      t.TempDir(),
		index:    idx,
		catalog:  cat,
		pipeline: NewPipeline(document.NewBuilder(extraction.Default()), idx, cat, cfg, nil),
	}
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const pumpManual = "ポンプ保守\n\n手順1 電源を切る\n手順2 バルブを閉じる\n\n危険 高電圧\n"

func TestPipeline_IngestDirectory(t *testing.T) {
	f := newFixture(t, Config{})
	f.write(t, "pump.txt", pumpManual)
	f.write(t, "sub/valve.md", "# Valve\n\nStep 1 open the valve.\n")
	f.write(t, ".hidden.txt", "secret")
	f.write(t, "photo.png", "png")

	report := f.pipeline.Ingest(context.Background(), f.dir)
	assert.Equal(t, 2, report.Ingested)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 4, report.Units)
	require.Len(t, report.Files, 2)
	assert.Equal(t, "pump.txt", report.Files[0].SourceID)
	assert.Equal(t, "valve.md", report.Files[1].SourceID)
	assert.Equal(t, map[string]int{"overview": 1, "procedure": 1, "warning": 1}, report.Files[0].Categories)

	assert.Equal(t, []string{"pump.txt#0", "pump.txt#1", "pump.txt#2"}, f.index.ids("pump.txt"))

	entry, err := f.catalog.Get("pump.txt")
	require.NoError(t, err)
	assert.Equal(t, "txt", entry.Format)
	assert.Equal(t, 3, entry.Units)
	assert.Len(t, entry.ContentHash, 64)
	assert.Equal(t, filepath.Join(f.dir, "pump.txt"), entry.Path)
}

func TestPipeline_PreservesUnitOrder(t *testing.T) {
	f := newFixture(t, Config{})
	path := f.write(t, "pump.txt", pumpManual)

	f.pipeline.Ingest(context.Background(), path)
	d := f.index.docs["pump.txt#1"]
	assert.Equal(t, 1, d.Unit.Index)
	assert.Equal(t, []int{1, 2}, d.Extraction.StepNumbers)
	assert.Equal(t, document.CategoryProcedure, d.Category)
}

func TestPipeline_Batches(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2})
	path := f.write(t, "five.txt", "a\n\nb\n\nc\n\nd\n\ne")

	report := f.pipeline.Ingest(context.Background(), path)
	require.Equal(t, 1, report.Ingested)
	assert.Equal(t, []int{2, 2, 1}, f.index.batches["five.txt"])
}

func TestPipeline_SkipsUnchanged(t *testing.T) {
	f := newFixture(t, Config{})
	path := f.write(t, "pump.txt", pumpManual)
	ctx := context.Background()

	first := f.pipeline.Ingest(ctx, path)
	require.Equal(t, 1, first.Ingested)

	second := f.pipeline.Ingest(ctx, path)
	assert.Equal(t, 0, second.Ingested)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, StatusSkipped, second.Files[0].Status)
	assert.Equal(t, []int{3}, f.index.batches["pump.txt"])
	assert.Empty(t, f.index.removed)
}

func TestPipeline_ReingestChangedReplacesUnits(t *testing.T) {
	f := newFixture(t, Config{})
	path := f.write(t, "pump.txt", pumpManual)
	ctx := context.Background()

	f.pipeline.Ingest(ctx, path)
	_, err := f.catalog.SetLabels("pump.txt", map[string]string{"site": "osaka"}, nil)
	require.NoError(t, err)

	f.write(t, "pump.txt", "手順1 だけ")
	report := f.pipeline.Ingest(ctx, path)
	require.Equal(t, 1, report.Ingested)
	assert.True(t, report.Files[0].Replaced)
	assert.Equal(t, []string{"pump.txt"}, f.index.removed)
	assert.Equal(t, []string{"pump.txt#0"}, f.index.ids("pump.txt"))

	entry, err := f.catalog.Get("pump.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Units)
	assert.Equal(t, "osaka", entry.Labels["site"])
}

func TestPipeline_Force(t *testing.T) {
	f := newFixture(t, Config{Force: true})
	path := f.write(t, "pump.txt", pumpManual)
	ctx := context.Background()

	f.pipeline.Ingest(ctx, path)
	report := f.pipeline.Ingest(ctx, path)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, []string{"pump.txt"}, f.index.removed)
}

func TestPipeline_PerFileFailures(t *testing.T) {
	f := newFixture(t, Config{})
	good := f.write(t, "good.txt", pumpManual)
	empty := f.write(t, "empty.txt", "")
	unsupported := f.write(t, "photo.png", "png")
	missing := filepath.Join(f.dir, "missing.txt")

	report := f.pipeline.Ingest(context.Background(), good, empty, unsupported, missing)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 3, report.Failed)

	byPath := map[string]FileResult{}
	for _, r := range report.Files {
		byPath[r.Path] = r
	}
	assert.ErrorIs(t, byPath[empty].Err, loader.ErrEmptyFile)
	assert.ErrorIs(t, byPath[unsupported].Err, loader.ErrUnsupportedFormat)
	assert.ErrorIs(t, byPath[missing].Err, os.ErrNotExist)
	assert.NotEmpty(t, byPath[empty].Error)
	assert.Len(t, report.Errors(), 3)

	_, err := f.catalog.Get("empty.txt")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestPipeline_IndexFailureLeavesCatalogUntouched(t *testing.T) {
	f := newFixture(t, Config{})
	f.index.addErr = errors.New("store unavailable")
	path := f.write(t, "pump.txt", pumpManual)

	report := f.pipeline.Ingest(context.Background(), path)
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Files[0].Err, f.index.addErr)

	_, err := f.catalog.Get("pump.txt")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	// The next run retries rather than skipping.
	f.index.addErr = nil
	report = f.pipeline.Ingest(context.Background(), path)
	assert.Equal(t, 1, report.Ingested)
}

func TestPipeline_ManyFilesConcurrently(t *testing.T) {
	f := newFixture(t, Config{MaxWorkers: 3})
	var paths []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		paths = append(paths, f.write(t, name+".txt", "手順1 "+strings.Repeat(name, 3)))
	}

	report := f.pipeline.Ingest(context.Background(), paths...)
	assert.Equal(t, 8, report.Ingested)
	for i, r := range report.Files {
		assert.Equal(t, paths[i], r.Path)
	}

	list, err := f.catalog.List()
	require.NoError(t, err)
	assert.Len(t, list, 8)
}

func TestPipeline_Canceled(t *testing.T) {
	f := newFixture(t, Config{})
	path := f.write(t, "pump.txt", pumpManual)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.pipeline.Ingest(ctx, path)
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Files[0].Err, context.Canceled)
}

func TestPipeline_Remove(t *testing.T) {
	f := newFixture(t, Config{})
	path := f.write(t, "pump.txt", pumpManual)
	ctx := context.Background()
	f.pipeline.Ingest(ctx, path)

	require.NoError(t, f.pipeline.Remove(ctx, "pump.txt"))
	assert.Empty(t, f.index.ids("pump.txt"))
	_, err := f.catalog.Get("pump.txt")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	assert.ErrorIs(t, f.pipeline.Remove(ctx, "pump.txt"), catalog.ErrNotFound)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.Equal(t, DefaultMaxWorkers, c.MaxWorkers)
	assert.Equal(t, DefaultBatchSize, c.BatchSize)
	assert.Equal(t, loader.MaxFileSize, c.MaxFileSize)
}
