package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*Catalog, *time.Time) {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	clock := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestCatalog_PutGet(t *testing.T) {
	c, _ := newTestCatalog(t)

	e := Entry{
		SourceID:    "pump.pdf",
		Path:        "/docs/pump.pdf",
		Format:      "pdf",
		ContentHash: "abc",
		Units:       3,
		Pages:       4,
		Categories:  map[string]int{"procedure": 2, "warning": 1},
	}
	require.NoError(t, c.Put(e))

	got, err := c.Get("pump.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/docs/pump.pdf", got.Path)
	assert.Equal(t, 2, got.Categories["procedure"])
	assert.Equal(t, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), got.IngestedAt)
	assert.Equal(t, got.IngestedAt, got.UpdatedAt)

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, c.Put(Entry{}))
}

func TestCatalog_ReingestKeepsLabelsAndIngestedAt(t *testing.T) {
	c, clock := newTestCatalog(t)
	require.NoError(t, c.Put(Entry{SourceID: "a.txt", ContentHash: "v1", Units: 1}))
	_, err := c.SetLabels("a.txt", map[string]string{"owner": "ops", "line": "A"}, nil)
	require.NoError(t, err)

	first := *clock
	*clock = clock.Add(time.Hour)
	require.NoError(t, c.Put(Entry{SourceID: "a.txt", ContentHash: "v2", Units: 5, Labels: map[string]string{"line": "B"}}))

	got, err := c.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ContentHash)
	assert.Equal(t, 5, got.Units)
	assert.Equal(t, map[string]string{"owner": "ops", "line": "B"}, got.Labels)
	assert.Equal(t, first, got.IngestedAt)
	assert.Equal(t, *clock, got.UpdatedAt)
}

func TestCatalog_ListSortedAndDelete(t *testing.T) {
	c, _ := newTestCatalog(t)
	for _, id := range []string{"c.md", "a.pdf", "b.txt"} {
		require.NoError(t, c.Put(Entry{SourceID: id}))
	}

	list, err := c.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a.pdf", list[0].SourceID)
	assert.Equal(t, "b.txt", list[1].SourceID)
	assert.Equal(t, "c.md", list[2].SourceID)

	require.NoError(t, c.Delete("b.txt"))
	assert.ErrorIs(t, c.Delete("b.txt"), ErrNotFound)

	list, err = c.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCatalog_EmptyList(t *testing.T) {
	c, _ := newTestCatalog(t)
	list, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCatalog_FindByPath(t *testing.T) {
	c, _ := newTestCatalog(t)
	require.NoError(t, c.Put(Entry{SourceID: "x", Path: "/d/x.txt"}))

	e, err := c.FindByPath("/d/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", e.SourceID)

	_, err = c.FindByPath("/d/y.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(Entry{SourceID: "keep", Units: 2}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	e, err := c.Get("keep")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Units)
}
