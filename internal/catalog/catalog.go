// Package catalog is the bbolt-backed registry of ingested documents.
//
// Each entry records where a document came from, the hash of the content
// last ingested, per-category unit counts and free-form user labels.
// Labels are owned by the user and survive re-ingestion.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// ErrNotFound indicates no entry for a source ID.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidLabel indicates an empty or malformed label key.
	ErrInvalidLabel = errors.New("invalid label")
)

var bucketDocuments = []byte("documents")

// Entry describes one ingested document.
type Entry struct {
	SourceID    string            `json:"source_id" yaml:"source_id"`
	Path        string            `json:"path" yaml:"path"`
	Format      string            `json:"format" yaml:"format"`
	ContentHash string            `json:"content_hash" yaml:"content_hash"`
	Units       int               `json:"units" yaml:"units"`
	Pages       int               `json:"pages,omitempty" yaml:"pages,omitempty"`
	Categories  map[string]int    `json:"categories" yaml:"categories"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	IngestedAt  time.Time         `json:"ingested_at" yaml:"ingested_at"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"updated_at"`
}

// Catalog is safe for concurrent use; bbolt serializes writers.
type Catalog struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the catalog database at path.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog: %w", err)
	}
	return &Catalog{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Put records e. When an entry for e.SourceID exists its labels are kept,
// merged under any labels e carries, and its IngestedAt is preserved.
func (c *Catalog) Put(e Entry) error {
	if e.SourceID == "" {
		return fmt.Errorf("catalog entry without source id")
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		now := c.now().UTC()

		if prev, ok, err := get(b, e.SourceID); err != nil {
			return err
		} else if ok {
			merged := copyLabels(prev.Labels)
			for k, v := range e.Labels {
				merged[k] = v
			}
			e.Labels = merged
			if e.IngestedAt.IsZero() {
				e.IngestedAt = prev.IngestedAt
			}
		}
		if e.IngestedAt.IsZero() {
			e.IngestedAt = now
		}
		e.UpdatedAt = now
		return put(b, e)
	})
}

// Get returns the entry for sourceID.
func (c *Catalog) Get(sourceID string) (Entry, error) {
	var (
		e  Entry
		ok bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		var err error
		e, ok, err = get(tx.Bucket(bucketDocuments), sourceID)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, notFound(sourceID)
	}
	return e, nil
}

// List returns every entry sorted by source ID.
func (c *Catalog) List() ([]Entry, error) {
	var out []Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding entry %s: %w", k, err)
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the entry for sourceID.
func (c *Catalog) Delete(sourceID string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b.Get([]byte(sourceID)) == nil {
			return notFound(sourceID)
		}
		return b.Delete([]byte(sourceID))
	})
}

// FindByPath returns the entry last ingested from path.
func (c *Catalog) FindByPath(path string) (Entry, error) {
	entries, err := c.List()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Path == path {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: path %s", ErrNotFound, path)
}

// LabelKeys returns every label key in use, sorted.
func (c *Catalog) LabelKeys() ([]string, error) {
	entries, err := c.List()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, e := range entries {
		for k := range e.Labels {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func notFound(sourceID string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, sourceID)
}

func get(b *bbolt.Bucket, sourceID string) (Entry, bool, error) {
	data := b.Get([]byte(sourceID))
	if data == nil {
		return Entry{}, false, nil
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decoding entry %s: %w", sourceID, err)
	}
	return e, true, nil
}

func put(b *bbolt.Bucket, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", e.SourceID, err)
	}
	return b.Put([]byte(e.SourceID), data)
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func validLabelKey(k string) error {
	if strings.TrimSpace(k) == "" || strings.ContainsAny(k, "= \t\n") {
		return fmt.Errorf("%w: key %q", ErrInvalidLabel, k)
	}
	return nil
}
