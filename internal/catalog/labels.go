package catalog

import (
	"sort"

	"go.etcd.io/bbolt"
)

// LabelChange is one key's transition. Old is empty for an added key and
// New is empty for a removed one.
type LabelChange struct {
	Key     string `json:"key" yaml:"key"`
	Old     string `json:"old" yaml:"old"`
	New     string `json:"new" yaml:"new"`
	Removed bool   `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// LabelDiff is the effect of a label edit on one document.
type LabelDiff struct {
	SourceID string            `json:"source_id" yaml:"source_id"`
	Units    int               `json:"units" yaml:"units"`
	Before   map[string]string `json:"before" yaml:"before"`
	After    map[string]string `json:"after" yaml:"after"`
	Changes  []LabelChange     `json:"changes" yaml:"changes"`
}

// PreviewLabels computes the diff SetLabels would apply, without writing.
func (c *Catalog) PreviewLabels(sourceID string, set map[string]string, unset []string) (LabelDiff, error) {
	diffs, err := c.PreviewLabelsMany([]string{sourceID}, set, unset)
	if err != nil {
		return LabelDiff{}, err
	}
	return diffs[0], nil
}

// SetLabels merges set into the document's labels, deletes the unset keys
// and stamps UpdatedAt. Keys in both set and unset are set.
func (c *Catalog) SetLabels(sourceID string, set map[string]string, unset []string) (LabelDiff, error) {
	diffs, err := c.SetLabelsMany([]string{sourceID}, set, unset)
	if err != nil {
		return LabelDiff{}, err
	}
	return diffs[0], nil
}

// PreviewLabelsMany computes the diffs SetLabelsMany would apply, in the
// order of sourceIDs, without writing.
func (c *Catalog) PreviewLabelsMany(sourceIDs []string, set map[string]string, unset []string) ([]LabelDiff, error) {
	var diffs []LabelDiff
	err := c.db.View(func(tx *bbolt.Tx) error {
		var err error
		diffs, _, err = diffMany(tx.Bucket(bucketDocuments), sourceIDs, set, unset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return diffs, nil
}

// SetLabelsMany applies one label edit to every listed document in a
// single transaction. An unknown source ID or invalid key aborts the whole
// edit and nothing is written. Documents left unchanged keep UpdatedAt.
func (c *Catalog) SetLabelsMany(sourceIDs []string, set map[string]string, unset []string) ([]LabelDiff, error) {
	var diffs []LabelDiff
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		var (
			entries []Entry
			err     error
		)
		diffs, entries, err = diffMany(b, sourceIDs, set, unset)
		if err != nil {
			return err
		}
		now := c.now().UTC()
		for i, e := range entries {
			if len(diffs[i].Changes) == 0 {
				continue
			}
			e.Labels = diffs[i].After
			e.UpdatedAt = now
			if err := put(b, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diffs, nil
}

// diffMany loads each entry and computes its diff. A source ID listed
// twice is diffed once.
func diffMany(b *bbolt.Bucket, sourceIDs []string, set map[string]string, unset []string) ([]LabelDiff, []Entry, error) {
	seen := make(map[string]bool, len(sourceIDs))
	diffs := make([]LabelDiff, 0, len(sourceIDs))
	entries := make([]Entry, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		e, ok, err := get(b, id)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, notFound(id)
		}
		diff, err := diffLabels(e, set, unset)
		if err != nil {
			return nil, nil, err
		}
		diffs = append(diffs, diff)
		entries = append(entries, e)
	}
	return diffs, entries, nil
}

func diffLabels(e Entry, set map[string]string, unset []string) (LabelDiff, error) {
	for k := range set {
		if err := validLabelKey(k); err != nil {
			return LabelDiff{}, err
		}
	}
	for _, k := range unset {
		if err := validLabelKey(k); err != nil {
			return LabelDiff{}, err
		}
	}

	before := copyLabels(e.Labels)
	after := copyLabels(e.Labels)
	for _, k := range unset {
		delete(after, k)
	}
	for k, v := range set {
		after[k] = v
	}

	keys := map[string]bool{}
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	changes := []LabelChange{}
	for _, k := range sorted {
		old, hadOld := before[k]
		nv, hasNew := after[k]
		switch {
		case hadOld && !hasNew:
			changes = append(changes, LabelChange{Key: k, Old: old, Removed: true})
		case old != nv || hadOld != hasNew:
			changes = append(changes, LabelChange{Key: k, Old: old, New: nv})
		}
	}

	return LabelDiff{
		SourceID: e.SourceID,
		Units:    e.Units,
		Before:   before,
		After:    after,
		Changes:  changes,
	}, nil
}
