package document

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fyrsmithlabs/procrag/internal/extraction"
)

// Metadata keys attached to every indexed unit.
const (
	MetaSourceID   = "source_id"
	MetaUnitIndex  = "unit_index"
	MetaCategory   = "category"
	MetaStepMin    = "step_min"
	MetaStepMax    = "step_max"
	MetaExtraction = "extraction"
)

// EncodeMetadata flattens a document into an index payload. The full
// extraction travels as a JSON string so stores that only keep string
// values still round-trip it.
func EncodeMetadata(doc StructuredDocument) (map[string]any, error) {
	ex, err := json.Marshal(doc.Extraction)
	if err != nil {
		return nil, fmt.Errorf("encoding extraction for %s: %w", doc.ID(), err)
	}

	meta := map[string]any{
		MetaSourceID:   doc.Unit.SourceID,
		MetaUnitIndex:  doc.Unit.Index,
		MetaCategory:   string(doc.Category),
		MetaExtraction: string(ex),
	}
	if steps := doc.Extraction.StepNumbers; len(steps) > 0 {
		meta[MetaStepMin] = steps[0]
		meta[MetaStepMax] = steps[len(steps)-1]
	}
	return meta, nil
}

// DecodeMetadata rebuilds a document from the text and payload returned by
// an index.
func DecodeMetadata(content string, meta map[string]any) (StructuredDocument, error) {
	sourceID, ok := meta[MetaSourceID].(string)
	if !ok || sourceID == "" {
		return StructuredDocument{}, fmt.Errorf("%w: missing %s", ErrInvalidMetadata, MetaSourceID)
	}

	index, ok := intValue(meta[MetaUnitIndex])
	if !ok {
		return StructuredDocument{}, fmt.Errorf("%w: bad %s for %s", ErrInvalidMetadata, MetaUnitIndex, sourceID)
	}

	rawCategory, _ := meta[MetaCategory].(string)
	category, err := ParseCategory(rawCategory)
	if err != nil {
		return StructuredDocument{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	var ex extraction.Result
	rawEx, _ := meta[MetaExtraction].(string)
	if err := json.Unmarshal([]byte(rawEx), &ex); err != nil {
		return StructuredDocument{}, fmt.Errorf("%w: extraction for %s: %v", ErrInvalidMetadata, UnitID(sourceID, index), err)
	}

	return StructuredDocument{
		Unit:       NewTextUnit(sourceID, index, content),
		Extraction: ex,
		Category:   category,
	}, nil
}

// intValue accepts the numeric shapes stores hand back: native ints,
// floats from JSON and strings from string-only stores.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
