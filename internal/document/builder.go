package document

import (
	"fmt"

	"github.com/fyrsmithlabs/procrag/internal/extraction"
)

// StructuredDocument is a unit enriched with its extraction and category.
// It is built once and never mutated.
type StructuredDocument struct {
	Unit       TextUnit          `json:"unit" yaml:"unit"`
	Extraction extraction.Result `json:"extraction" yaml:"extraction"`
	Category   Category          `json:"category" yaml:"category"`
}

// ID returns the stable identifier "<source_id>#<unit_index>".
func (d StructuredDocument) ID() string {
	return UnitID(d.Unit.SourceID, d.Unit.Index)
}

// Text returns the unit's raw text.
func (d StructuredDocument) Text() string {
	return d.Unit.Text()
}

// UnitID formats the identifier of one unit of a source document.
func UnitID(sourceID string, index int) string {
	return fmt.Sprintf("%s#%d", sourceID, index)
}

// Builder runs extraction and classification over text units.
// It is stateless apart from the shared Extractor and safe for concurrent use.
type Builder struct {
	extractor *extraction.Extractor
}

// NewBuilder creates a builder. A nil extractor selects extraction.Default.
func NewBuilder(ex *extraction.Extractor) *Builder {
	if ex == nil {
		ex = extraction.Default()
	}
	return &Builder{extractor: ex}
}

// Extractor returns the extractor the builder runs.
func (b *Builder) Extractor() *extraction.Extractor { return b.extractor }

// Build extracts and classifies one unit. It fails only when the unit has
// no raw text; an empty string is valid and yields an overview document.
func (b *Builder) Build(unit TextUnit) (StructuredDocument, error) {
	if !unit.HasText() {
		return StructuredDocument{}, &MalformedUnitError{
			SourceID: unit.SourceID,
			Index:    unit.Index,
			Reason:   "raw text is absent",
		}
	}

	text := *unit.RawText
	ex := b.extractor.Extract(text)

	return StructuredDocument{
		Unit:       unit,
		Extraction: ex,
		Category:   Classify(text, ex),
	}, nil
}

// BuildAll builds units in order and stops at the first malformed unit.
func (b *Builder) BuildAll(units []TextUnit) ([]StructuredDocument, error) {
	docs := make([]StructuredDocument, 0, len(units))
	for _, u := range units {
		doc, err := b.Build(u)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
