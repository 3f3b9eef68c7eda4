// Package document turns raw text units into classified, structured
// documents ready for indexing.
package document

import (
	"errors"
	"fmt"
)

// Document errors.
var (
	// ErrMalformedUnit is matched by MalformedUnitError.
	ErrMalformedUnit = errors.New("malformed text unit")

	// ErrInvalidMetadata indicates an index payload that cannot be decoded.
	ErrInvalidMetadata = errors.New("invalid document metadata")
)

// TextUnit is a contiguous span of source text, such as one page.
type TextUnit struct {
	// SourceID identifies the owning document.
	SourceID string `json:"source_id" yaml:"source_id"`
	// Index orders units within a document, starting at zero.
	Index int `json:"unit_index" yaml:"unit_index"`
	// RawText is nil when the loader produced no text at all, which is
	// different from an empty page.
	RawText *string `json:"raw_text" yaml:"raw_text"`
}

// NewTextUnit returns a unit whose text is present.
func NewTextUnit(sourceID string, index int, text string) TextUnit {
	return TextUnit{SourceID: sourceID, Index: index, RawText: &text}
}

// HasText reports whether raw text is present.
func (u TextUnit) HasText() bool {
	return u.RawText != nil
}

// Text returns the raw text or "" when absent.
func (u TextUnit) Text() string {
	if u.RawText == nil {
		return ""
	}
	return *u.RawText
}

// MalformedUnitError reports a unit that cannot be built. It indicates a
// loader bug rather than bad user input.
type MalformedUnitError struct {
	SourceID string
	Index    int
	Reason   string
}

func (e *MalformedUnitError) Error() string {
	return fmt.Sprintf("malformed text unit %s#%d: %s", e.SourceID, e.Index, e.Reason)
}

// Is lets errors.Is match ErrMalformedUnit.
func (e *MalformedUnitError) Is(target error) bool {
	return target == ErrMalformedUnit
}
