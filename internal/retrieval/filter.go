package retrieval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/procrag/internal/document"
)

// StepRange is an inclusive step-number interval.
type StepRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Empty reports whether no step number can fall inside the range.
func (r StepRange) Empty() bool {
	return r.Min > r.Max
}

// ParseStepRange parses "2-4", "3" or "2..4".
func ParseStepRange(s string) (StepRange, error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "..") {
		sep = ".."
	}
	lo, hi, found := strings.Cut(s, sep)
	first, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return StepRange{}, fmt.Errorf("invalid step range %q: %w", s, err)
	}
	if !found {
		return StepRange{Min: first, Max: first}, nil
	}
	last, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return StepRange{}, fmt.Errorf("invalid step range %q: %w", s, err)
	}
	return StepRange{Min: first, Max: last}, nil
}

// Filter is a query-time constraint. Zero value matches everything.
type Filter struct {
	StepRange  *StepRange          `json:"step_range,omitempty" yaml:"step_range,omitempty"`
	Categories []document.Category `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// ParseFilter builds a Filter from a step range expression (see
// ParseStepRange) and category names. Empty inputs leave that part unset.
func ParseFilter(steps string, categories []string) (Filter, error) {
	var f Filter
	if strings.TrimSpace(steps) != "" {
		r, err := ParseStepRange(steps)
		if err != nil {
			return Filter{}, err
		}
		f.StepRange = &r
	}
	for _, name := range categories {
		cat, err := document.ParseCategory(name)
		if err != nil {
			return Filter{}, err
		}
		f.Categories = append(f.Categories, cat)
	}
	return f, nil
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f.StepRange == nil && len(f.Categories) == 0
}

func (f Filter) matchCategory(doc document.StructuredDocument) bool {
	if len(f.Categories) == 0 {
		return true
	}
	for _, c := range f.Categories {
		if doc.Category == c {
			return true
		}
	}
	return false
}

func (f Filter) matchSteps(doc document.StructuredDocument) bool {
	if f.StepRange == nil {
		return true
	}
	return doc.Extraction.HasStepWithin(f.StepRange.Min, f.StepRange.Max)
}

// hint returns the metadata the index can pre-filter on.
func (f Filter) hint() Hint {
	if len(f.Categories) == 1 {
		return Hint{Category: f.Categories[0]}
	}
	return Hint{}
}

// apply filters candidates by category, then step range, keeping order.
// It returns the survivors and how many each stage dropped.
func (f Filter) apply(docs []document.StructuredDocument) (kept []document.StructuredDocument, byCategory, bySteps int) {
	kept = make([]document.StructuredDocument, 0, len(docs))
	for _, doc := range docs {
		if !f.matchCategory(doc) {
			byCategory++
			continue
		}
		if !f.matchSteps(doc) {
			bySteps++
			continue
		}
		kept = append(kept, doc)
	}
	return kept, byCategory, bySteps
}
