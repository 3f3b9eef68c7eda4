package extraction

import "errors"

// Extraction errors.
var (
	// ErrInvalidRules indicates a rule table that cannot be compiled.
	ErrInvalidRules = errors.New("invalid extraction rules")
)

// Tier is the severity of a detected warning.
type Tier string

const (
	// TierCritical covers prohibitive or mandatory language ("危険", "danger").
	TierCritical Tier = "critical"
	// TierWarning covers attention or importance language ("注意", "warning").
	TierWarning Tier = "warning"
	// TierCaution covers advisory or confirmatory language ("確認", "caution").
	TierCaution Tier = "caution"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierCritical, TierWarning, TierCaution:
		return true
	}
	return false
}

// FigureKind distinguishes figure references from table references.
type FigureKind string

const (
	FigureKindFigure FigureKind = "figure"
	FigureKindTable  FigureKind = "table"
)

// Valid reports whether k is a known figure kind.
func (k FigureKind) Valid() bool {
	return k == FigureKindFigure || k == FigureKindTable
}

// Warning is one keyword occurrence from the warning vocabulary.
type Warning struct {
	Tier    Tier   `json:"tier" yaml:"tier"`
	Keyword string `json:"keyword" yaml:"keyword"`
	Context string `json:"context" yaml:"context"`
}

// FigureReference is one mention of a numbered figure or table.
type FigureReference struct {
	Kind    FigureKind `json:"kind" yaml:"kind"`
	Number  int        `json:"number" yaml:"number"`
	Context string     `json:"context" yaml:"context"`
}

// Result holds everything the extractors found in one unit of text.
type Result struct {
	// StepNumbers is deduplicated and sorted ascending.
	StepNumbers []int `json:"step_numbers" yaml:"step_numbers"`
	// Warnings are in order of appearance in the text.
	Warnings []Warning `json:"warnings" yaml:"warnings"`
	// Figures keeps duplicates; deduplication happens at aggregation.
	Figures []FigureReference `json:"figure_references" yaml:"figure_references"`
	// Checklist items are trimmed, in order of appearance, duplicates kept.
	Checklist []string `json:"checklist_items" yaml:"checklist_items"`
}

// IsEmpty reports whether nothing was extracted.
func (r Result) IsEmpty() bool {
	return len(r.StepNumbers) == 0 && len(r.Warnings) == 0 &&
		len(r.Figures) == 0 && len(r.Checklist) == 0
}

// HasTier reports whether any warning of the given tier is present.
func (r Result) HasTier(tier Tier) bool {
	for _, w := range r.Warnings {
		if w.Tier == tier {
			return true
		}
	}
	return false
}

// HasStepWithin reports whether any step number falls in [min, max].
func (r Result) HasStepWithin(min, max int) bool {
	for _, n := range r.StepNumbers {
		if n >= min && n <= max {
			return true
		}
	}
	return false
}

func emptyResult() Result {
	return Result{
		StepNumbers: []int{},
		Warnings:    []Warning{},
		Figures:     []FigureReference{},
		Checklist:   []string{},
	}
}
