package document

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/procrag/internal/extraction"
)

// Category is the section type assigned to every unit.
type Category string

const (
	CategoryOverview  Category = "overview"
	CategoryProcedure Category = "procedure"
	CategoryWarning   Category = "warning"
	CategoryReference Category = "reference"
)

// Categories lists every category in classification priority order.
var Categories = []Category{CategoryWarning, CategoryProcedure, CategoryReference, CategoryOverview}

// ParseCategory converts a case-insensitive name to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Classify assigns a category from the extraction of a unit's text.
// First match wins:
//  1. a critical or warning tier entry → warning
//  2. step numbers → procedure
//  3. figure references → reference
//  4. otherwise → overview
//
// Caution-tier warnings alone never make a unit a warning section.
func Classify(text string, ex extraction.Result) Category {
	switch {
	case ex.HasTier(extraction.TierCritical) || ex.HasTier(extraction.TierWarning):
		return CategoryWarning
	case len(ex.StepNumbers) > 0:
		return CategoryProcedure
	case len(ex.Figures) > 0:
		return CategoryReference
	default:
		return CategoryOverview
	}
}
