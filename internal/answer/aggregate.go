// Package answer merges retrieved documents into a single procedure
// answer: steps grouped by number plus deduplicated warnings, figure
// references and checklist items.
package answer

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/extraction"
)

// StepGroup lists the units that mention one step number.
type StepGroup struct {
	Number int                           `json:"step_number" yaml:"step_number"`
	Units  []document.StructuredDocument `json:"supporting_units" yaml:"supporting_units"`
}

// Answer is the query-time aggregate. It is never persisted.
type Answer struct {
	Steps     []StepGroup                  `json:"ordered_steps" yaml:"ordered_steps"`
	Warnings  []extraction.Warning         `json:"warnings" yaml:"warnings"`
	Figures   []extraction.FigureReference `json:"figure_references" yaml:"figure_references"`
	Checklist []string                     `json:"checklist" yaml:"checklist"`
}

type warningKey struct {
	tier    extraction.Tier
	keyword string
}

type figureKey struct {
	kind   extraction.FigureKind
	number int
}

// Aggregate merges docs in the given order. Steps are sorted by number with
// supporting units kept in input order; warnings, figures and checklist
// items keep the first occurrence of each key.
func Aggregate(docs []document.StructuredDocument) Answer {
	ans := Answer{
		Steps:     []StepGroup{},
		Warnings:  []extraction.Warning{},
		Figures:   []extraction.FigureReference{},
		Checklist: []string{},
	}

	groups := make(map[int]int)
	seenWarnings := make(map[warningKey]struct{})
	seenFigures := make(map[figureKey]struct{})
	seenItems := make(map[string]struct{})

	for _, doc := range docs {
		ex := doc.Extraction

		for _, n := range ex.StepNumbers {
			i, ok := groups[n]
			if !ok {
				i = len(ans.Steps)
				groups[n] = i
				ans.Steps = append(ans.Steps, StepGroup{Number: n})
			}
			// Step numbers are unique within a unit, so a unit joins a group once.
			ans.Steps[i].Units = append(ans.Steps[i].Units, doc)
		}

		for _, w := range ex.Warnings {
			k := warningKey{tier: w.Tier, keyword: w.Keyword}
			if _, dup := seenWarnings[k]; dup {
				continue
			}
			seenWarnings[k] = struct{}{}
			ans.Warnings = append(ans.Warnings, w)
		}

		for _, f := range ex.Figures {
			k := figureKey{kind: f.Kind, number: f.Number}
			if _, dup := seenFigures[k]; dup {
				continue
			}
			seenFigures[k] = struct{}{}
			ans.Figures = append(ans.Figures, f)
		}

		for _, item := range ex.Checklist {
			item = strings.TrimSpace(item)
			if _, dup := seenItems[item]; dup {
				continue
			}
			seenItems[item] = struct{}{}
			ans.Checklist = append(ans.Checklist, item)
		}
	}

	sort.SliceStable(ans.Steps, func(a, b int) bool {
		return ans.Steps[a].Number < ans.Steps[b].Number
	})
	return ans
}

// StepNumbers returns the distinct step numbers in ascending order.
func (a Answer) StepNumbers() []int {
	out := make([]int, len(a.Steps))
	for i, g := range a.Steps {
		out[i] = g.Number
	}
	return out
}
