package extraction

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/width"
)

// DefaultSnippetRadius is the number of runes captured on each side of a
// warning or figure match.
const DefaultSnippetRadius = 40

// Config configures an Extractor.
type Config struct {
	// Rules is the vocabulary. A zero value selects DefaultRules.
	Rules Rules
	// SnippetRadius is the context window half-width in runes.
	// Zero selects DefaultSnippetRadius.
	SnippetRadius int
}

// DefaultConfig returns the built-in rules and snippet radius.
func DefaultConfig() Config {
	return Config{
		Rules:         DefaultRules(),
		SnippetRadius: DefaultSnippetRadius,
	}
}

// Extractor runs the step, warning, figure and checklist rules over text.
// It holds only compiled expressions and is safe for concurrent use.
type Extractor struct {
	rules  *compiled
	radius int
}

// NewExtractor compiles cfg into an Extractor. Malformed rules are
// rejected here so Extract itself can never fail.
func NewExtractor(cfg Config) (*Extractor, error) {
	rules := cfg.Rules
	if len(rules.Steps) == 0 && len(rules.Warnings) == 0 &&
		len(rules.Figures) == 0 && len(rules.Checklist) == 0 {
		rules = DefaultRules()
	}

	c, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	radius := cfg.SnippetRadius
	if radius <= 0 {
		radius = DefaultSnippetRadius
	}

	return &Extractor{rules: c, radius: radius}, nil
}

var defaultExtractor = sync.OnceValue(func() *Extractor {
	ex, err := NewExtractor(DefaultConfig())
	if err != nil {
		panic("extraction: default rules do not compile: " + err.Error())
	}
	return ex
})

// Default returns a shared Extractor built from DefaultConfig.
func Default() *Extractor {
	return defaultExtractor()
}

// SnippetRadius returns the configured context window half-width.
func (e *Extractor) SnippetRadius() int {
	return e.radius
}

// Extract runs all extractors over text. It never fails; text without
// recognizable cues produces an empty Result.
func (e *Extractor) Extract(text string) Result {
	res := emptyResult()
	if text == "" {
		return res
	}

	res.StepNumbers = e.stepNumbers(text)

	for _, h := range scan(text, e.rules.warnings) {
		res.Warnings = append(res.Warnings, Warning{
			Tier:    h.tag.tier,
			Keyword: h.tag.keyword,
			Context: snippet(text, h.start, h.end, e.radius),
		})
	}

	for _, h := range scan(text, e.rules.figures) {
		n, ok := parseNumeral(h.payload)
		if !ok {
			continue
		}
		res.Figures = append(res.Figures, FigureReference{
			Kind:    h.tag.figure,
			Number:  n,
			Context: snippet(text, h.start, h.end, e.radius),
		})
	}

	// A line matching several shapes, such as "☐ check: valve", is one
	// item; the earliest-starting match wins.
	for _, h := range dropOverlaps(scan(text, e.rules.checklist)) {
		item := strings.TrimSpace(h.payload)
		if item == "" {
			continue
		}
		res.Checklist = append(res.Checklist, item)
	}

	return res
}

func (e *Extractor) stepNumbers(text string) []int {
	seen := make(map[int]struct{})
	steps := []int{}
	for _, h := range scan(text, e.rules.steps) {
		n, ok := parseNumeral(h.payload)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		steps = append(steps, n)
	}
	sort.Ints(steps)
	return steps
}

// parseNumeral folds full-width digits and parses the result. Values that
// overflow int are rejected.
func parseNumeral(s string) (int, bool) {
	n, err := strconv.Atoi(width.Narrow.String(strings.TrimSpace(s)))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
