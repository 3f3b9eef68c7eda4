package extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ruleKind identifies which extractor a compiled rule feeds.
type ruleKind int

const (
	kindStep ruleKind = iota
	kindWarning
	kindFigure
	kindChecklist
)

// tag is attached to every match produced by a rule.
type tag struct {
	kind    ruleKind
	name    string
	tier    Tier
	keyword string
	figure  FigureKind
}

// rule is one compiled (regex, tag) entry.
type rule struct {
	re  *regexp.Regexp
	tag tag
	// group is the capture group holding the payload; 0 means the whole match.
	group int
}

// hit is a single tagged match in a text.
type hit struct {
	start, end int
	payload    string
	tag        tag
	order      int
}

// scan runs every rule over text and returns the hits ordered by position,
// ties broken by rule order.
func scan(text string, rules []rule) []hit {
	var hits []hit
	for i, r := range rules {
		for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
			lo, hi := m[2*r.group], m[2*r.group+1]
			if lo < 0 {
				continue
			}
			hits = append(hits, hit{
				start:   m[0],
				end:     m[1],
				payload: text[lo:hi],
				tag:     r.tag,
				order:   i,
			})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].start != hits[b].start {
			return hits[a].start < hits[b].start
		}
		return hits[a].order < hits[b].order
	})
	return hits
}

// dropOverlaps keeps the first of any hits whose spans overlap. hits must
// be ordered as scan returns them.
func dropOverlaps(hits []hit) []hit {
	kept := hits[:0:0]
	end := -1
	for _, h := range hits {
		if h.start < end {
			continue
		}
		kept = append(kept, h)
		end = h.end
	}
	return kept
}

// compiled is the executable form of a Rules table.
type compiled struct {
	steps     []rule
	warnings  []rule
	figures   []rule
	checklist []rule
}

func compileRules(r Rules) (*compiled, error) {
	c := &compiled{}

	for _, p := range r.Steps {
		re, err := compileCapture(p.Name, p.Regex)
		if err != nil {
			return nil, err
		}
		c.steps = append(c.steps, rule{re: re, group: 1, tag: tag{kind: kindStep, name: p.Name}})
	}

	for _, tk := range r.Warnings {
		if !tk.Tier.Valid() {
			return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidRules, tk.Tier)
		}
		for _, kw := range tk.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				return nil, fmt.Errorf("%w: empty keyword in tier %q", ErrInvalidRules, tk.Tier)
			}
			c.warnings = append(c.warnings, rule{
				re:  keywordRegexp(kw),
				tag: tag{kind: kindWarning, name: kw, tier: tk.Tier, keyword: kw},
			})
		}
	}

	for _, p := range r.Figures {
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("%w: pattern %q has unknown kind %q", ErrInvalidRules, p.Name, p.Kind)
		}
		re, err := compileCapture(p.Name, p.Regex)
		if err != nil {
			return nil, err
		}
		c.figures = append(c.figures, rule{re: re, group: 1, tag: tag{kind: kindFigure, name: p.Name, figure: p.Kind}})
	}

	for _, p := range r.Checklist {
		re, err := compileCapture(p.Name, p.Regex)
		if err != nil {
			return nil, err
		}
		c.checklist = append(c.checklist, rule{re: re, group: 1, tag: tag{kind: kindChecklist, name: p.Name}})
	}

	return c, nil
}

func compileCapture(name, expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidRules, name, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("%w: pattern %q must have exactly one capture group, has %d",
			ErrInvalidRules, name, re.NumSubexp())
	}
	return re, nil
}

// keywordRegexp matches ASCII keywords case-insensitively as whole words
// and anything else as a literal substring.
func keywordRegexp(kw string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(kw)
	if isASCII(kw) {
		return regexp.MustCompile(`(?i)\b` + quoted + `\b`)
	}
	return regexp.MustCompile(quoted)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// snippet returns up to radius runes either side of text[start:end],
// clipped to the text and trimmed of surrounding whitespace.
func snippet(text string, start, end, radius int) string {
	lo := start
	for n := 0; n < radius && lo > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:lo])
		lo -= size
	}
	hi := end
	for n := 0; n < radius && hi < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[hi:])
		hi += size
	}
	return strings.TrimSpace(text[lo:hi])
}
