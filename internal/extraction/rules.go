package extraction

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Pattern is a named regular expression with exactly one capture group.
type Pattern struct {
	Name  string `toml:"name" json:"name"`
	Regex string `toml:"regex" json:"regex"`
}

// FigurePattern is a Pattern whose numeral identifies a figure or table.
type FigurePattern struct {
	Name  string     `toml:"name" json:"name"`
	Kind  FigureKind `toml:"kind" json:"kind"`
	Regex string     `toml:"regex" json:"regex"`
}

// TierKeywords lists the literal keywords that signal one warning tier.
// ASCII keywords match case-insensitively on word boundaries; other
// keywords match as plain substrings.
type TierKeywords struct {
	Tier     Tier     `toml:"tier" json:"tier"`
	Keywords []string `toml:"keywords" json:"keywords"`
}

// Rules is the locale-specific vocabulary interpreted by the Extractor.
type Rules struct {
	Steps     []Pattern       `toml:"steps" json:"steps"`
	Warnings  []TierKeywords  `toml:"warnings" json:"warnings"`
	Figures   []FigurePattern `toml:"figures" json:"figures"`
	Checklist []Pattern       `toml:"checklist" json:"checklist"`
}

// digits matches ASCII and full-width numerals.
const digits = `[0-9０-９]+`

// inline matches horizontal whitespace including the ideographic space.
const inline = `[ \t\x{3000}]*`

// DefaultRules returns the built-in Japanese and English vocabulary.
func DefaultRules() Rules {
	return Rules{
		Steps: []Pattern{
			{Name: "step_label", Regex: `(?i)(?:手順|ステップ|\bsteps?|\bprocedures?)` + inline + `(?:no\.?|#)?` + inline + `(` + digits + `)`},
			{Name: "line_enumerator", Regex: `(?m)^` + inline + `([0-9０-９]{1,3})(?:[.．](?:[^0-9０-９]|$)|[)）])`},
			{Name: "bracketed", Regex: `【` + inline + `(` + digits + `)` + inline + `】`},
		},
		Warnings: []TierKeywords{
			{Tier: TierCritical, Keywords: []string{"危険", "禁止", "厳禁", "絶対に", "danger", "prohibited", "forbidden", "never"}},
			{Tier: TierWarning, Keywords: []string{"警告", "注意", "重要", "warning", "important", "attention"}},
			{Tier: TierCaution, Keywords: []string{"確認", "推奨", "留意", "caution", "recommended", "note"}},
		},
		Figures: []FigurePattern{
			{Name: "zu", Kind: FigureKindFigure, Regex: `図` + inline + `(` + digits + `)`},
			{Name: "hyo", Kind: FigureKindTable, Regex: `表` + `[ \t]?` + `(` + digits + `)`},
			{Name: "fig", Kind: FigureKindFigure, Regex: `(?i)\bfig(?:ure)?\.?` + inline + `([0-9]+)`},
			{Name: "table", Kind: FigureKindTable, Regex: `(?i)\btable` + inline + `([0-9]+)`},
			{Name: "image", Kind: FigureKindFigure, Regex: `(?i)(?:画像|\bimage)` + inline + `(` + digits + `)`},
		},
		Checklist: []Pattern{
			{Name: "confirm_label", Regex: `(?im)(?:確認|\bconfirm)` + inline + `[:：](.*)$`},
			{Name: "check_label", Regex: `(?im)(?:チェック|\bcheck)` + inline + `[:：](.*)$`},
			{Name: "check_mark", Regex: `(?m)^` + inline + `[✓✔](.*)$`},
			{Name: "ballot_box", Regex: `(?m)^` + inline + `☐(.*)$`},
			{Name: "empty_box", Regex: `(?m)^` + inline + `□(.*)$`},
		},
	}
}

// ParseRules decodes a TOML rule table.
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if _, err := toml.Decode(string(data), &rules); err != nil {
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// LoadRules reads and decodes a TOML rule table from path.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// Encode writes the rule table as TOML.
func (r Rules) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(r); err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Validate checks tiers, kinds and capture groups without keeping the
// compiled expressions.
func (r Rules) Validate() error {
	_, err := compileRules(r)
	return err
}
