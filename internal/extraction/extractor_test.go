package extraction

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	ex, err := NewExtractor(DefaultConfig())
	require.NoError(t, err)
	return ex
}

func TestExtractor_EmptyInput(t *testing.T) {
	res := newTestExtractor(t).Extract("")

	assert.True(t, res.IsEmpty())
	assert.NotNil(t, res.StepNumbers)
	assert.NotNil(t, res.Warnings)
	assert.NotNil(t, res.Figures)
	assert.NotNil(t, res.Checklist)
}

func TestExtractor_NoCues(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "numeric table", text: "10.5 20.3\n30.1 40.2\n 7.25  8.5"},
		{name: "plain prose", text: "この装置は産業用の送風機です。"},
		{name: "english prose", text: "The unit ships with a power cable."},
		{name: "whitespace", text: " \n\t\n"},
	}

	ex := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, ex.Extract(tt.text).IsEmpty())
		})
	}
}

func TestExtractor_StepNumbers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{name: "sequential labels", text: "手順1\n手順2\n手順3", want: []int{1, 2, 3}},
		{name: "english labels", text: "Step 4: open the lid. Then step 5.", want: []int{4, 5}},
		{name: "procedure label", text: "See procedure 12 for details.", want: []int{12}},
		{name: "katakana label full-width", text: "ステップ１２で停止", want: []int{12}},
		{name: "line enumerators", text: "1. 電源を切る\n2) 蓋を開ける\n３．内部を確認", want: []int{1, 2, 3}},
		{name: "full-width paren", text: "  7） 再起動", want: []int{7}},
		{name: "bracketed", text: "【10】バルブを閉じる", want: []int{10}},
		{name: "deduplicated and sorted", text: "手順3\nstep 3\n【1】\n2. 次へ", want: []int{1, 2, 3}},
		{name: "decimal is not enumerator", text: "3.5 mm のボルト", want: []int{}},
		{name: "overflow skipped", text: "step 99999999999999999999999", want: []int{}},
	}

	ex := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ex.Extract(tt.text).StepNumbers)
		})
	}
}

func TestExtractor_Warnings(t *testing.T) {
	ex := newTestExtractor(t)

	res := ex.Extract("危険！高電圧。注意してください。確認すること。")
	require.Len(t, res.Warnings, 3)
	assert.Equal(t, TierCritical, res.Warnings[0].Tier)
	assert.Equal(t, "危険", res.Warnings[0].Keyword)
	assert.Equal(t, TierWarning, res.Warnings[1].Tier)
	assert.Equal(t, "注意", res.Warnings[1].Keyword)
	assert.Equal(t, TierCaution, res.Warnings[2].Tier)
	assert.Equal(t, "確認", res.Warnings[2].Keyword)

	t.Run("every occurrence recorded", func(t *testing.T) {
		res := ex.Extract("注意: A\n注意: B")
		require.Len(t, res.Warnings, 2)
		assert.Equal(t, "注意", res.Warnings[1].Keyword)
	})

	t.Run("ascii keywords are case-insensitive words", func(t *testing.T) {
		res := ex.Extract("DANGER: Never open while running.")
		require.Len(t, res.Warnings, 2)
		assert.Equal(t, "danger", res.Warnings[0].Keyword)
		assert.Equal(t, "never", res.Warnings[1].Keyword)
		assert.Equal(t, TierCritical, res.Warnings[1].Tier)
	})

	t.Run("ascii keywords need word boundaries", func(t *testing.T) {
		res := ex.Extract("endangered notebook")
		assert.Empty(t, res.Warnings)
	})
}

func TestExtractor_SnippetClipping(t *testing.T) {
	ex, err := NewExtractor(Config{SnippetRadius: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, ex.SnippetRadius())

	res := ex.Extract("abcdef危険ghijk")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "ef危険gh", res.Warnings[0].Context)

	res = ex.Extract("危険")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "危険", res.Warnings[0].Context)

	res = ex.Extract("x図3")
	require.Len(t, res.Figures, 1)
	assert.Equal(t, "x図3", res.Figures[0].Context)
}

func TestExtractor_SnippetDefaultRadius(t *testing.T) {
	ex := newTestExtractor(t)
	text := strings.Repeat("あ", 100) + "警告" + strings.Repeat("い", 100)

	res := ex.Extract(text)
	require.Len(t, res.Warnings, 1)
	want := strings.Repeat("あ", DefaultSnippetRadius) + "警告" + strings.Repeat("い", DefaultSnippetRadius)
	assert.Equal(t, want, res.Warnings[0].Context)
}

func TestExtractor_Figures(t *testing.T) {
	ex := newTestExtractor(t)

	res := ex.Extract("図1と図1を参照。表2、Fig. 3、Figure 5、table 6、image 4、画像７")
	got := make([]FigureReference, 0, len(res.Figures))
	for _, f := range res.Figures {
		got = append(got, FigureReference{Kind: f.Kind, Number: f.Number})
	}
	assert.Equal(t, []FigureReference{
		{Kind: FigureKindFigure, Number: 1},
		{Kind: FigureKindFigure, Number: 1},
		{Kind: FigureKindTable, Number: 2},
		{Kind: FigureKindFigure, Number: 3},
		{Kind: FigureKindFigure, Number: 5},
		{Kind: FigureKindTable, Number: 6},
		{Kind: FigureKindFigure, Number: 4},
		{Kind: FigureKindFigure, Number: 7},
	}, got)
	for _, f := range res.Figures {
		assert.NotEmpty(t, f.Context)
	}
}

func TestExtractor_Checklist(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "box and check label", text: "☐ 電源を切る\ncheck: ケーブル接続", want: []string{"電源を切る", "ケーブル接続"}},
		{name: "full-width colon", text: "確認：バルブが閉じている", want: []string{"バルブが閉じている"}},
		{name: "katakana label", text: "チェック: 油量", want: []string{"油量"}},
		{name: "confirm label", text: "Confirm:   the light is off  ", want: []string{"the light is off"}},
		{name: "glyphs", text: "✓ 完了\n□ 未完了\n  ✔ もう一つ", want: []string{"完了", "未完了", "もう一つ"}},
		{name: "duplicates kept", text: "□ A\n□ A", want: []string{"A", "A"}},
		{name: "empty capture dropped", text: "☐   \n☐ B", want: []string{"B"}},
		{name: "no items", text: "checklist follows", want: []string{}},
		{name: "glyph with label is one item", text: "☐ check: valve\n□ 確認：圧力", want: []string{"check: valve", "確認：圧力"}},
		{name: "label after label on one line", text: "確認: A チェック: B", want: []string{"A チェック: B"}},
	}

	ex := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ex.Extract(tt.text).Checklist)
		})
	}
}

func TestExtractor_Idempotent(t *testing.T) {
	ex := newTestExtractor(t)
	text := "手順2\n危険: 高温\n図3を参照\n☐ 冷却を待つ"

	first, err := json.Marshal(ex.Extract(text))
	require.NoError(t, err)
	second, err := json.Marshal(ex.Extract(text))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDefault_Shared(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Equal(t, []int{1}, Default().Extract("手順1").StepNumbers)
}

func TestNewExtractor_InvalidRules(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
	}{
		{name: "bad regex", rules: Rules{Steps: []Pattern{{Name: "bad", Regex: `(`}}}},
		{name: "no capture group", rules: Rules{Checklist: []Pattern{{Name: "flat", Regex: `check:`}}}},
		{name: "two capture groups", rules: Rules{Steps: []Pattern{{Name: "two", Regex: `(a)(b)`}}}},
		{name: "unknown tier", rules: Rules{Warnings: []TierKeywords{{Tier: "severe", Keywords: []string{"x"}}}}},
		{name: "empty keyword", rules: Rules{Warnings: []TierKeywords{{Tier: TierCaution, Keywords: []string{" "}}}}},
		{name: "unknown figure kind", rules: Rules{Figures: []FigurePattern{{Name: "f", Kind: "photo", Regex: `p(\d)`}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExtractor(Config{Rules: tt.rules})
			assert.ErrorIs(t, err, ErrInvalidRules)
		})
	}
}

func TestRules_EncodeParse(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, DefaultRules().Encode(&buf))

	parsed, err := ParseRules([]byte(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), parsed)
}

func TestLoadRules_CustomLocale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "de.toml")
	content := `
[[steps]]
name = "schritt"
regex = '(?i)schritt\s*(\d+)'

[[warnings]]
tier = "critical"
keywords = ["gefahr"]

[[checklist]]
name = "pruefen"
regex = '(?im)^prüfen:(.*)$'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	ex, err := NewExtractor(Config{Rules: rules})
	require.NoError(t, err)

	res := ex.Extract("Schritt 4\nGEFAHR durch Strom\nprüfen: Sicherung")
	assert.Equal(t, []int{4}, res.StepNumbers)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "gefahr", res.Warnings[0].Keyword)
	assert.Equal(t, []string{"Sicherung"}, res.Checklist)
	assert.Empty(t, res.Figures)
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("steps = 3"))
	assert.ErrorIs(t, err, ErrInvalidRules)
}
