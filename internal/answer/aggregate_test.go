package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/extraction"
)

func doc(source string, index int, ex extraction.Result) document.StructuredDocument {
	return document.StructuredDocument{
		Unit:       document.NewTextUnit(source, index, ""),
		Extraction: ex,
		Category:   document.Classify("", ex),
	}
}

func ids(docs []document.StructuredDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

func TestAggregate_Empty(t *testing.T) {
	ans := Aggregate(nil)
	assert.Empty(t, ans.Steps)
	assert.Empty(t, ans.Warnings)
	assert.Empty(t, ans.Figures)
	assert.Empty(t, ans.Checklist)
}

func TestAggregate_StepsGroupedAndSorted(t *testing.T) {
	docs := []document.StructuredDocument{
		doc("m", 5, extraction.Result{StepNumbers: []int{3, 4}}),
		doc("m", 1, extraction.Result{StepNumbers: []int{1}}),
		doc("m", 6, extraction.Result{StepNumbers: []int{4}}),
		doc("m", 9, extraction.Result{Checklist: []string{"only checklist"}}),
	}

	ans := Aggregate(docs)
	assert.Equal(t, []int{1, 3, 4}, ans.StepNumbers())

	require.Len(t, ans.Steps, 3)
	assert.Equal(t, []string{"m#1"}, ids(ans.Steps[0].Units))
	assert.Equal(t, []string{"m#5"}, ids(ans.Steps[1].Units))
	// Supporting units keep input order, not unit index order.
	assert.Equal(t, []string{"m#5", "m#6"}, ids(ans.Steps[2].Units))
	assert.Equal(t, []string{"only checklist"}, ans.Checklist)
}

func TestAggregate_WarningsKeepFirst(t *testing.T) {
	first := extraction.Warning{Tier: extraction.TierCritical, Keyword: "X", Context: "first"}
	docs := []document.StructuredDocument{
		doc("a", 0, extraction.Result{Warnings: []extraction.Warning{
			{Tier: extraction.TierCaution, Keyword: "確認", Context: "c"},
			first,
		}}),
		doc("a", 1, extraction.Result{Warnings: []extraction.Warning{
			{Tier: extraction.TierCritical, Keyword: "X", Context: "second"},
			{Tier: extraction.TierWarning, Keyword: "X", Context: "other tier"},
		}}),
	}

	ans := Aggregate(docs)
	require.Len(t, ans.Warnings, 3)
	assert.Equal(t, "確認", ans.Warnings[0].Keyword)
	assert.Equal(t, first, ans.Warnings[1])
	assert.Equal(t, extraction.TierWarning, ans.Warnings[2].Tier)
}

func TestAggregate_FiguresDeduplicated(t *testing.T) {
	docs := []document.StructuredDocument{
		doc("a", 0, extraction.Result{Figures: []extraction.FigureReference{
			{Kind: extraction.FigureKindFigure, Number: 1, Context: "a"},
			{Kind: extraction.FigureKindFigure, Number: 1, Context: "b"},
			{Kind: extraction.FigureKindTable, Number: 1, Context: "c"},
		}}),
		doc("a", 1, extraction.Result{Figures: []extraction.FigureReference{
			{Kind: extraction.FigureKindFigure, Number: 2, Context: "d"},
			{Kind: extraction.FigureKindTable, Number: 1, Context: "e"},
		}}),
	}

	ans := Aggregate(docs)
	require.Len(t, ans.Figures, 3)
	assert.Equal(t, "a", ans.Figures[0].Context)
	assert.Equal(t, "c", ans.Figures[1].Context)
	assert.Equal(t, "d", ans.Figures[2].Context)
}

func TestAggregate_ChecklistTrimmedDedup(t *testing.T) {
	docs := []document.StructuredDocument{
		doc("a", 0, extraction.Result{Checklist: []string{"電源OFF", "  ブレーカー "}}),
		doc("b", 0, extraction.Result{Checklist: []string{"ブレーカー", "電源OFF", "電源ＯＦＦ"}}),
	}

	ans := Aggregate(docs)
	assert.Equal(t, []string{"電源OFF", "ブレーカー", "電源ＯＦＦ"}, ans.Checklist)
}

func TestAggregate_Deterministic(t *testing.T) {
	docs := []document.StructuredDocument{
		doc("a", 0, extraction.Result{StepNumbers: []int{2}, Warnings: []extraction.Warning{{Tier: extraction.TierWarning, Keyword: "注意"}}}),
		doc("a", 1, extraction.Result{StepNumbers: []int{1, 2}}),
	}
	assert.Equal(t, Aggregate(docs), Aggregate(docs))
}
