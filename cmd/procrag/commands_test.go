package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/ingest"
)

const sampleManual = `ポンプ停止作業の概要です。

手順1 電源スイッチを切る。

手順2 吐出バルブを閉じる。高温部に注意すること。図3を参照。

手順3 圧力計を見る。
確認: 圧力がゼロであること
`

func ingestSample(t *testing.T, home string) string {
	t.Helper()
	path := writeFile(t, home, "pump.txt", sampleManual)
	stdout, _, err := execute(t, "ingest", path)
	require.NoError(t, err)

	var report ingest.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Equal(t, 1, report.Ingested)
	require.Equal(t, 4, report.Units)
	return path
}

func TestIngest_SkipsUnchangedUnlessForced(t *testing.T) {
	home := isolate(t)
	path := ingestSample(t, home)

	stdout, _, err := execute(t, "ingest", path)
	require.NoError(t, err)
	var report ingest.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Ingested)

	stdout, _, err = execute(t, "ingest", path, "--force")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Ingested)
	require.Len(t, report.Files, 1)
	assert.True(t, report.Files[0].Replaced)
}

func TestIngest_FailureReturnsError(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "empty.txt", "")

	stdout, _, err := execute(t, "ingest", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")

	var report ingest.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Failed)
}

func TestQuery_StepRange(t *testing.T) {
	home := isolate(t)
	ingestSample(t, home)

	stdout, _, err := execute(t, "query", "ポンプの停止手順", "--steps", "2-3")
	require.NoError(t, err)

	var res struct {
		TopK   int         `json:"top_k"`
		Count  int         `json:"count"`
		Units  []queryUnit `json:"units"`
		Answer struct {
			Steps []struct {
				Number int `json:"step_number"`
			} `json:"ordered_steps"`
			Checklist []string `json:"checklist"`
		} `json:"answer"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))

	assert.Equal(t, 3, res.TopK)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Answer.Steps, 2)
	assert.Equal(t, 2, res.Answer.Steps[0].Number)
	assert.Equal(t, 3, res.Answer.Steps[1].Number)
	for _, u := range res.Units {
		assert.Equal(t, "pump.txt", u.SourceID)
	}
	assert.NotEmpty(t, res.Answer.Checklist)
}

func TestQuery_TopK(t *testing.T) {
	home := isolate(t)
	ingestSample(t, home)

	stdout, _, err := execute(t, "query", "バルブ", "--top-k", "1")
	require.NoError(t, err)

	var res struct {
		TopK  int         `json:"top_k"`
		Count int         `json:"count"`
		Units []queryUnit `json:"units"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, 1, res.TopK)
	assert.Equal(t, 1, res.Count)
	require.Len(t, res.Units, 1)
	assert.NotEmpty(t, res.Units[0].Text)
}

func TestQuery_InvalidFlags(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "query", "ポンプ", "--steps", "two")
	require.Error(t, err)

	_, _, err = execute(t, "query", "ポンプ", "--category", "appendix")
	require.Error(t, err)
}

func TestQuery_EmptyIndex(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, "query", "ポンプ")
	require.NoError(t, err)

	var res struct {
		Count int         `json:"count"`
		Units []queryUnit `json:"units"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Zero(t, res.Count)
	assert.NotNil(t, res.Units)
}

func TestLabelAndList(t *testing.T) {
	home := isolate(t)
	ingestSample(t, home)

	stdout, _, err := execute(t, "label", "pump.txt", "line=A", "--dry-run")
	require.NoError(t, err)
	var diff labelResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &diff))
	require.Len(t, diff.Documents, 1)
	assert.Equal(t, "A", diff.Documents[0].After["line"])
	assert.True(t, diff.DryRun)

	list := func(args ...string) listResult {
		t.Helper()
		stdout, _, err := execute(t, append([]string{"list"}, args...)...)
		require.NoError(t, err)
		var res listResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &res))
		return res
	}

	// A dry run writes nothing.
	assert.Zero(t, list("--label", "line").Count)

	_, _, err = execute(t, "label", "pump.txt", "line=A", "owner=ops")
	require.NoError(t, err)

	res := list()
	require.Equal(t, 1, res.Count)
	assert.Equal(t, map[string]string{"line": "A", "owner": "ops"}, res.Documents[0].Labels)
	assert.Equal(t, 1, list("--label", "line=A").Count)
	assert.Zero(t, list("--label", "line=B").Count)

	_, _, err = execute(t, "label", "pump.txt", "--unset", "owner")
	require.NoError(t, err)
	assert.Zero(t, list("--label", "owner").Count)

	stdout, _, err = execute(t, "list", "--keys")
	require.NoError(t, err)
	var keys labelKeysResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &keys))
	assert.Equal(t, []string{"line"}, keys.Keys)
}

func TestLabel_Bulk(t *testing.T) {
	home := isolate(t)
	ingestSample(t, home)
	_, _, err := execute(t, "ingest", writeFile(t, home, "valve.txt", sampleManual))
	require.NoError(t, err)

	label := func(args ...string) labelResult {
		t.Helper()
		stdout, _, err := execute(t, append([]string{"label"}, args...)...)
		require.NoError(t, err)
		var res labelResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &res))
		return res
	}

	res := label("pump.txt", "valve.txt", "line=A")
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.Changed)

	res = label("--select", "line=A", "owner=ops", "--dry-run")
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.DryRun)
	for _, d := range res.Documents {
		assert.Equal(t, []catalog.LabelChange{{Key: "owner", New: "ops"}}, d.Changes)
	}

	res = label("--all", "line=A")
	assert.Equal(t, 2, res.Count)
	assert.Zero(t, res.Changed)

	// An unknown ID aborts the whole edit.
	_, _, err = execute(t, "label", "pump.txt", "missing.pdf", "owner=ops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.pdf")
	stdout, _, err := execute(t, "list", "--label", "owner")
	require.NoError(t, err)
	var listed listResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &listed))
	assert.Zero(t, listed.Count)
}

func TestLabel_Errors(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "label", "pump.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")

	_, _, err = execute(t, "label", "line=A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents selected")

	_, _, err = execute(t, "label", "pump.txt", "--all", "line=A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")

	_, _, err = execute(t, "label", "missing.pdf", "line=A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRemove(t *testing.T) {
	home := isolate(t)
	ingestSample(t, home)

	stdout, _, err := execute(t, "remove", "pump.txt")
	require.NoError(t, err)
	var res removeResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, []string{"pump.txt"}, res.Removed)

	stdout, _, err = execute(t, "query", "ポンプ")
	require.NoError(t, err)
	var q struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &q))
	assert.Zero(t, q.Count)

	_, _, err = execute(t, "remove", "pump.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFilterByLabel(t *testing.T) {
	entries := []catalog.Entry{
		{SourceID: "a", Labels: map[string]string{"line": "A"}},
		{SourceID: "b", Labels: map[string]string{"line": "B"}},
		{SourceID: "c"},
	}

	assert.Len(t, filterByLabel(entries, ""), 3)
	assert.Len(t, filterByLabel(entries, "line"), 2)
	got := filterByLabel(entries, "line=B")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].SourceID)
	assert.NotNil(t, filterByLabel(nil, "line"))
}
