package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/extraction"
	"github.com/fyrsmithlabs/procrag/internal/logging"
)

func TestNewServer(t *testing.T) {
	builder := document.NewBuilder(extraction.Default())

	t.Run("successful creation", func(t *testing.T) {
		s, err := NewServer(nil, &fakeSearcher{}, builder, &fakeLister{})
		require.NoError(t, err)
		assert.Equal(t, "procrag", s.config.Name)
		assert.Equal(t, 3, s.config.DefaultTopK)
		assert.NotNil(t, s.logger)
	})

	t.Run("partial config gets defaults", func(t *testing.T) {
		s, err := NewServer(&Config{Name: "manuals", DefaultTopK: 5}, &fakeSearcher{}, builder, nil)
		require.NoError(t, err)
		assert.Equal(t, "manuals", s.config.Name)
		assert.Equal(t, "1.0.0", s.config.Version)
		assert.Equal(t, 5, s.config.DefaultTopK)
		assert.Equal(t, 50, s.config.MaxTopK)
	})

	t.Run("nil searcher", func(t *testing.T) {
		_, err := NewServer(nil, nil, builder, nil)
		assert.EqualError(t, err, "searcher is required")
	})

	t.Run("nil builder", func(t *testing.T) {
		_, err := NewServer(nil, &fakeSearcher{}, nil, nil)
		assert.EqualError(t, err, "document builder is required")
	})

	t.Run("no catalog logs skipped tool", func(t *testing.T) {
		logger := logging.NewTestLogger()
		_, err := NewServer(&Config{Logger: logger.Underlying()}, &fakeSearcher{}, builder, nil)
		require.NoError(t, err)
		logger.AssertLogged(t, zapcore.WarnLevel, "skipping document_list")
	})
}

// connect wires an in-process client session to s.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func toolNames(t *testing.T, cs *mcp.ClientSession) []string {
	t.Helper()
	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func decodeStructured(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestServer_ListTools(t *testing.T) {
	builder := document.NewBuilder(extraction.Default())

	s, err := NewServer(nil, &fakeSearcher{}, builder, &fakeLister{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"procedure_search", "procedure_extract", "document_list"}, toolNames(t, connect(t, s)))

	s, err = NewServer(nil, &fakeSearcher{}, builder, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"procedure_search", "procedure_extract"}, toolNames(t, connect(t, s)))
}

func TestServer_CallProcedureSearch(t *testing.T) {
	docs := buildDocs(t, "pump.txt", "手順1 電源を切る", "手順2 バルブを閉じる\n注意 圧力")
	searcher := &fakeSearcher{docs: docs}
	s := newTestServer(t, searcher, nil)
	cs := connect(t, s)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "procedure_search",
		Arguments: map[string]any{
			"query": "停止手順",
			"steps": "1-2",
			"top_k": 2,
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out procedureSearchOutput
	decodeStructured(t, res, &out)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, []int{1, 2}, out.Answer.StepNumbers())
	require.Len(t, out.Answer.Warnings, 1)
	assert.Equal(t, extraction.TierWarning, out.Answer.Warnings[0].Tier)

	require.Len(t, searcher.calls, 1)
	assert.Equal(t, 2, searcher.calls[0].topK)
}

func TestServer_CallToolError(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, nil)
	cs := connect(t, s)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "procedure_search",
		Arguments: map[string]any{"query": "q", "steps": "x-y"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_CallDocumentList(t *testing.T) {
	lister := &fakeLister{entries: []catalog.Entry{{SourceID: "a.txt", Format: "txt", Units: 2}}}
	s := newTestServer(t, &fakeSearcher{}, lister)
	cs := connect(t, s)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "document_list",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out documentListOutput
	decodeStructured(t, res, &out)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "a.txt", out.Documents[0].SourceID)
}

func TestServer_CallProcedureExtractText(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, nil)
	cs := connect(t, s)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "procedure_extract",
		Arguments: map[string]any{
			"text":      "手順1 電源を切る\n確認: 電源ランプ消灯\n\n図2 配線",
			"source_id": "memo",
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out procedureExtractOutput
	decodeStructured(t, res, &out)
	assert.Equal(t, "memo", out.SourceID)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, []string{"電源ランプ消灯"}, out.Documents[0].Extraction.Checklist)
	assert.Equal(t, map[string]int{"procedure": 1, "reference": 1}, out.Categories)
}
