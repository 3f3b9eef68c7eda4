package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/answer"
	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/loader"
	"github.com/fyrsmithlabs/procrag/internal/retrieval"
)

// ErrInvalidInput is returned for tool arguments that fail validation.
var ErrInvalidInput = errors.New("invalid input")

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	addTool(s, &mcp.Tool{
		Name:        "procedure_search",
		Description: "Search ingested manuals for procedure steps. Filters by step number range and section category, then merges the hits into ordered steps with deduplicated warnings, figure references and checklist items.",
	}, s.procedureSearch)

	addTool(s, &mcp.Tool{
		Name:        "procedure_extract",
		Description: "Split text or a local file into units and extract step numbers, warnings, figure references and checklist items from each, with its section category. Nothing is indexed.",
	}, s.procedureExtract)

	if s.lister == nil {
		s.logger.Warn("catalog not configured, skipping document_list tool")
		return
	}
	addTool(s, &mcp.Tool{
		Name:        "document_list",
		Description: "List ingested documents with unit counts per category and user labels.",
	}, s.documentList)
}

// addTool registers fn with invocation metrics and a one-line text summary.
func addTool[In, Out any](s *Server, tool *mcp.Tool, fn func(context.Context, In) (Out, string, error)) {
	name := tool.Name
	mcp.AddTool(s.mcp, tool, func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		done := s.metrics.Begin(ctx, name)
		out, summary, err := fn(ctx, args)
		done(err)
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
			var zero Out
			return nil, zero, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: summary}},
		}, out, nil
	})
}

// ===== PROCEDURE SEARCH =====

type procedureSearchInput struct {
	Query      string   `json:"query" jsonschema:"Natural-language question about a procedure"`
	Steps      string   `json:"steps,omitempty" jsonschema:"Inclusive step number range such as 2-4 or a single step such as 3"`
	Categories []string `json:"categories,omitempty" jsonschema:"Section categories to keep (overview, procedure, warning, reference)"`
	TopK       int      `json:"top_k,omitempty" jsonschema:"Maximum units to retrieve (default: 3)"`
}

type unitRef struct {
	ID       string `json:"id" jsonschema:"Unit ID (source#index)"`
	SourceID string `json:"source_id" jsonschema:"Source document ID"`
	Index    int    `json:"index" jsonschema:"Unit position within the source"`
	Category string `json:"category" jsonschema:"Section category"`
	Text     string `json:"text" jsonschema:"Unit text"`
}

type procedureSearchOutput struct {
	Query   string        `json:"query" jsonschema:"Query text used"`
	Count   int           `json:"count" jsonschema:"Number of units retrieved"`
	Units   []unitRef     `json:"units" jsonschema:"Retrieved units, most similar first"`
	Answer  answer.Answer `json:"answer" jsonschema:"Steps grouped by number with merged warnings, figures and checklist"`
	StepMin *int          `json:"step_min,omitempty" jsonschema:"Lower step bound applied"`
	StepMax *int          `json:"step_max,omitempty" jsonschema:"Upper step bound applied"`
}

func (s *Server) procedureSearch(ctx context.Context, args procedureSearchInput) (procedureSearchOutput, string, error) {
	if strings.TrimSpace(args.Query) == "" {
		return procedureSearchOutput{}, "", fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	filter, err := retrieval.ParseFilter(args.Steps, args.Categories)
	if err != nil {
		return procedureSearchOutput{}, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	topK := args.TopK
	if topK == 0 {
		topK = s.config.DefaultTopK
	}
	if topK > s.config.MaxTopK {
		topK = s.config.MaxTopK
	}

	docs, err := s.searcher.Query(ctx, args.Query, filter, topK)
	if err != nil {
		return procedureSearchOutput{}, "", err
	}

	out := procedureSearchOutput{
		Query:  args.Query,
		Count:  len(docs),
		Units:  make([]unitRef, 0, len(docs)),
		Answer: answer.Aggregate(docs),
	}
	if filter.StepRange != nil {
		out.StepMin = &filter.StepRange.Min
		out.StepMax = &filter.StepRange.Max
	}
	for _, d := range docs {
		out.Units = append(out.Units, unitRef{
			ID:       d.ID(),
			SourceID: d.Unit.SourceID,
			Index:    d.Unit.Index,
			Category: string(d.Category),
			Text:     d.Text(),
		})
	}

	summary := fmt.Sprintf("Found %d unit(s): %d step(s), %d warning(s), %d checklist item(s)",
		out.Count, len(out.Answer.Steps), len(out.Answer.Warnings), len(out.Answer.Checklist))
	return out, summary, nil
}

// ===== PROCEDURE EXTRACT =====

type procedureExtractInput struct {
	Text     string `json:"text,omitempty" jsonschema:"Plain text to analyze; paragraphs become units"`
	Path     string `json:"path,omitempty" jsonschema:"Local .txt, .md, .pdf or .docx file to analyze instead of text"`
	SourceID string `json:"source_id,omitempty" jsonschema:"Source ID for the units (default: file base name or input)"`
}

type procedureExtractOutput struct {
	SourceID   string                        `json:"source_id" jsonschema:"Source ID of the units"`
	Count      int                           `json:"count" jsonschema:"Number of units"`
	Documents  []document.StructuredDocument `json:"documents" jsonschema:"Structured documents in unit order"`
	Categories map[string]int                `json:"categories" jsonschema:"Unit count per category"`
}

func (s *Server) procedureExtract(ctx context.Context, args procedureExtractInput) (procedureExtractOutput, string, error) {
	hasText := strings.TrimSpace(args.Text) != ""
	hasPath := strings.TrimSpace(args.Path) != ""
	if hasText == hasPath {
		return procedureExtractOutput{}, "", fmt.Errorf("%w: exactly one of text or path is required", ErrInvalidInput)
	}

	sourceID := args.SourceID
	var units []document.TextUnit
	var err error
	if hasPath {
		if sourceID == "" {
			sourceID = loader.SourceID(args.Path)
		}
		units, err = loader.LoadFile(ctx, args.Path, sourceID, s.config.MaxFileSize)
	} else {
		if sourceID == "" {
			sourceID = "input"
		}
		units, err = (&loader.TextLoader{}).Load(ctx, strings.NewReader(args.Text), sourceID)
	}
	if err != nil {
		return procedureExtractOutput{}, "", err
	}

	docs, err := s.builder.BuildAll(units)
	if err != nil {
		return procedureExtractOutput{}, "", err
	}

	out := procedureExtractOutput{
		SourceID:   sourceID,
		Count:      len(docs),
		Documents:  docs,
		Categories: make(map[string]int),
	}
	for _, d := range docs {
		out.Categories[string(d.Category)]++
	}
	return out, fmt.Sprintf("Extracted %d unit(s) from %s", out.Count, sourceID), nil
}

// ===== DOCUMENT LIST =====

type documentListInput struct {
	Label string `json:"label,omitempty" jsonschema:"Only documents carrying this label, as key or key=value"`
}

type documentSummary struct {
	SourceID   string            `json:"source_id" jsonschema:"Source document ID"`
	Path       string            `json:"path" jsonschema:"Ingested file path"`
	Format     string            `json:"format" jsonschema:"File format"`
	Units      int               `json:"units" jsonschema:"Number of indexed units"`
	Pages      int               `json:"pages,omitempty" jsonschema:"Page count for PDF files"`
	Categories map[string]int    `json:"categories" jsonschema:"Unit count per category"`
	Labels     map[string]string `json:"labels" jsonschema:"User labels"`
	UpdatedAt  string            `json:"updated_at" jsonschema:"Last update time (RFC 3339)"`
}

type documentListOutput struct {
	Documents []documentSummary `json:"documents" jsonschema:"Ingested documents sorted by source ID"`
	Count     int               `json:"count" jsonschema:"Number of documents returned"`
}

func (s *Server) documentList(ctx context.Context, args documentListInput) (documentListOutput, string, error) {
	entries, err := s.lister.List()
	if err != nil {
		return documentListOutput{}, "", err
	}

	key, value, byValue := strings.Cut(args.Label, "=")
	out := documentListOutput{Documents: make([]documentSummary, 0, len(entries))}
	for _, e := range entries {
		if key != "" {
			v, ok := e.Labels[key]
			if !ok || (byValue && v != value) {
				continue
			}
		}
		sum := documentSummary{
			SourceID:   e.SourceID,
			Path:       e.Path,
			Format:     e.Format,
			Units:      e.Units,
			Pages:      e.Pages,
			Categories: e.Categories,
			Labels:     e.Labels,
			UpdatedAt:  e.UpdatedAt.Format(time.RFC3339),
		}
		if sum.Categories == nil {
			sum.Categories = map[string]int{}
		}
		if sum.Labels == nil {
			sum.Labels = map[string]string{}
		}
		out.Documents = append(out.Documents, sum)
	}
	out.Count = len(out.Documents)
	return out, fmt.Sprintf("Found %d document(s)", out.Count), nil
}
