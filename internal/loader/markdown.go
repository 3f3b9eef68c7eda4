package loader

import (
	"bytes"
	"context"
	"io"

	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownLoader loads Markdown. Each heading starts a unit holding the
// heading line and its body as raw source, so list enumerators and
// emphasis markers survive for the extractors. Text before the first
// heading is its own unit.
type MarkdownLoader struct{}

// Load implements Loader.
func (l *MarkdownLoader) Load(ctx context.Context, r io.Reader, sourceID string) ([]document.TextUnit, error) {
	src, err := readAll(r)
	if err != nil {
		return nil, err
	}
	src = bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))

	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := []int{0}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		if start, ok := headingStart(h, src); ok && start > bounds[len(bounds)-1] {
			bounds = append(bounds, start)
		}
	}
	bounds = append(bounds, len(src))

	sections := make([]string, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		sections = append(sections, string(src[bounds[i]:bounds[i+1]]))
	}
	return units(sourceID, sections)
}

// headingStart returns the offset of the line holding the heading's text.
// Headings without text carry no position and are not boundaries.
func headingStart(h *ast.Heading, src []byte) (int, bool) {
	lines := h.Lines()
	if lines.Len() == 0 {
		return 0, false
	}
	start := lines.At(0).Start
	if i := bytes.LastIndexByte(src[:start], '\n'); i >= 0 {
		return i + 1, true
	}
	return 0, true
}
