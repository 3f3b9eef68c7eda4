package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/fyrsmithlabs/procrag/internal/document"
)

// DOCXLoader loads Word documents. A heading-styled paragraph starts a new
// unit; body paragraphs join the current unit one per line.
type DOCXLoader struct{}

// Load implements Loader.
func (l *DOCXLoader) Load(ctx context.Context, r io.Reader, sourceID string) ([]document.TextUnit, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing docx: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		sections []string
		current  strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := paragraphText(para)
		if text == "" {
			continue
		}
		if headingLevel(paragraphStyle(para)) > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(text)
	}
	flush()

	return units(sourceID, sections)
}

func paragraphStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// headingLevel maps a paragraph style to a heading level, 0 for body text.
// English ("Heading2", "heading 2") and Japanese ("見出し 2") style names
// are recognized, as is "Title".
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "title":
		return 1
	case strings.HasPrefix(s, "heading"):
		s = strings.TrimPrefix(s, "heading")
	case strings.HasPrefix(s, "見出し"):
		s = strings.TrimPrefix(s, "見出し")
	default:
		return 0
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		return int(s[0] - '0')
	}
	return 0
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
