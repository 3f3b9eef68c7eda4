package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fyrsmithlabs/procrag/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFLoader loads PDF manuals, one unit per page that has text. A unit's
// index is its page number minus one, so blank pages leave gaps.
type PDFLoader struct {
	// Pages is set after Load to the document's page count.
	Pages int
}

// Load implements Loader.
func (l *PDFLoader) Load(ctx context.Context, r io.Reader, sourceID string) ([]document.TextUnit, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}

	reader, err := openPDF(data)
	if err != nil {
		return nil, err
	}
	l.Pages = reader.NumPage()

	var out []document.TextUnit
	for i := 1; i <= l.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(pageText(reader, i))
		if text == "" {
			continue
		}
		out = append(out, document.NewTextUnit(sourceID, i-1, text))
	}
	if len(out) == 0 {
		return nil, ErrNoText
	}
	return out, nil
}

func openPDF(data []byte) (reader *pdflib.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err = pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdflib.ErrInvalidPassword) {
			return nil, ErrEncrypted
		}
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	return reader, nil
}

// pageText extracts page i's plain text. Pages the library cannot
// interpret yield "".
func pageText(reader *pdflib.Reader, i int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	page := reader.Page(i)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
