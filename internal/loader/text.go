package loader

import (
	"bytes"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/procrag/internal/document"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// fallbackEncodings are tried in order when the input is not valid UTF-8.
// Shift_JIS here decodes the Windows-31J (cp932) superset.
var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"shift_jis", japanese.ShiftJIS},
	{"euc-jp", japanese.EUCJP},
}

// TextLoader loads plain text. Paragraphs separated by blank lines become
// units.
type TextLoader struct {
	// Encoding is set after Load to the encoding that decoded the input.
	Encoding string
}

// Load implements Loader.
func (l *TextLoader) Load(ctx context.Context, r io.Reader, sourceID string) ([]document.TextUnit, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, name, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	l.Encoding = name
	return units(sourceID, paragraphs(text))
}

// decodeText returns data as UTF-8, trying UTF-8 first and then each
// fallback encoding. A decoding that yields replacement characters fails.
// EUC-JP bytes often decode cleanly as Shift_JIS half-width katakana, so
// among clean decodings the one with the fewest half-width katakana wins,
// earlier encodings breaking ties.
func decodeText(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	best, bestName, bestScore := "", "", -1
	for _, fe := range fallbackEncodings {
		out, err := fe.enc.NewDecoder().Bytes(data)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		score := halfwidthKatakana(out)
		if bestScore < 0 || score < bestScore {
			best, bestName, bestScore = string(out), fe.name, score
		}
	}
	if bestScore < 0 {
		return "", "", ErrUndecodable
	}
	return best, bestName, nil
}

func halfwidthKatakana(b []byte) int {
	n := 0
	for _, r := range string(b) {
		if r >= 0xFF61 && r <= 0xFF9F {
			n++
		}
	}
	return n
}

// paragraphs splits text on blank lines, keeping line breaks inside a
// paragraph.
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		out     []string
		current strings.Builder
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(strings.TrimRight(line, " \t\r"))
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
