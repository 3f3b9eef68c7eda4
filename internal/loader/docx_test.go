package loader

import (
	"bytes"
	"context"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, paras ...[2]string) []byte {
	t.Helper()
	w := docx.New().WithDefaultTheme()
	for _, p := range paras {
		para := w.AddParagraph()
		para.AddText(p[1])
		if p[0] != "" {
			para.Properties = &docx.ParagraphProperties{Style: &docx.Style{Val: p[0]}}
		}
	}
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDOCXLoader_HeadingsSplitUnits(t *testing.T) {
	data := buildDOCX(t,
		[2]string{"", "Pump manual"},
		[2]string{"Heading1", "Procedure"},
		[2]string{"", "Step 1 turn off the power"},
		[2]string{"", "Step 2 close the valve"},
		[2]string{"Heading2", "Warnings"},
		[2]string{"", "Danger: high voltage"},
	)

	us, err := (&DOCXLoader{}).Load(context.Background(), bytes.NewReader(data), "sop.docx")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Pump manual",
		"Procedure\nStep 1 turn off the power\nStep 2 close the valve",
		"Warnings\nDanger: high voltage",
	}, texts(us))
	assert.Equal(t, []int{0, 1, 2}, indexes(us))
}

func TestDOCXLoader_NoText(t *testing.T) {
	data := buildDOCX(t, [2]string{"", "   "})
	_, err := (&DOCXLoader{}).Load(context.Background(), bytes.NewReader(data), "blank.docx")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestDOCXLoader_Malformed(t *testing.T) {
	_, err := (&DOCXLoader{}).Load(context.Background(), bytes.NewReader([]byte("PK not a zip")), "bad.docx")
	assert.Error(t, err)
}

func TestHeadingLevel(t *testing.T) {
	tests := map[string]int{
		"Heading1":  1,
		"heading 2": 2,
		"見出し 3":    3,
		"Title":     1,
		"Normal":    0,
		"":          0,
		"HeadingX":  0,
		"Heading10": 0,
	}
	for style, want := range tests {
		assert.Equal(t, want, headingLevel(style), style)
	}
}
