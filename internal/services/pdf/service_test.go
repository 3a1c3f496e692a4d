package pdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const sampleDigest = `# Daily Digest

Processed **42** items, posted 3 signals.

## Posted

| Time | Instrument | Action |
|------|------------|--------|
| 14:02 | SPY | BUY |
| 15:40 | USO | SELL |

---

## Notes

- payrolls beat forecast
- crude inventories drew down
`

func TestConvertMarkdownToPDF(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)

	tests := []struct {
		name     string
		markdown string
		title    string
		wantErr  bool
	}{
		{
			name:     "Digest Markdown",
			markdown: sampleDigest,
			title:    "Daily Digest",
			wantErr:  false,
		},
		{
			name:     "Empty Markdown",
			markdown: "",
			title:    "Empty Doc",
			wantErr:  false,
		},
		{
			name:     "Bold and Italic",
			markdown: "Normal **Bold** *Italic* ***BoldItalic***",
			title:    "Styling",
			wantErr:  false,
		},
		{
			name:     "Horizontal Rule and List",
			markdown: "# Header\n\n---\n\n- first\n- second\n",
			title:    "Sections",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.ConvertMarkdownToPDF(tt.markdown, tt.title)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, pdfBytes)
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestConvertMarkdownToPDF_Tables(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(logger)

	pdfBytes, err := service.ConvertMarkdownToPDF(sampleDigest, "Table Report")
	assert.NoError(t, err)
	assert.NotNil(t, pdfBytes)
	assert.Greater(t, len(pdfBytes), 500)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}

func TestHeadingSize(t *testing.T) {
	cases := []struct {
		level int
		size  float64
	}{
		{1, 16},
		{2, 13},
		{3, 11},
		{4, 10},
		{6, 10},
	}
	for _, tc := range cases {
		if got := headingSize(tc.level); got != tc.size {
			t.Errorf("Expected size %v for level %d, got %v", tc.size, tc.level, got)
		}
	}
}

func TestRowCellsFlattensInlineMarkup(t *testing.T) {
	source := []byte("| **Instrument** | Action |\n|------|------|\n| SPY | BUY |\n")

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(source))

	var table *extast.Table
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if tbl, ok := n.(*extast.Table); ok {
				table = tbl
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	if table == nil {
		t.Fatal("Expected a table node")
	}

	renderer := &digestRenderer{source: source}

	var header []string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		if h, ok := child.(*extast.TableHeader); ok {
			header = renderer.rowCells(h)
		}
	}

	if len(header) != 2 {
		t.Fatalf("Expected 2 header cells, got %d", len(header))
	}
	if header[0] != "Instrument" {
		t.Errorf("Expected bold markup stripped to 'Instrument', got %q", header[0])
	}
	if header[1] != "Action" {
		t.Errorf("Expected 'Action', got %q", header[1])
	}
}

func TestConvertMarkdownToPDFDeterministicStructure(t *testing.T) {
	service := NewService(arbor.NewLogger())

	markdown := strings.Repeat("Paragraph of digest text.\n\n", 200)
	data, err := service.ConvertMarkdownToPDF(markdown, "Long")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.Contains(data, []byte("/Page")) {
		t.Error("Expected page objects in output")
	}
}
