package pdf

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const lineHeight = 5

// digestRenderer walks the goldmark AST and draws it with fpdf. It
// covers the node kinds digest markdown produces; anything else renders
// as plain text through the default Text handling.
type digestRenderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	font   string
	size   float64

	tr       func(string) string
	heading  int
	bold     bool
	italic   bool
	mono     bool
	counters []int
}

func (r *digestRenderer) render(root ast.Node) error {
	r.tr = r.pdf.UnicodeTranslatorFromDescriptor("")
	return ast.Walk(root, r.walk)
}

func (r *digestRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.handleHeading(node, entering)

	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight)
			r.pdf.Ln(2)
		}

	case *ast.TextBlock:
		if !entering {
			r.pdf.Ln(lineHeight)
		}

	case *ast.Text:
		if entering {
			r.writeText(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}

	case *ast.Emphasis:
		if node.Level >= 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}

	case *ast.CodeSpan:
		r.mono = entering

	case *ast.List:
		if entering {
			start := 0
			if node.IsOrdered() {
				start = node.Start
			}
			r.counters = append(r.counters, start)
		} else {
			r.counters = r.counters[:len(r.counters)-1]
			r.pdf.Ln(2)
		}

	case *ast.ListItem:
		if entering {
			r.writeListMarker()
		}

	case *ast.ThematicBreak:
		if entering {
			r.drawRule()
		}

	case *extast.Table:
		if entering {
			r.renderTable(node)
		}
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (r *digestRenderer) handleHeading(node *ast.Heading, entering bool) {
	size := headingSize(node.Level)
	if entering {
		r.heading = node.Level
		r.pdf.Ln(3)
		r.pdf.SetFont(r.font, "B", size)
	} else {
		r.heading = 0
		r.pdf.Ln(size * 0.55)
		r.pdf.Ln(2)
		r.applyFont()
	}
}

func (r *digestRenderer) writeText(text string) {
	r.applyFont()
	r.pdf.Write(lineHeight, r.tr(text))
}

func (r *digestRenderer) writeListMarker() {
	r.applyFont()

	left, _, _, _ := r.pdf.GetMargins()
	depth := len(r.counters)
	r.pdf.SetX(left + float64(depth-1)*5)

	if depth > 0 && r.counters[depth-1] > 0 {
		r.pdf.Write(lineHeight, fmt.Sprintf("%d. ", r.counters[depth-1]))
		r.counters[depth-1]++
	} else {
		r.pdf.Write(lineHeight, r.tr("• "))
	}
}

func (r *digestRenderer) drawRule() {
	pageWidth, _ := r.pdf.GetPageSize()
	left, _, right, _ := r.pdf.GetMargins()

	r.pdf.Ln(3)
	y := r.pdf.GetY()
	r.pdf.SetDrawColor(180, 180, 180)
	r.pdf.Line(left, y, pageWidth-right, y)
	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.Ln(3)
}

// renderTable draws the whole table as a grid of equal-width cells,
// header row filled. Cell content is reduced to plain text.
func (r *digestRenderer) renderTable(table *extast.Table) {
	var header []string
	var rows [][]string

	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch section := child.(type) {
		case *extast.TableHeader:
			header = r.rowCells(section)
		case *extast.TableRow:
			rows = append(rows, r.rowCells(section))
		}
	}

	columns := len(header)
	if columns == 0 && len(rows) > 0 {
		columns = len(rows[0])
	}
	if columns == 0 {
		return
	}

	pageWidth, _ := r.pdf.GetPageSize()
	left, _, right, _ := r.pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(columns)

	if len(header) > 0 {
		r.pdf.SetFont(r.font, "B", r.size)
		r.pdf.SetFillColor(235, 235, 235)
		for _, cell := range header {
			r.pdf.CellFormat(colWidth, lineHeight+1.5, r.tr(cell), "1", 0, "L", true, 0, "")
		}
		r.pdf.Ln(lineHeight + 1.5)
	}

	r.applyFont()
	for _, row := range rows {
		for i := 0; i < columns; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			r.pdf.CellFormat(colWidth, lineHeight+1.5, r.tr(cell), "1", 0, "L", false, 0, "")
		}
		r.pdf.Ln(lineHeight + 1.5)
	}
	r.pdf.Ln(2)
}

func (r *digestRenderer) rowCells(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, strings.TrimSpace(r.nodeText(cell)))
	}
	return cells
}

// nodeText flattens a subtree to the text it contains.
func (r *digestRenderer) nodeText(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := child.(*ast.Text); ok {
				sb.Write(t.Segment.Value(r.source))
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func (r *digestRenderer) applyFont() {
	if r.heading > 0 {
		r.pdf.SetFont(r.font, "B", headingSize(r.heading))
		return
	}
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	if r.mono {
		r.pdf.SetFont("Courier", style, r.size)
		return
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 13
	case 3:
		return 11
	default:
		return 10
	}
}
