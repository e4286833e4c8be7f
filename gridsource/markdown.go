package gridsource

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pboffice01/PDFGeneral/layout"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

// Merge markers for Markdown tables, which have no span syntax. A cell
// holding only MergeLeft joins the cell to its left; MergeUp joins the cell
// above.
const (
	MergeLeft = "<<"
	MergeUp   = "^^"
)

// ParseMarkdown reads the first GitHub-style table of a Markdown document.
// The header row becomes row 0. <br> inside a cell starts a new line.
func ParseMarkdown(data []byte) (layout.Grid, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(data))

	var tbl *east.Table
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*east.Table); ok && entering {
			tbl = t
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if tbl == nil {
		return layout.Grid{}, pdferr.New(pdferr.InvalidInput, "markdown has no table")
	}

	t := &table{}
	// owner maps each slot to the cell covering it.
	var owner [][]*cell
	row := 0
	for r := tbl.FirstChild(); r != nil; r = r.NextSibling() {
		if _, isHeader := r.(*east.TableHeader); !isHeader {
			if _, isRow := r.(*east.TableRow); !isRow {
				continue
			}
		}
		owner = append(owner, nil)
		col := 0
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			if _, ok := c.(*east.TableCell); !ok {
				continue
			}
			content := markdownCellText(c, data)
			var target *cell
			switch strings.TrimSpace(content) {
			case MergeLeft:
				if col > 0 {
					target = owner[row][col-1]
					if target.row == row {
						target.colSpan = max(target.colSpan, col-target.col+1)
					}
				}
			case MergeUp:
				if row > 0 && col < len(owner[row-1]) && owner[row-1][col] != nil {
					target = owner[row-1][col]
					if target.col == col {
						target.rowSpan = max(target.rowSpan, row-target.row+1)
					}
				}
			}
			if target == nil {
				target = &cell{row: row, col: col, rowSpan: 1, colSpan: 1, lines: splitLines(content)}
				t.cells = append(t.cells, target)
			}
			owner[row] = append(owner[row], target)
			col++
		}
		t.cols = max(t.cols, col)
		row++
	}
	t.rows = row
	return t.grid()
}

// markdownCellText collects the inline text of a table cell.
func markdownCellText(n ast.Node, source []byte) string {
	var b bytes.Buffer
	_ = ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				if tag := strings.ToLower(string(seg.Value(source))); strings.HasPrefix(tag, "<br") {
					b.WriteByte('\n')
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
