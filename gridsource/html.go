package gridsource

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pboffice01/PDFGeneral/layout"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

// ParseHTML reads the first <table> of an HTML document. rowspan and colspan
// become span annotations; <br> and block children start new lines. A
// data-border attribute sets a cell's border width, <col width> gives
// relative column widths and <tr height> a minimum row height.
func ParseHTML(data []byte) (layout.Grid, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return layout.Grid{}, pdferr.Wrap(pdferr.InvalidInput, err, "parse html")
	}
	tbl := findElement(doc, atom.Table)
	if tbl == nil {
		return layout.Grid{}, pdferr.New(pdferr.InvalidInput, "html has no table")
	}

	t := &table{rowHeights: make(map[int]float64)}
	// occupied marks slots covered by rowspans from earlier rows.
	occupied := make(map[[2]int]bool)
	rows := tableRows(tbl)
	row := 0
	for _, tr := range rows {
		if h, ok := parseFloat(attr(tr, "height")); ok && h > 0 {
			t.rowHeights[row] = h
		}
		col := 0
		for td := tr.FirstChild; td != nil; td = td.NextSibling {
			if td.Type != html.ElementNode || (td.DataAtom != atom.Td && td.DataAtom != atom.Th) {
				continue
			}
			for occupied[[2]int{row, col}] {
				col++
			}
			c := &cell{
				row:     row,
				col:     col,
				rowSpan: min(spanAttr(td, "rowspan", maxRowSpan), len(rows)-row),
				colSpan: spanAttr(td, "colspan", maxColSpan),
				lines:   splitLines(cellText(td)),
			}
			if err := checkArea(len(rows), col+c.colSpan); err != nil {
				return layout.Grid{}, err
			}
			if w, ok := parseFloat(attr(td, "data-border")); ok {
				c.border = &w
			}
			for r := row; r < row+c.rowSpan; r++ {
				for k := col; k < col+c.colSpan; k++ {
					occupied[[2]int{r, k}] = true
				}
			}
			t.add(c)
			col += c.colSpan
		}
		row++
	}
	t.rows = row
	t.columnWidths = colWidths(tbl)
	return t.grid()
}

// tableRows returns the rows of tbl in document order, looking through
// thead, tbody and tfoot but not into nested tables.
func tableRows(tbl *html.Node) []*html.Node {
	var rows []*html.Node
	for c := tbl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			rows = append(rows, c)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if r.Type == html.ElementNode && r.DataAtom == atom.Tr {
					rows = append(rows, r)
				}
			}
		}
	}
	return rows
}

func colWidths(tbl *html.Node) []float64 {
	var widths []float64
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Colgroup:
				walk(c)
			case atom.Col:
				w, _ := parseFloat(strings.TrimSuffix(attr(c, "width"), "%"))
				for i := spanAttr(c, "span", maxColSpan); i > 0; i-- {
					widths = append(widths, w)
				}
			}
		}
	}
	walk(tbl)
	return widths
}

// cellText flattens the text of n, turning <br> and block elements into
// line breaks.
func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Br:
				b.WriteByte('\n')
				return
			case atom.P, atom.Div, atom.Li:
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// spanAttr reads a span attribute clamped to limit; missing or invalid
// values count as 1.
func spanAttr(n *html.Node, key string, limit int) int {
	v, err := strconv.Atoi(strings.TrimSpace(attr(n, key)))
	if err != nil || v < 1 {
		return 1
	}
	return min(v, limit)
}
