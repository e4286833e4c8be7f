// Package gridsource reads grid descriptions from YAML, JSON, HTML and
// Markdown files into layout grids.
package gridsource

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pboffice01/PDFGeneral/fonts"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/layout"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

// MaxGridCells bounds rows times columns for every source. The layout keeps
// one coverage flag per cell, so a single oversized span must not be able
// to exhaust memory.
const MaxGridCells = 1 << 20

// Span attribute clamps, as browsers apply them.
const (
	maxColSpan = 1000
	maxRowSpan = 65534
)

func checkArea(rows, cols int) error {
	if rows > 0 && cols > MaxGridCells/rows {
		return pdferr.New(pdferr.InvalidInput, "grid of %d x %d cells exceeds the limit of %d", rows, cols, MaxGridCells)
	}
	return nil
}

// Format names a grid source syntax.
type Format string

const (
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Document is the serialized form of a layout.Grid. Spans use the same
// "extra cells" counting as the layout engine: count 1 covers two cells.
type Document struct {
	Rows         int       `yaml:"rows" json:"rows"`
	Columns      int       `yaml:"columns" json:"columns"`
	RowHeights   []float64 `yaml:"row_heights,omitempty" json:"row_heights,omitempty"`
	ColumnWidths []float64 `yaml:"column_widths,omitempty" json:"column_widths,omitempty"`
	RowSpans     []Span    `yaml:"row_spans,omitempty" json:"row_spans,omitempty"`
	ColumnSpans  []Span    `yaml:"column_spans,omitempty" json:"column_spans,omitempty"`
	Borders      []Border  `yaml:"borders,omitempty" json:"borders,omitempty"`
	Text         []Run     `yaml:"text,omitempty" json:"text,omitempty"`
}

// Span annotates the cell at row-major index Cell.
type Span struct {
	Cell  int `yaml:"cell" json:"cell"`
	Count int `yaml:"count" json:"count"`
}

// Border sets the border width of a cell.
type Border struct {
	Cell  int     `yaml:"cell" json:"cell"`
	Width float64 `yaml:"width" json:"width"`
}

// Run is one line of text. Font is a standard font name or a TrueType file
// path; empty selects the engine default.
type Run struct {
	Cell  int    `yaml:"cell" json:"cell"`
	Text  string `yaml:"text" json:"text"`
	Order int    `yaml:"order,omitempty" json:"order,omitempty"`
	Font  string `yaml:"font,omitempty" json:"font,omitempty"`
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	}
	return "", pdferr.New(pdferr.InvalidInput, "unknown grid source extension %q", filepath.Ext(path))
}

// Load reads path and parses it in the format implied by its extension.
func Load(path string) (layout.Grid, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return layout.Grid{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return layout.Grid{}, pdferr.Wrap(pdferr.InvalidInput, err, "read grid source")
	}
	return Parse(format, data)
}

// Parse decodes data in the given format.
func Parse(format Format, data []byte) (layout.Grid, error) {
	switch format {
	case FormatYAML, FormatJSON:
		return ParseYAML(data)
	case FormatHTML:
		return ParseHTML(data)
	case FormatMarkdown:
		return ParseMarkdown(data)
	}
	return layout.Grid{}, pdferr.New(pdferr.InvalidInput, "unknown grid source format %q", format)
}

// ParseYAML decodes a Document. JSON input is accepted as well, being a
// subset of YAML. Unknown keys are rejected.
func ParseYAML(data []byte) (layout.Grid, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return layout.Grid{}, pdferr.Wrap(pdferr.InvalidInput, err, "decode grid document")
	}
	return doc.Grid()
}

// Grid converts the document, loading any fonts its runs name.
func (d Document) Grid() (layout.Grid, error) {
	if err := checkArea(d.Rows, d.Columns); err != nil {
		return layout.Grid{}, err
	}
	g := layout.Grid{
		RowCount:     d.Rows,
		ColumnCount:  d.Columns,
		RowHeights:   d.RowHeights,
		ColumnWidths: d.ColumnWidths,
	}
	for _, s := range d.RowSpans {
		g.RowSpans = append(g.RowSpans, layout.SpanAnnotation{CellIndex: s.Cell, SpanCount: s.Count})
	}
	for _, s := range d.ColumnSpans {
		g.ColumnSpans = append(g.ColumnSpans, layout.SpanAnnotation{CellIndex: s.Cell, SpanCount: s.Count})
	}
	for _, b := range d.Borders {
		g.Borders = append(g.Borders, layout.BorderAnnotation{CellIndex: b.Cell, Width: b.Width})
	}
	resolve := fontResolver()
	for _, r := range d.Text {
		font, err := resolve(r.Font)
		if err != nil {
			return layout.Grid{}, err
		}
		g.TextRuns = append(g.TextRuns, layout.TextRun{CellIndex: r.Cell, Text: r.Text, Order: r.Order, Font: font})
	}
	return g, nil
}

// fontResolver returns a lookup that hands out one *semantic.Font per name,
// so runs naming the same font share a resource in the output.
func fontResolver() func(string) (*semantic.Font, error) {
	seen := make(map[string]*semantic.Font)
	return func(name string) (*semantic.Font, error) {
		if name == "" {
			return nil, nil
		}
		if f, ok := seen[name]; ok {
			return f, nil
		}
		var f *semantic.Font
		if fonts.IsStandard(name) {
			f = fonts.Standard(name)
		} else {
			var err error
			if f, err = fonts.Default(name); err != nil {
				return nil, err
			}
		}
		seen[name] = f
		return f, nil
	}
}

// cell is a merged cell found in a table source.
type cell struct {
	row, col         int
	rowSpan, colSpan int
	lines            []string
	border           *float64
}

// table collects cells in source order and converts them to annotations.
type table struct {
	cells        []*cell
	rows, cols   int
	rowHeights   map[int]float64
	columnWidths []float64
}

func (t *table) add(c *cell) {
	t.cells = append(t.cells, c)
	t.rows = max(t.rows, c.row+c.rowSpan)
	t.cols = max(t.cols, c.col+c.colSpan)
}

func (t *table) grid() (layout.Grid, error) {
	if t.rows == 0 || t.cols == 0 {
		return layout.Grid{}, pdferr.New(pdferr.InvalidInput, "table has no cells")
	}
	if err := checkArea(t.rows, t.cols); err != nil {
		return layout.Grid{}, err
	}
	g := layout.Grid{RowCount: t.rows, ColumnCount: t.cols}
	if len(t.columnWidths) >= t.cols {
		g.ColumnWidths = t.columnWidths[:t.cols]
	}
	if len(t.rowHeights) > 0 {
		g.RowHeights = make([]float64, t.rows)
		for r, h := range t.rowHeights {
			if r < t.rows {
				g.RowHeights[r] = h
			}
		}
	}
	for _, c := range t.cells {
		idx := c.row*t.cols + c.col
		if c.rowSpan > 1 {
			g.RowSpans = append(g.RowSpans, layout.SpanAnnotation{CellIndex: idx, SpanCount: c.rowSpan - 1})
		}
		if c.colSpan > 1 {
			g.ColumnSpans = append(g.ColumnSpans, layout.SpanAnnotation{CellIndex: idx, SpanCount: c.colSpan - 1})
		}
		if c.border != nil {
			g.Borders = append(g.Borders, layout.BorderAnnotation{CellIndex: idx, Width: *c.border})
		}
		for i, line := range c.lines {
			g.TextRuns = append(g.TextRuns, layout.TextRun{CellIndex: idx, Text: line, Order: i})
		}
	}
	return g, nil
}

// splitLines trims each line and drops blank ones.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	return v, err == nil
}
