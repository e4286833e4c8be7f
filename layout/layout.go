// Package layout turns a sparsely annotated grid into an ordered list of
// merged cells that partition it.
package layout

import (
	"slices"
	"sort"

	"github.com/pboffice01/PDFGeneral/fonts"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/observability"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

const (
	// DefaultBorderWidth applies to cells without a border annotation.
	DefaultBorderWidth = 0.5
	// DefaultFontSize is the size of every styled line.
	DefaultFontSize = 10
	// minColumnWidth replaces non-positive column width hints.
	minColumnWidth = 1
)

// SpanAnnotation asks for SpanCount additional rows or columns to be merged
// into the cell at CellIndex.
type SpanAnnotation struct {
	CellIndex int
	SpanCount int
}

// BorderAnnotation sets the border width of the cell at CellIndex.
type BorderAnnotation struct {
	CellIndex int
	Width     float64
}

// TextRun is one line of text in the cell at CellIndex. Runs of a cell are
// ordered by Order. A nil Font selects the engine's default font.
type TextRun struct {
	CellIndex int
	Font      *semantic.Font
	Text      string
	Order     int
}

// Grid is the input of Layout. A cell index is row*ColumnCount+column.
type Grid struct {
	RowCount     int
	ColumnCount  int
	RowHeights   []float64
	ColumnWidths []float64
	RowSpans     []SpanAnnotation
	ColumnSpans  []SpanAnnotation
	Borders      []BorderAnnotation
	TextRuns     []TextRun
}

// StyledLine is a line of text with its resolved font.
type StyledLine struct {
	Text string
	Font *semantic.Font
	Size float64
}

// MergedCell is one rectangle of the partition, anchored at (Row, Column).
type MergedCell struct {
	Row        int
	Column     int
	RowSpan    int
	ColumnSpan int
	// MinHeight is 0 when no row height hint applies.
	MinHeight   float64
	BorderWidth float64
	Lines       []StyledLine
}

// Result holds the cells in row-major anchor order and, when every column
// had a hint, the column widths.
type Result struct {
	RowCount     int
	ColumnCount  int
	Cells        []MergedCell
	ColumnWidths []float64
}

// Engine lays out grids. It is safe for concurrent use.
type Engine struct {
	fontPath    string
	defaultFont *semantic.Font
	fontSize    float64
	borderWidth float64
	logger      observability.Logger
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithDefaultFontPath loads the default font from a TrueType file, once per
// process. An empty path keeps the standard Helvetica font.
func WithDefaultFontPath(path string) Option {
	return func(e *Engine) { e.fontPath = path }
}

// WithDefaultFont uses font for runs without their own font.
func WithDefaultFont(font *semantic.Font) Option {
	return func(e *Engine) { e.defaultFont = font }
}

// WithFontSize overrides the size of styled lines.
func WithFontSize(size float64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.fontSize = size
		}
	}
}

// WithDefaultBorderWidth overrides the border width of unannotated cells.
func WithDefaultBorderWidth(w float64) Option {
	return func(e *Engine) {
		if w >= 0 {
			e.borderWidth = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a layout engine with optional configuration.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		fontSize:    DefaultFontSize,
		borderWidth: DefaultBorderWidth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = observability.OrNop(e.logger)
	return e
}

// Layout computes the merged-cell partition of grid.
//
// Span counts are additional cells beyond the anchor, so a count of 1 merges
// two cells. The first annotation per cell index wins for spans and borders;
// text runs accumulate. Oversized spans are clamped to the grid and to the
// cells earlier blocks in row-major order already own, so the result always
// partitions the grid. Annotations outside it are ignored.
func (e *Engine) Layout(grid Grid) (*Result, error) {
	if grid.RowCount <= 0 || grid.ColumnCount <= 0 {
		return nil, pdferr.New(pdferr.InvalidDimension, "grid is %d x %d", grid.RowCount, grid.ColumnCount)
	}
	font, err := e.resolveDefaultFont()
	if err != nil {
		return nil, err
	}

	rows, cols := grid.RowCount, grid.ColumnCount
	rowSpans := firstSpans(grid.RowSpans)
	colSpans := firstSpans(grid.ColumnSpans)
	borders := firstBorders(grid.Borders)
	texts := groupRuns(grid.TextRuns)

	covered := make([]bool, rows*cols)
	res := &Result{RowCount: rows, ColumnCount: cols, ColumnWidths: columnWidths(grid.ColumnWidths, cols)}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			idx := r*cols + c
			if covered[idx] {
				continue
			}
			rs := min(extent(rowSpans, idx), rows-r)
			cs := min(extent(colSpans, idx), cols-c)
			rs, cs = fitBlock(covered, cols, r, c, rs, cs)
			for rr := r; rr < r+rs; rr++ {
				for cc := c; cc < c+cs; cc++ {
					if rr != r || cc != c {
						covered[rr*cols+cc] = true
					}
				}
			}

			bw := e.borderWidth
			if v, ok := borders[idx]; ok {
				bw = max(v, 0)
			}
			res.Cells = append(res.Cells, MergedCell{
				Row:         r,
				Column:      c,
				RowSpan:     rs,
				ColumnSpan:  cs,
				MinHeight:   minHeight(grid.RowHeights, r, rs),
				BorderWidth: bw,
				Lines:       e.styledLines(texts[idx], font),
			})
		}
	}
	e.logger.Debug("grid laid out",
		observability.Int("rows", rows),
		observability.Int("columns", cols),
		observability.Int("cells", len(res.Cells)),
	)
	return res, nil
}

func (e *Engine) resolveDefaultFont() (*semantic.Font, error) {
	if e.defaultFont != nil {
		return e.defaultFont, nil
	}
	return fonts.Default(e.fontPath)
}

func (e *Engine) styledLines(runs []TextRun, def *semantic.Font) []StyledLine {
	if len(runs) == 0 {
		return []StyledLine{{Font: def, Size: e.fontSize}}
	}
	lines := make([]StyledLine, len(runs))
	for i, run := range runs {
		font := run.Font
		if font == nil {
			font = def
		}
		lines[i] = StyledLine{Text: run.Text, Font: font, Size: e.fontSize}
	}
	return lines
}

func firstSpans(list []SpanAnnotation) map[int]int {
	m := make(map[int]int, len(list))
	for _, a := range list {
		if _, ok := m[a.CellIndex]; !ok {
			m[a.CellIndex] = a.SpanCount
		}
	}
	return m
}

func firstBorders(list []BorderAnnotation) map[int]float64 {
	m := make(map[int]float64, len(list))
	for _, a := range list {
		if _, ok := m[a.CellIndex]; !ok {
			m[a.CellIndex] = a.Width
		}
	}
	return m
}

func groupRuns(runs []TextRun) map[int][]TextRun {
	m := make(map[int][]TextRun)
	for _, run := range runs {
		m[run.CellIndex] = append(m[run.CellIndex], run)
	}
	for _, group := range m {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Order < group[j].Order })
	}
	return m
}

// fitBlock shrinks a block anchored at (r, c) so that it stops before any
// cell an earlier block already owns: first along row r, then downwards
// across the remaining column range.
func fitBlock(covered []bool, cols, r, c, rs, cs int) (int, int) {
	for dc := 1; dc < cs; dc++ {
		if covered[r*cols+c+dc] {
			cs = dc
			break
		}
	}
	for dr := 1; dr < rs; dr++ {
		row := (r + dr) * cols
		if slices.Contains(covered[row+c:row+c+cs], true) {
			return dr, cs
		}
	}
	return rs, cs
}

func extent(spans map[int]int, idx int) int {
	if n, ok := spans[idx]; ok && n > 0 {
		return n + 1
	}
	return 1
}

func minHeight(hints []float64, row, span int) float64 {
	h := 0.0
	for r := row; r < row+span && r < len(hints); r++ {
		if hints[r] > 0 {
			h += hints[r]
		}
	}
	return h
}

func columnWidths(hints []float64, cols int) []float64 {
	if len(hints) < cols {
		return nil
	}
	widths := make([]float64, cols)
	for i := range widths {
		widths[i] = hints[i]
		if widths[i] <= 0 {
			widths[i] = minColumnWidth
		}
	}
	return widths
}
