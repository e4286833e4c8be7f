package builder

// Grid is a table of merged cells. Columns holds absolute column widths;
// cells address rows and columns from 0 and must not overlap.
type Grid struct {
	Columns []float64
	Cells   []GridCell
}

// GridCell is one merged cell anchored at (Row, Column).
type GridCell struct {
	Row, Column      int
	RowSpan, ColSpan int
	// MinHeight is the minimum total height of the spanned rows; 0 means auto.
	MinHeight   float64
	BorderWidth float64
	Lines       []GridLine
	HAlign      HAlign
	VAlign      VAlign
}

// GridLine is one line of text inside a cell. Font names a font registered
// on the builder; empty selects the default font.
type GridLine struct {
	Text     string
	Font     string
	FontSize float64
}

// GridOptions configures grid rendering. Y is the top edge of the grid.
type GridOptions struct {
	X            float64
	Y            float64
	Padding      float64
	DefaultSize  float64
	TopMargin    float64
	BottomMargin float64
	BorderColor  Color
}

// HAlign controls horizontal text alignment within a cell.
type HAlign string

const (
	HAlignLeft   HAlign = "left"
	HAlignCenter HAlign = "center"
	HAlignRight  HAlign = "right"
)

// VAlign controls vertical text alignment within a cell.
type VAlign string

const (
	VAlignTop    VAlign = "top"
	VAlignMiddle VAlign = "middle"
	VAlignBottom VAlign = "bottom"
)

const lineSpacing = 1.2

// DrawGrid renders the grid starting at opts.Y and continues on new pages
// as needed. Rows joined by a row span form a band that is never split
// across pages; a band taller than a whole page is drawn from the top of a
// fresh page and clipped by the page edge. It returns the builder of the
// last page drawn on.
func (p *pageBuilderImpl) DrawGrid(grid Grid, opts GridOptions) PageBuilder {
	if len(grid.Columns) == 0 || len(grid.Cells) == 0 {
		return p
	}
	if opts.Padding == 0 {
		opts.Padding = 3
	}
	if opts.DefaultSize == 0 {
		opts.DefaultSize = 10
	}
	if opts.Y == 0 {
		opts.Y = p.page.MediaBox.URY - opts.TopMargin
	}

	cells := normalizeCells(grid)
	heights := rowHeights(cells, opts)
	colX := make([]float64, len(grid.Columns)+1)
	colX[0] = opts.X
	for i, w := range grid.Columns {
		colX[i+1] = colX[i] + w
	}
	byRow := make(map[int][]GridCell)
	for _, c := range cells {
		byRow[c.Row] = append(byRow[c.Row], c)
	}

	cur := p
	curY := opts.Y
	for _, band := range bands(cells, len(heights)) {
		bandHeight := sumRange(heights, band[0], band[1])
		if curY-bandHeight < opts.BottomMargin && curY < opts.Y {
			cur = cur.nextPage()
			curY = opts.Y
		}
		for r := band[0]; r < band[1]; r++ {
			top := curY - sumRange(heights, band[0], r)
			for _, cell := range byRow[r] {
				x := colX[cell.Column]
				width := colX[cell.Column+cell.ColSpan] - x
				height := sumRange(heights, r, r+cell.RowSpan)
				cur.drawCell(cell, x, top, width, height, opts)
			}
		}
		curY -= bandHeight
	}
	return cur
}

// nextPage starts a page with the same geometry as p.
func (p *pageBuilderImpl) nextPage() *pageBuilderImpl {
	next := p.parent.NewPage(p.page.MediaBox.URX, p.page.MediaBox.URY).(*pageBuilderImpl)
	next.page.MediaBox = p.page.MediaBox
	next.page.Rotate = p.page.Rotate
	return next
}

func (p *pageBuilderImpl) drawCell(cell GridCell, x, top, width, height float64, opts GridOptions) {
	if cell.BorderWidth > 0 {
		p.DrawRectangle(x, top-height, width, height, RectOptions{
			Stroke:      true,
			StrokeColor: opts.BorderColor,
			LineWidth:   cell.BorderWidth,
		})
	}
	block := 0.0
	for _, line := range cell.Lines {
		block += lineHeight(line, opts)
	}
	var textTop float64
	switch cell.VAlign {
	case VAlignTop:
		textTop = top - opts.Padding
	case VAlignBottom:
		textTop = top - height + opts.Padding + block
	default:
		textTop = top - (height-block)/2
	}
	for _, line := range cell.Lines {
		size := lineSize(line, opts)
		baseline := textTop - size*0.9
		textTop -= size * lineSpacing
		if line.Text == "" {
			continue
		}
		tx := x + opts.Padding
		if cell.HAlign == HAlignCenter || cell.HAlign == HAlignRight {
			tw := p.parent.measureText(line.Text, line.Font, size)
			avail := width - 2*opts.Padding
			if cell.HAlign == HAlignCenter {
				tx += (avail - tw) / 2
			} else {
				tx += avail - tw
			}
		}
		p.DrawText(line.Text, tx, baseline, TextOptions{Font: line.Font, FontSize: size})
	}
}

// normalizeCells clamps spans to the grid and fills alignment defaults.
func normalizeCells(grid Grid) []GridCell {
	out := make([]GridCell, 0, len(grid.Cells))
	for _, c := range grid.Cells {
		if c.Row < 0 || c.Column < 0 || c.Column >= len(grid.Columns) {
			continue
		}
		c.RowSpan = max(c.RowSpan, 1)
		c.ColSpan = min(max(c.ColSpan, 1), len(grid.Columns)-c.Column)
		if c.HAlign == "" {
			c.HAlign = HAlignLeft
		}
		if c.VAlign == "" {
			c.VAlign = VAlignMiddle
		}
		out = append(out, c)
	}
	return out
}

// rowHeights gives each row the height its single-row cells need, then
// grows the last row of any spanning cell that needs more than its rows
// provide.
func rowHeights(cells []GridCell, opts GridOptions) []float64 {
	rows := 0
	for _, c := range cells {
		rows = max(rows, c.Row+c.RowSpan)
	}
	empty := opts.DefaultSize*lineSpacing + 2*opts.Padding
	heights := make([]float64, rows)
	for i := range heights {
		heights[i] = empty
	}
	for _, c := range cells {
		if c.RowSpan == 1 {
			heights[c.Row] = max(heights[c.Row], cellHeight(c, opts))
		}
	}
	for _, c := range cells {
		if c.RowSpan == 1 {
			continue
		}
		if deficit := cellHeight(c, opts) - sumRange(heights, c.Row, c.Row+c.RowSpan); deficit > 0 {
			heights[c.Row+c.RowSpan-1] += deficit
		}
	}
	return heights
}

func cellHeight(c GridCell, opts GridOptions) float64 {
	h := 2 * opts.Padding
	for _, line := range c.Lines {
		h += lineHeight(line, opts)
	}
	return max(h, c.MinHeight)
}

func lineSize(line GridLine, opts GridOptions) float64 {
	if line.FontSize > 0 {
		return line.FontSize
	}
	return opts.DefaultSize
}

func lineHeight(line GridLine, opts GridOptions) float64 {
	return lineSize(line, opts) * lineSpacing
}

// bands splits rows [0, rows) into half-open ranges that no row span
// crosses.
func bands(cells []GridCell, rows int) [][2]int {
	reach := make([]int, rows)
	for i := range reach {
		reach[i] = i + 1
	}
	for _, c := range cells {
		reach[c.Row] = max(reach[c.Row], c.Row+c.RowSpan)
	}
	var out [][2]int
	for start := 0; start < rows; {
		end := reach[start]
		for r := start; r < end; r++ {
			end = max(end, reach[r])
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}

func sumRange(v []float64, from, to int) float64 {
	s := 0.0
	for i := from; i < to && i < len(v); i++ {
		s += v[i]
	}
	return s
}
