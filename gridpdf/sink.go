package gridpdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pboffice01/PDFGeneral/builder"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/layout"
	"github.com/pboffice01/PDFGeneral/observability"
	"github.com/pboffice01/PDFGeneral/pdferr"
	"github.com/pboffice01/PDFGeneral/writer"
)

// Cell geometry shared by every rendered table.
const (
	CellPadding   = 3
	DefaultMargin = 36
)

// Margins defines page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// PDFSink lays cells out as a full-width table on pages of a fixed size.
type PDFSink struct {
	paper   builder.PaperSize
	margins Margins
	info    *semantic.DocumentInfo
	wcfg    writer.Config
	logger  observability.Logger

	b         builder.PDFBuilder
	fontNames map[*semantic.Font]string
	columns   []float64
	cells     []builder.GridCell
	state     sinkState
	pages     int
}

type sinkState int

const (
	stateIdle sinkState = iota
	stateOpen
	stateClosed
)

// Option configures a PDFSink.
type Option func(*PDFSink)

// WithPaperSize sets the page size.
func WithPaperSize(size builder.PaperSize) Option {
	return func(s *PDFSink) { s.paper = size }
}

// WithMargins sets the page margins.
func WithMargins(m Margins) Option {
	return func(s *PDFSink) { s.margins = m }
}

// WithInfo sets the document information dictionary.
func WithInfo(info *semantic.DocumentInfo) Option {
	return func(s *PDFSink) { s.info = info }
}

// WithWriterConfig sets the serialization options.
func WithWriterConfig(cfg writer.Config) Option {
	return func(s *PDFSink) { s.wcfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(s *PDFSink) { s.logger = l }
}

// NewPDFSink returns a sink producing A4 pages with 36pt margins unless
// configured otherwise.
func NewPDFSink(opts ...Option) *PDFSink {
	s := &PDFSink{
		paper:   builder.A4,
		margins: Margins{Top: DefaultMargin, Bottom: DefaultMargin, Left: DefaultMargin, Right: DefaultMargin},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.OrNop(s.logger)
	return s
}

var errState = errors.New("table is not open")

// BeginTable sizes the columns to the page content width. Width hints are
// relative; without them every column gets the same width.
func (s *PDFSink) BeginTable(columnCount int, widths []float64) error {
	if s.state != stateIdle {
		return errors.New("table already started")
	}
	if columnCount <= 0 {
		return fmt.Errorf("column count %d", columnCount)
	}
	content := s.paper.Width - s.margins.Left - s.margins.Right
	if content <= 0 {
		return fmt.Errorf("margins leave no room on a %.2f wide page", s.paper.Width)
	}
	s.columns = make([]float64, columnCount)
	total := 0.0
	for i := range s.columns {
		w := 1.0
		if len(widths) >= columnCount && widths[i] > 0 {
			w = widths[i]
		}
		s.columns[i] = w
		total += w
	}
	for i := range s.columns {
		s.columns[i] = s.columns[i] / total * content
	}
	s.b = builder.NewBuilder()
	s.fontNames = make(map[*semantic.Font]string)
	s.state = stateOpen
	return nil
}

// AddCell queues one merged cell.
func (s *PDFSink) AddCell(cell layout.MergedCell) error {
	if s.state != stateOpen {
		return errState
	}
	gc := builder.GridCell{
		Row:         cell.Row,
		Column:      cell.Column,
		RowSpan:     cell.RowSpan,
		ColSpan:     cell.ColumnSpan,
		MinHeight:   cell.MinHeight,
		BorderWidth: cell.BorderWidth,
		HAlign:      builder.HAlignLeft,
		VAlign:      builder.VAlignMiddle,
		Lines:       make([]builder.GridLine, len(cell.Lines)),
	}
	for i, line := range cell.Lines {
		gc.Lines[i] = builder.GridLine{Text: line.Text, Font: s.fontName(line.Font), FontSize: line.Size}
	}
	s.cells = append(s.cells, gc)
	return nil
}

// fontName registers font on first use. Nil selects the builder default.
func (s *PDFSink) fontName(font *semantic.Font) string {
	if font == nil {
		return ""
	}
	if name, ok := s.fontNames[font]; ok {
		return name
	}
	name := fmt.Sprintf("F%d", len(s.fontNames)+1)
	s.fontNames[font] = name
	s.b.RegisterFont(name, font)
	return name
}

// EndTable draws the queued cells, paginating as needed.
func (s *PDFSink) EndTable() error {
	if s.state != stateOpen {
		return errState
	}
	page := s.b.NewPage(s.paper.Width, s.paper.Height)
	page.DrawGrid(builder.Grid{Columns: s.columns, Cells: s.cells}, builder.GridOptions{
		X:            s.margins.Left,
		Y:            s.paper.Height - s.margins.Top,
		Padding:      CellPadding,
		DefaultSize:  layout.DefaultFontSize,
		BottomMargin: s.margins.Bottom,
	})
	s.state = stateClosed
	return nil
}

// Bytes serializes the document.
func (s *PDFSink) Bytes(ctx context.Context) ([]byte, error) {
	if s.state != stateClosed {
		return nil, errors.New("table is not closed")
	}
	s.b.SetInfo(s.info)
	doc, err := s.b.Build()
	if err != nil {
		code := pdferr.Internal
		if builder.IsFontError(err) {
			code = pdferr.FontUnavailable
		}
		return nil, pdferr.Wrap(code, err, "build document")
	}
	s.pages = len(doc.Pages)
	var buf bytes.Buffer
	if err := (&writer.WriterBuilder{}).Build().Write(ctx, doc, &buf, s.wcfg); err != nil {
		return nil, pdferr.Wrap(pdferr.Internal, err, "write pdf")
	}
	return buf.Bytes(), nil
}
