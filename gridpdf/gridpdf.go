// Package gridpdf renders laid-out grids as PDF tables.
package gridpdf

import (
	"context"
	"fmt"

	"github.com/pboffice01/PDFGeneral/layout"
	"github.com/pboffice01/PDFGeneral/observability"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

// Sink receives a laid-out table and serializes it.
type Sink interface {
	// BeginTable starts a table. widths is nil when the grid carried no
	// complete width hints.
	BeginTable(columnCount int, widths []float64) error
	AddCell(cell layout.MergedCell) error
	EndTable() error
	Bytes(ctx context.Context) ([]byte, error)
}

// Render lays out grid with engine and feeds the cells to sink in order.
func Render(ctx context.Context, engine *layout.Engine, grid layout.Grid, sink Sink) ([]byte, error) {
	res, err := engine.Layout(grid)
	if err != nil {
		return nil, err
	}
	if err := sink.BeginTable(res.ColumnCount, res.ColumnWidths); err != nil {
		return nil, pdferr.Wrap(pdferr.Internal, err, "begin table")
	}
	for _, cell := range res.Cells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sink.AddCell(cell); err != nil {
			return nil, pdferr.Wrap(pdferr.Internal, err, "add cell %d,%d", cell.Row, cell.Column)
		}
	}
	if err := sink.EndTable(); err != nil {
		return nil, pdferr.Wrap(pdferr.Internal, err, "end table")
	}
	return sink.Bytes(ctx)
}

// RenderPDF renders grid into a PDF with a new PDFSink.
func RenderPDF(ctx context.Context, engine *layout.Engine, grid layout.Grid, opts ...Option) ([]byte, error) {
	sink := NewPDFSink(opts...)
	out, err := Render(ctx, engine, grid, sink)
	if err != nil {
		return nil, err
	}
	sink.logger.Info("rendered grid",
		observability.String("size", fmt.Sprintf("%dx%d", grid.RowCount, grid.ColumnCount)),
		observability.Int("pages", sink.pages),
		observability.Int("bytes", len(out)),
	)
	return out, nil
}
