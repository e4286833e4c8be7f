package builder

import (
	"math"

	"github.com/pboffice01/PDFGeneral/coords"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// PageBuilder provides a fluent API for page construction. Everything is
// appended to the page's first content stream in call order.
type PageBuilder interface {
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	DrawImage(img *semantic.Image, x, y, width, height float64, opts ImageOptions) PageBuilder
	DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder
	DrawGrid(grid Grid, opts GridOptions) PageBuilder
	SetOpacity(fill, stroke float64) PageBuilder
	SetRotation(degrees int) PageBuilder
	Page() *semantic.Page
	Finish() PDFBuilder
}

// TextOptions configures text drawing. Font names a registered font; empty
// selects the builder default.
type TextOptions struct {
	Font     string
	FontSize float64
	Color    Color
}

// PathOptions configures path drawing.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	DashPattern []float64
	DashPhase   float64
	Fill        bool
	Stroke      bool
}

// RectOptions strokes when neither Fill nor Stroke is set.
type RectOptions = PathOptions

type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
	DashPattern []float64
	DashPhase   float64
}

// ImageOptions configures image drawing. Rotation is counter-clockwise in
// degrees; the rotated image's bounding box keeps its lower-left corner at
// the drawing position.
type ImageOptions struct {
	Rotation    float64
	Interpolate bool
	SMask       *semantic.Image
}

// Color is an RGB colour with components in [0, 1]. The zero value is black
// and emits no colour operator.
type Color struct {
	R, G, B float64
	A       float64
}

func (c Color) isZero() bool { return c == Color{} }

type pageBuilderImpl struct {
	parent *builderImpl
	page   *semantic.Page
}

func (p *pageBuilderImpl) Page() *semantic.Page { return p.page }

func (p *pageBuilderImpl) Finish() PDFBuilder { return p.parent }

func (p *pageBuilderImpl) emit(ops ...semantic.Operation) {
	if len(p.page.Contents) == 0 {
		p.page.Contents = []semantic.ContentStream{{}}
	}
	p.page.Contents[0].Operations = append(p.page.Contents[0].Operations, ops...)
}

func (p *pageBuilderImpl) resources() *semantic.Resources {
	res := p.page.Resources
	if res == nil {
		res = &semantic.Resources{}
		p.page.Resources = res
	}
	if res.Fonts == nil {
		res.Fonts = make(map[string]*semantic.Font)
	}
	if res.ExtGStates == nil {
		res.ExtGStates = make(map[string]semantic.ExtGState)
	}
	if res.XObjects == nil {
		res.XObjects = make(map[string]semantic.XObject)
	}
	return res
}

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	name, font := p.parent.font(opts.Font)
	codes, err := font.encode(text)
	if err != nil {
		p.parent.fail(&FontError{Font: name, Err: err})
		return p
	}
	p.resources().Fonts[name] = font.font
	size := opts.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	p.emit(
		semantic.Op("BT"),
		semantic.Op("Tf", semantic.NameOperand{Value: name}, semantic.NumberOperand{Value: size}),
		semantic.Op("Tm", semantic.Num(1, 0, 0, 1, x, y)...),
	)
	p.color(opts.Color, false)
	p.emit(
		semantic.Op("Tj", semantic.StringOperand{Value: codes, Hex: font.composite}),
		semantic.Op("ET"),
	)
	return p
}

// DrawImage paints img in a w x h box. A zero width or height uses the
// image's pixel size.
func (p *pageBuilderImpl) DrawImage(img *semantic.Image, x, y, width, height float64, opts ImageOptions) PageBuilder {
	if img == nil {
		return p
	}
	name := p.parent.images.name(img)
	xobjects := p.resources().XObjects
	if _, ok := xobjects[name]; !ok {
		xo := *img
		xo.Subtype = "Image"
		xo.Interpolate = xo.Interpolate || opts.Interpolate
		if opts.SMask != nil {
			xo.SMask = opts.SMask
		}
		xobjects[name] = xo
	}
	if width == 0 {
		width = float64(img.Width)
	}
	if height == 0 {
		height = float64(img.Height)
	}
	p.emit(
		semantic.Op("q"),
		semantic.Op("cm", semantic.Num(imageMatrix(x, y, width, height, opts.Rotation)...)...),
		semantic.Op("Do", semantic.NameOperand{Value: name}),
		semantic.Op("Q"),
	)
	return p
}

// imageMatrix maps the unit square onto a w x h image rotated by deg
// degrees whose bounding box has its lower-left corner at (x, y).
func imageMatrix(x, y, w, h, deg float64) []float64 {
	m := coords.Scale(w, h).Multiply(coords.Rotate(deg)).Clean()
	box := m.UnitBounds()
	m = m.Multiply(coords.Translate(x-box.LLX, y-box.LLY))
	return m[:]
}

func (p *pageBuilderImpl) DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder {
	if !opts.Fill {
		opts.Stroke = true
	}
	p.emit(semantic.Op("q"))
	p.pathState(opts)
	p.emit(
		semantic.Op("re", semantic.Num(x, y, width, height)...),
		semantic.Op(paintOperator(opts.Fill, opts.Stroke)),
		semantic.Op("Q"),
	)
	return p
}

func (p *pageBuilderImpl) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder {
	p.emit(semantic.Op("q"))
	p.pathState(PathOptions{
		StrokeColor: opts.StrokeColor,
		LineWidth:   opts.LineWidth,
		DashPattern: opts.DashPattern,
		DashPhase:   opts.DashPhase,
		Stroke:      true,
	})
	p.emit(
		semantic.Op("m", semantic.Num(x1, y1)...),
		semantic.Op("l", semantic.Num(x2, y2)...),
		semantic.Op("S"),
		semantic.Op("Q"),
	)
	return p
}

// SetOpacity sets the fill and stroke alpha for everything drawn after it
// on this page. Values are clamped to [0, 1]; each distinct pair shares one
// graphics state name across the document.
func (p *pageBuilderImpl) SetOpacity(fill, stroke float64) PageBuilder {
	fill, stroke = clamp01(fill), clamp01(stroke)
	name := p.parent.states.name(opacityKey{fill, stroke})
	p.resources().ExtGStates[name] = semantic.ExtGState{FillAlpha: &fill, StrokeAlpha: &stroke}
	p.emit(semantic.Op("gs", semantic.NameOperand{Value: name}))
	return p
}

// SetRotation sets /Rotate, normalised to [0, 360).
func (p *pageBuilderImpl) SetRotation(degrees int) PageBuilder {
	p.page.Rotate = (degrees%360 + 360) % 360
	return p
}

func (p *pageBuilderImpl) color(c Color, stroking bool) {
	if c.isZero() {
		return
	}
	op := "rg"
	if stroking {
		op = "RG"
	}
	p.emit(semantic.Op(op, semantic.Num(c.R, c.G, c.B)...))
}

func (p *pageBuilderImpl) pathState(opts PathOptions) {
	if opts.Fill {
		p.color(opts.FillColor, false)
	}
	if !opts.Stroke {
		return
	}
	p.color(opts.StrokeColor, true)
	if opts.LineWidth > 0 {
		p.emit(semantic.Op("w", semantic.NumberOperand{Value: opts.LineWidth}))
	}
	if len(opts.DashPattern) > 0 {
		p.emit(semantic.Op("d",
			semantic.ArrayOperand{Values: semantic.Num(opts.DashPattern...)},
			semantic.NumberOperand{Value: opts.DashPhase},
		))
	}
}

func paintOperator(fill, stroke bool) string {
	switch {
	case fill && stroke:
		return "B"
	case fill:
		return "f"
	}
	return "S"
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
