// Package builder assembles semantic documents page by page. It is the
// drawing layer under the grid renderer and the page stamper.
package builder

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/pboffice01/PDFGeneral/fonts"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// PDFBuilder provides a fluent API for PDF construction. Errors are sticky:
// the first one is reported by Build.
type PDFBuilder interface {
	NewPage(width, height float64) PageBuilder
	AddPage(page *semantic.Page) PDFBuilder
	SetInfo(info *semantic.DocumentInfo) PDFBuilder
	RegisterFont(name string, font *semantic.Font) PDFBuilder
	RegisterTrueTypeFont(name string, data []byte) PDFBuilder
	Build() (*semantic.Document, error)
}

const (
	defaultFontResource = "F1"
	defaultFontSize     = 12
)

// fontResource is a font as registered on one builder. Composite fonts are
// shaped, and the glyphs drawn are recorded in the clone's ToUnicode map so
// the writer can emit a ToUnicode CMap.
type fontResource struct {
	font      *semantic.Font
	composite bool
}

// namer hands out resource names with a fixed prefix, one per distinct key.
type namer[K comparable] struct {
	prefix string
	names  map[K]string
}

func (n *namer[K]) name(key K) string {
	if name, ok := n.names[key]; ok {
		return name
	}
	if n.names == nil {
		n.names = make(map[K]string)
	}
	name := fmt.Sprintf("%s%d", n.prefix, len(n.names)+1)
	n.names[key] = name
	return name
}

type opacityKey struct{ fill, stroke float64 }

type builderImpl struct {
	pages       []*semantic.Page
	info        *semantic.DocumentInfo
	fonts       map[string]fontResource
	defaultFont string
	images      namer[*semantic.Image]
	states      namer[opacityKey]
	err         error
}

// NewBuilder constructs a PDFBuilder.
func NewBuilder() PDFBuilder {
	return &builderImpl{
		fonts:  make(map[string]fontResource),
		images: namer[*semantic.Image]{prefix: "Im"},
		states: namer[opacityKey]{prefix: "GS"},
	}
}

func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &semantic.Page{MediaBox: semantic.Rectangle{URX: w, URY: h}}
	b.pages = append(b.pages, p)
	return &pageBuilderImpl{parent: b, page: p}
}

func (b *builderImpl) AddPage(p *semantic.Page) PDFBuilder {
	b.pages = append(b.pages, p)
	return b
}

func (b *builderImpl) SetInfo(info *semantic.DocumentInfo) PDFBuilder {
	b.info = info
	return b
}

// RegisterFont makes font available under name. The first registered font
// becomes the default for text drawn without an explicit font. Composite
// fonts are cloned so that shared registry fonts are never written to.
func (b *builderImpl) RegisterFont(name string, font *semantic.Font) PDFBuilder {
	if font == nil {
		return b
	}
	res := fontResource{font: font}
	if font.IsComposite() {
		clone := *font
		clone.ToUnicode = make(map[int][]rune)
		res = fontResource{font: &clone, composite: true}
	}
	b.fonts[name] = res
	if b.defaultFont == "" {
		b.defaultFont = name
	}
	return b
}

func (b *builderImpl) RegisterTrueTypeFont(name string, data []byte) PDFBuilder {
	font, err := fonts.LoadTrueType(name, data)
	if err != nil {
		b.fail(&FontError{Font: name, Err: fmt.Errorf("register: %w", err)})
		return b
	}
	return b.RegisterFont(name, font)
}

// FontError reports text that could not be set because a font failed to
// load or to shape it. Build returns it so callers can tell font trouble
// from other failures.
type FontError struct {
	Font string
	Err  error
}

func (e *FontError) Error() string { return fmt.Sprintf("font %s: %v", e.Font, e.Err) }

func (e *FontError) Unwrap() error { return e.Err }

// IsFontError reports whether err carries a *FontError.
func IsFontError(err error) bool {
	var fe *FontError
	return errors.As(err, &fe)
}

func (b *builderImpl) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *builderImpl) Build() (*semantic.Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	for i, p := range b.pages {
		p.Index = i
	}
	return &semantic.Document{Pages: b.pages, Info: b.info}, nil
}

// font resolves a resource name. An empty name selects the default font;
// an unknown one is bound to Helvetica.
func (b *builderImpl) font(name string) (string, fontResource) {
	if name == "" {
		name = b.defaultFont
	}
	if name == "" {
		name = defaultFontResource
	}
	res, ok := b.fonts[name]
	if !ok {
		res = fontResource{font: fonts.Standard(fonts.DefaultBaseFont)}
		b.fonts[name] = res
	}
	return name, res
}

// encode converts text to the byte codes of res. Composite fonts are shaped
// and addressed by 2-byte glyph ids; simple fonts use WinAnsi with '?' for
// characters outside it.
func (res fontResource) encode(text string) ([]byte, error) {
	if !res.composite {
		out := make([]byte, 0, len(text))
		for _, r := range text {
			c, ok := charmap.Windows1252.EncodeRune(r)
			if !ok {
				c = '?'
			}
			out = append(out, c)
		}
		return out, nil
	}
	glyphs, err := fonts.ShapeText(text, res.font)
	if err != nil {
		return nil, fmt.Errorf("shape text: %w", err)
	}
	out := make([]byte, 0, 2*len(glyphs))
	for _, g := range glyphs {
		out = append(out, byte(g.ID>>8), byte(g.ID))
		if _, seen := res.font.ToUnicode[g.ID]; !seen && len(g.Runes) > 0 {
			res.font.ToUnicode[g.ID] = g.Runes
		}
	}
	return out, nil
}

// advance returns the width of text at size in user units. Characters
// without a recorded width count as 500 units.
func (res fontResource) advance(text string, size float64) float64 {
	units := 0.0
	if res.composite {
		if glyphs, err := fonts.ShapeText(text, res.font); err == nil && len(glyphs) > 0 {
			for _, g := range glyphs {
				units += g.XAdvance
			}
			return units * size / 1000
		}
	}
	for _, r := range text {
		w, ok := res.font.Widths[int(r)]
		if !ok {
			w = 500
		}
		units += float64(w)
	}
	return units * size / 1000
}

func (b *builderImpl) measureText(text, fontName string, size float64) float64 {
	if size <= 0 {
		size = defaultFontSize
	}
	_, res := b.font(fontName)
	return res.advance(text, size)
}
