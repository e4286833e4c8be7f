package fonts

import (
	"errors"
	"fmt"
	"math"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// ErrEmptyFont is returned for zero-length font data.
var ErrEmptyFont = errors.New("truetype font data is empty")

// LoadTrueType embeds a whole TrueType/OpenType file as a Type0 font with
// Identity-H encoding, so text is written as glyph ids. name is the fallback
// BaseFont when the file has no PostScript name.
func LoadTrueType(name string, data []byte) (*semantic.Font, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFont
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	if f.UnitsPerEm() == 0 {
		return nil, errors.New("parse truetype: unitsPerEm is zero")
	}
	m := glyphSpace{font: f, buf: &sfnt.Buffer{}, upem: f.UnitsPerEm()}
	base := m.postScriptName(name)

	widths := m.widths()
	dw := widths[0]
	if dw == 0 {
		dw = 1000
	}
	desc := m.descriptor(base)
	desc.FontFile = data
	desc.FontFileType = "FontFile2"

	cid := semantic.CIDSystemInfo{Registry: "Adobe", Ordering: "Identity"}
	return &semantic.Font{
		Subtype:       "Type0",
		BaseFont:      base,
		Encoding:      "Identity-H",
		Widths:        widths,
		CIDSystemInfo: &cid,
		Descriptor:    desc,
		DescendantFont: &semantic.CIDFont{
			Subtype:       "CIDFontType2",
			BaseFont:      base,
			CIDSystemInfo: cid,
			DW:            dw,
			W:             widths,
			Descriptor:    desc,
		},
	}, nil
}

// glyphSpace reads metrics at a size of one em, so that values convert to
// PDF glyph space (1000 units per em) without hinting.
type glyphSpace struct {
	font *sfnt.Font
	buf  *sfnt.Buffer
	upem sfnt.Units
}

func (g glyphSpace) ppem() fixed.Int26_6 { return fixed.Int26_6(g.upem << 6) }

func (g glyphSpace) scale(v fixed.Int26_6) float64 {
	return float64(v) * 1000 / (64 * float64(g.upem))
}

func (g glyphSpace) postScriptName(fallback string) string {
	base, _ := g.font.Name(g.buf, sfnt.NameIDPostScript)
	if base == "" {
		base = strings.TrimSpace(fallback)
	}
	if base == "" {
		base = "CustomTT"
	}
	return strings.ReplaceAll(base, " ", "")
}

func (g glyphSpace) widths() map[int]int {
	n := g.font.NumGlyphs()
	out := make(map[int]int, n)
	for i := 0; i < n; i++ {
		adv, err := g.font.GlyphAdvance(g.buf, sfnt.GlyphIndex(i), g.ppem(), xfont.HintingNone)
		if err == nil {
			out[i] = int(math.Round(g.scale(adv)))
		}
	}
	return out
}

func (g glyphSpace) descriptor(base string) *semantic.FontDescriptor {
	metrics, _ := g.font.Metrics(g.buf, g.ppem(), xfont.HintingNone)
	bounds, _ := g.font.Bounds(g.buf, g.ppem(), xfont.HintingNone)
	capHeight := metrics.CapHeight
	if capHeight <= 0 {
		capHeight = metrics.Ascent
	}
	var italic float64
	if post := g.font.PostTable(); post != nil {
		italic = post.ItalicAngle
	}
	// sfnt measures y downwards; PDF font space points up.
	return &semantic.FontDescriptor{
		FontName:    base,
		Flags:       4, // symbolic
		ItalicAngle: italic,
		Ascent:      g.scale(metrics.Ascent),
		Descent:     -g.scale(metrics.Descent),
		CapHeight:   g.scale(capHeight),
		StemV:       80,
		FontBBox: [4]float64{
			g.scale(bounds.Min.X), -g.scale(bounds.Max.Y),
			g.scale(bounds.Max.X), -g.scale(bounds.Min.Y),
		},
	}
}

// Standard returns one of the standard 14 Type1 fonts. Text drawn with it
// is encoded as WinAnsi.
func Standard(baseFont string) *semantic.Font {
	return &semantic.Font{Subtype: "Type1", BaseFont: baseFont, Encoding: "WinAnsiEncoding"}
}

var standard14 = map[string]bool{
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Symbol": true, "ZapfDingbats": true,
}

// IsStandard reports whether name is one of the standard 14 fonts.
func IsStandard(name string) bool { return standard14[name] }
