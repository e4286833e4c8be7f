package builder

import "strings"

// PaperSize is a page size in points.
type PaperSize struct {
	Width, Height float64
}

var (
	A3     = PaperSize{Width: 841.89, Height: 1190.55}
	A4     = PaperSize{Width: 595.28, Height: 841.89}
	A5     = PaperSize{Width: 419.53, Height: 595.28}
	Letter = PaperSize{Width: 612, Height: 792}
	Legal  = PaperSize{Width: 612, Height: 1008}
)

var paperSizes = map[string]PaperSize{
	"a3":     A3,
	"a4":     A4,
	"a5":     A5,
	"letter": Letter,
	"legal":  Legal,
}

// PaperSizeByName looks up a size by case-insensitive name ("A4", "letter").
func PaperSizeByName(name string) (PaperSize, bool) {
	s, ok := paperSizes[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Landscape swaps width and height.
func (p PaperSize) Landscape() PaperSize { return PaperSize{Width: p.Height, Height: p.Width} }
