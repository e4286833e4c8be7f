package fonts

import (
	"bytes"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// ShapedGlyph represents a single shaped glyph with positioning information.
// Advances and offsets are in glyph space (1/1000 em).
type ShapedGlyph struct {
	ID       int
	Cluster  int
	Runes    []rune
	XAdvance float64
	YAdvance float64
	XOffset  float64
	YOffset  float64
}

// parsed fonts are shared; faces are not safe for concurrent use and are
// created per call.
var parsedFonts sync.Map // *semantic.FontDescriptor -> *gofont.Font

func fontFor(desc *semantic.FontDescriptor) (*gofont.Font, error) {
	if f, ok := parsedFonts.Load(desc); ok {
		return f.(*gofont.Font), nil
	}
	face, err := gofont.ParseTTF(bytes.NewReader(desc.FontFile))
	if err != nil {
		return nil, err
	}
	actual, _ := parsedFonts.LoadOrStore(desc, face.Font)
	return actual.(*gofont.Font), nil
}

// ShapeText shapes text with the embedded font program of font. Fonts without
// an embedded program return nil glyphs and no error.
func ShapeText(text string, font *semantic.Font) ([]ShapedGlyph, error) {
	if font == nil || font.Descriptor == nil || len(font.Descriptor.FontFile) == 0 {
		return nil, nil
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	ft, err := fontFor(font.Descriptor)
	if err != nil {
		return nil, err
	}

	script := DetectScript(runes)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      gofont.NewFace(ft),
		// 1000 units per em in 26.6 fixed point, so advances come out in glyph space.
		Size:     fixed.Int26_6(1000 * 64),
		Script:   script,
		Language: language.DefaultLanguage(),
	}
	shaper := &shaping.HarfbuzzShaper{}
	output := shaper.Shape(input)

	result := make([]ShapedGlyph, 0, len(output.Glyphs))
	for _, g := range output.Glyphs {
		result = append(result, ShapedGlyph{
			ID:       int(g.GlyphID),
			Cluster:  g.ClusterIndex,
			XAdvance: float64(g.XAdvance) / 64.0,
			YAdvance: float64(g.YAdvance) / 64.0,
			XOffset:  float64(g.XOffset) / 64.0,
			YOffset:  float64(g.YOffset) / 64.0,
		})
	}
	attachClusterRunes(result, runes)
	return result, nil
}

// attachClusterRunes gives the first glyph of each cluster the runes of that
// cluster, for ToUnicode mapping.
func attachClusterRunes(glyphs []ShapedGlyph, runes []rune) {
	starts := make([]int, 0, len(glyphs))
	seen := make(map[int]bool, len(glyphs))
	for _, g := range glyphs {
		if !seen[g.Cluster] {
			seen[g.Cluster] = true
			starts = append(starts, g.Cluster)
		}
	}
	end := func(start int) int {
		next := len(runes)
		for _, s := range starts {
			if s > start && s < next {
				next = s
			}
		}
		return next
	}
	assigned := make(map[int]bool, len(starts))
	for i := range glyphs {
		c := glyphs[i].Cluster
		if assigned[c] || c < 0 || c >= len(runes) {
			continue
		}
		assigned[c] = true
		glyphs[i].Runes = runes[c:end(c)]
	}
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// DetectScript returns the most frequent script in runes, Latin when none is
// recognised. Ties keep the script seen first.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	bestScript := language.Latin

	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			bestScript = script
		}
	}
	return bestScript
}

var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Latin, language.Latin},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
	{unicode.Bengali, language.Bengali},
	{unicode.Tamil, language.Tamil},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
	{unicode.Bopomofo, language.Bopomofo},
}

func scriptFromRune(r rune) language.Script {
	for _, s := range scriptTables {
		if unicode.Is(s.table, r) {
			return s.script
		}
	}
	return language.Unknown
}
