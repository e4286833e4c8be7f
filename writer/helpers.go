package writer

import (
	"bytes"
	"compress/zlib"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

func pdfVersion(cfg Config) string {
	if cfg.Version == "" {
		return string(PDF17)
	}
	return string(cfg.Version)
}

// fileID returns the two trailer identifiers. With Deterministic set both
// are a digest of the document, otherwise the pair is random.
func fileID(doc *semantic.Document, cfg Config) [2][]byte {
	digest := contentDigest(doc, cfg)
	if cfg.Deterministic {
		return [2][]byte{digest, digest}
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		copy(id, digest)
	}
	return [2][]byte{id, bytes.Clone(id)}
}

func contentDigest(doc *semantic.Document, cfg Config) []byte {
	h := sha256.New()
	io.WriteString(h, pdfVersion(cfg))
	if info := doc.Info; info != nil {
		for _, s := range []string{info.Title, info.Author, info.Subject, info.Creator, info.Producer, strings.Join(info.Keywords, ",")} {
			io.WriteString(h, s)
		}
	}
	fmt.Fprintf(h, "pages %d", len(doc.Pages))
	for _, p := range doc.Pages {
		fmt.Fprintf(h, "%v/%d", p.MediaBox, p.Rotate)
		for _, cs := range p.Contents {
			h.Write(SerializeContentStream(cs))
		}
	}
	return h.Sum(nil)[:16]
}

func rectArray(r semantic.Rectangle) *raw.ArrayObj {
	return raw.NewArray(numberObj(r.LLX), numberObj(r.LLY), numberObj(r.URX), numberObj(r.URY))
}

// normalizeRotation maps deg into [0, 360). Angles that are not a multiple
// of 90 are not valid /Rotate values and become 0.
func normalizeRotation(deg int) int {
	if deg%90 != 0 {
		return 0
	}
	return (deg%360 + 360) % 360
}

// numberObj keeps integral values as PDF integers.
func numberObj(f float64) raw.NumberObj {
	if i := int64(f); float64(i) == f && i > math.MinInt32 && i < math.MaxInt32 {
		return raw.NumberInt(i)
	}
	return raw.NumberFloat(f)
}

func flateEncode(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("flate level %d: %w", level, err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const cmapHeader = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (%s) /Ordering (%s) /Supplement %d >> def
/CMapName %s def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
`

const cmapTrailer = `endcmap
CMapName currentdict /CMap defineresource pop
end
end
`

// A beginbfchar block may hold at most 100 mappings.
const bfcharLimit = 100

// buildToUnicodeCMap maps the two-byte codes of a Type0 font back to text.
// It returns nil when the font records no mappings.
func buildToUnicodeCMap(font *semantic.Font) []byte {
	if font == nil || len(font.ToUnicode) == 0 {
		return nil
	}
	info := semantic.CIDSystemInfo{Registry: "Adobe", Ordering: "UCS"}
	if font.CIDSystemInfo != nil {
		info = *font.CIDSystemInfo
	}
	name := strings.ReplaceAll(font.BaseFont, " ", "") + "-UTF16"
	out := fmt.Appendf(nil, cmapHeader, info.Registry, info.Ordering, info.Supplement, appendName(nil, name))
	for chunk := range slices.Chunk(slices.Sorted(maps.Keys(font.ToUnicode)), bfcharLimit) {
		out = fmt.Appendf(out, "%d beginbfchar\n", len(chunk))
		for _, cid := range chunk {
			out = fmt.Appendf(out, "<%04X> <", cid)
			for _, u := range utf16.Encode(font.ToUnicode[cid]) {
				out = fmt.Appendf(out, "%04X", u)
			}
			out = append(out, ">\n"...)
		}
		out = append(out, "endbfchar\n"...)
	}
	return append(out, cmapTrailer...)
}

func utf16Units(s string) []uint16 { return utf16.Encode([]rune(s)) }

// encodeWidths returns /FirstChar, /LastChar and /Widths for a simple font.
// Codes in the range without a width get 0.
func encodeWidths(widths map[int]int) (first, last int, arr *raw.ArrayObj) {
	arr = raw.NewArray()
	if len(widths) == 0 {
		return 0, 0, arr
	}
	codes := slices.Sorted(maps.Keys(widths))
	first, last = codes[0], codes[len(codes)-1]
	for c := first; c <= last; c++ {
		arr.Append(raw.NumberInt(int64(widths[c])))
	}
	return first, last, arr
}

// encodeCIDWidths writes the /W array of a CID font as c_first c_last w
// triples, one per run of consecutive codes sharing a width.
func encodeCIDWidths(widths map[int]int) *raw.ArrayObj {
	arr := raw.NewArray()
	codes := slices.Sorted(maps.Keys(widths))
	for len(codes) > 0 {
		n, w := 1, widths[codes[0]]
		for n < len(codes) && codes[n] == codes[n-1]+1 && widths[codes[n]] == w {
			n++
		}
		arr.Items = append(arr.Items, raw.NumberInt(int64(codes[0])), raw.NumberInt(int64(codes[n-1])), raw.NumberInt(int64(w)))
		codes = codes[n:]
	}
	return arr
}
