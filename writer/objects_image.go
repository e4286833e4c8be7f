package writer

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// xoKey digests everything that ends up in the image object, soft mask
// included, so identical images drawn on several pages share one object.
func xoKey(xo semantic.XObject) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s-%d-%d-%s-%d-%s-%v", xo.Subtype, xo.Width, xo.Height, xo.ColorSpace, xo.BitsPerComponent, xo.Filter, xo.Interpolate)
	h.Write(xo.Data)
	if xo.SMask != nil {
		h.Write([]byte(xoKey(*xo.SMask)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ensureXObject writes an image XObject. Data without a filter is
// flate-encoded; pre-encoded data keeps its filter.
func (b *objectBuilder) ensureXObject(xo semantic.XObject) raw.ObjectRef {
	key := xoKey(xo)
	if r, ok := b.images[key]; ok {
		return r
	}
	dict := dictFields{
		"Type":             pdfName("XObject"),
		"Subtype":          pdfName("Image"),
		"Width":            integer(xo.Width),
		"Height":           integer(xo.Height),
		"ColorSpace":       pdfName(cmp.Or(xo.ColorSpace, "DeviceRGB")),
		"BitsPerComponent": integer(cmp.Or(xo.BitsPerComponent, 8)),
	}
	if xo.Interpolate {
		dict["Interpolate"] = raw.Bool(true)
	}
	if xo.SMask != nil {
		dict["SMask"] = ref(b.ensureXObject(*xo.SMask))
	}
	data := xo.Data
	if xo.Filter != "" {
		dict["Filter"] = pdfName(xo.Filter)
	} else if packed, err := flateEncode(data, -1); err == nil {
		dict["Filter"] = pdfName("FlateDecode")
		data = packed
	}
	r := b.add(raw.NewStream(dictOf(dict), data))
	b.images[key] = r
	return r
}

// ensureExtGState shares states by their serialized form.
func (b *objectBuilder) ensureExtGState(gs semantic.ExtGState) raw.ObjectRef {
	dict := dictFields{"Type": pdfName("ExtGState")}
	for key, v := range map[string]*float64{
		"LW": gs.LineWidth,
		"CA": gs.StrokeAlpha,
		"ca": gs.FillAlpha,
	} {
		if v != nil {
			dict[key] = numberObj(*v)
		}
	}
	d := dictOf(dict)
	key := string(encodeObject(d))
	if r, ok := b.gstates[key]; ok {
		return r
	}
	r := b.add(d)
	b.gstates[key] = r
	return r
}
