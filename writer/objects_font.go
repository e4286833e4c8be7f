package writer

import (
	"cmp"
	"fmt"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

const (
	defaultFlags = 4 // symbolic
	defaultStemV = 80
	defaultDW    = 1000
)

// fontKey identifies fonts that may share one object. Embedded and
// composite fonts carry per-document state, so only the same pointer is
// shared.
func fontKey(font *semantic.Font) string {
	switch {
	case font == nil:
		return "Type1|Helvetica|"
	case font.Descriptor != nil || font.IsComposite():
		return fmt.Sprintf("%p", font)
	}
	return font.Subtype + "|" + font.BaseFont + "|" + font.Encoding
}

// ensureFont writes font on first use. A nil font is Helvetica.
func (b *objectBuilder) ensureFont(font *semantic.Font) raw.ObjectRef {
	key := fontKey(font)
	if r, ok := b.fonts[key]; ok {
		return r
	}
	f := semantic.Font{Subtype: "Type1", BaseFont: "Helvetica"}
	if font != nil {
		f = *font
		f.Subtype = cmp.Or(font.Subtype, "Type1")
		f.BaseFont = cmp.Or(font.BaseFont, "Helvetica")
	}
	dict := dictFields{
		"Type":     pdfName("Font"),
		"Subtype":  pdfName(f.Subtype),
		"BaseFont": pdfName(f.BaseFont),
	}
	if f.Subtype == "Type0" {
		b.compositeFont(dict, &f)
	} else {
		b.simpleFont(dict, &f)
	}
	r := b.add(dictOf(dict))
	b.fonts[key] = r
	return r
}

func (b *objectBuilder) simpleFont(dict dictFields, f *semantic.Font) {
	if f.Encoding != "" {
		dict["Encoding"] = pdfName(f.Encoding)
	}
	if len(f.Widths) > 0 {
		first, last, widths := encodeWidths(f.Widths)
		dict["FirstChar"] = integer(first)
		dict["LastChar"] = integer(last)
		dict["Widths"] = widths
	}
	if fd, ok := b.fontDescriptor(f.Descriptor); ok {
		dict["FontDescriptor"] = ref(fd)
	}
}

func (b *objectBuilder) compositeFont(dict dictFields, f *semantic.Font) {
	dict["Encoding"] = pdfName(cmp.Or(f.Encoding, "Identity-H"))
	dict["DescendantFonts"] = raw.NewArray(ref(b.cidFont(f)))
	if cmap := buildToUnicodeCMap(f); len(cmap) > 0 {
		dict["ToUnicode"] = ref(b.add(raw.NewStream(raw.Dict(), cmap)))
	}
}

// cidFont writes the descendant of a Type0 font. Values missing on the
// descendant fall back to the parent font.
func (b *objectBuilder) cidFont(f *semantic.Font) raw.ObjectRef {
	var desc semantic.CIDFont
	if f.DescendantFont != nil {
		desc = *f.DescendantFont
	}
	subtype := cmp.Or(desc.Subtype, "CIDFontType2")

	csi := semantic.CIDSystemInfo{Registry: "Adobe", Ordering: "Identity"}
	switch {
	case f.CIDSystemInfo != nil:
		csi = *f.CIDSystemInfo
	case f.DescendantFont != nil:
		csi = desc.CIDSystemInfo
	}

	widths := f.Widths
	if len(desc.W) > 0 {
		widths = desc.W
	}
	descriptor := desc.Descriptor
	if descriptor == nil {
		descriptor = f.Descriptor
	}
	dw := desc.DW
	if dw <= 0 {
		dw = defaultDW
	}

	dict := dictFields{
		"Type":     pdfName("Font"),
		"Subtype":  pdfName(subtype),
		"BaseFont": pdfName(cmp.Or(desc.BaseFont, f.BaseFont)),
		"CIDSystemInfo": dictOf(dictFields{
			"Registry":   raw.Str([]byte(csi.Registry)),
			"Ordering":   raw.Str([]byte(csi.Ordering)),
			"Supplement": integer(csi.Supplement),
		}),
		"DW": integer(dw),
	}
	if used := usedWidths(widths, f.ToUnicode); len(used) > 0 {
		dict["W"] = encodeCIDWidths(used)
	}
	if subtype == "CIDFontType2" {
		dict["CIDToGIDMap"] = pdfName("Identity")
	}
	if fd, ok := b.fontDescriptor(descriptor); ok {
		dict["FontDescriptor"] = ref(fd)
	}
	return b.add(dictOf(dict))
}

// usedWidths limits the /W array to glyphs that appear in the text when the
// usage is known.
func usedWidths(widths map[int]int, used map[int][]rune) map[int]int {
	if len(used) == 0 {
		return widths
	}
	out := make(map[int]int, len(used))
	for gid := range used {
		if w, ok := widths[gid]; ok {
			out[gid] = w
		}
	}
	return out
}

// fontDescriptor writes fd and its embedded font program, compressed when
// flate succeeds.
func (b *objectBuilder) fontDescriptor(fd *semantic.FontDescriptor) (raw.ObjectRef, bool) {
	if fd == nil {
		return raw.ObjectRef{}, false
	}
	bbox := make([]raw.Object, len(fd.FontBBox))
	for i, v := range fd.FontBBox {
		bbox[i] = numberObj(v)
	}
	dict := dictFields{
		"Type":        pdfName("FontDescriptor"),
		"FontName":    pdfName(cmp.Or(fd.FontName, "CustomFont")),
		"Flags":       integer(cmp.Or(fd.Flags, defaultFlags)),
		"ItalicAngle": numberObj(fd.ItalicAngle),
		"Ascent":      numberObj(fd.Ascent),
		"Descent":     numberObj(fd.Descent),
		"CapHeight":   numberObj(fd.CapHeight),
		"StemV":       integer(cmp.Or(fd.StemV, defaultStemV)),
		"FontBBox":    raw.NewArray(bbox...),
	}
	if len(fd.FontFile) > 0 {
		program := dictOf(dictFields{"Length1": integer(len(fd.FontFile))})
		data := fd.FontFile
		if packed, err := flateEncode(data, -1); err == nil {
			program.Set(pdfName("Filter"), pdfName("FlateDecode"))
			data = packed
		}
		dict[cmp.Or(fd.FontFileType, "FontFile2")] = ref(b.add(raw.NewStream(program, data)))
	}
	return b.add(dictOf(dict)), true
}
