package writer

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/pboffice01/PDFGeneral/fonts"
	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/parser"
	"github.com/pboffice01/PDFGeneral/xref"
)

func textPage(w, h float64, text string) *semantic.Page {
	return &semantic.Page{
		MediaBox: semantic.Rectangle{URX: w, URY: h},
		Resources: &semantic.Resources{
			Fonts: map[string]*semantic.Font{"F1": fonts.Standard("Helvetica")},
		},
		Contents: []semantic.ContentStream{{Operations: []semantic.Operation{
			semantic.Op("BT"),
			semantic.Op("Tf", semantic.NameOperand{Value: "F1"}, semantic.NumberOperand{Value: 12}),
			semantic.Op("Td", semantic.Num(10, 20)...),
			semantic.Op("Tj", semantic.StringOperand{Value: []byte(text)}),
			semantic.Op("ET"),
		}}},
	}
}

func writeDoc(t *testing.T, doc *semantic.Document, cfg Config) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := (&WriterBuilder{}).Build()
	if err := w.Write(context.Background(), doc, &buf, cfg); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return buf.Bytes()
}

func parseDoc(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func startXRef(data []byte) int64 {
	m := regexp.MustCompile(`startxref\s+(\d+)`).FindAllSubmatch(data, -1)
	if len(m) == 0 {
		return -1
	}
	off, _ := strconv.ParseInt(string(m[len(m)-1][1]), 10, 64)
	return off
}

func pageContent(t *testing.T, doc *raw.Document, page parser.Page) []byte {
	t.Helper()
	obj := doc.Resolve(doc.Get(page.Dict, "Contents"))
	var streams []*raw.StreamObj
	switch v := obj.(type) {
	case *raw.StreamObj:
		streams = append(streams, v)
	case *raw.ArrayObj:
		for _, it := range v.Items {
			if st, ok := doc.Resolve(it).(*raw.StreamObj); ok {
				streams = append(streams, st)
			}
		}
	}
	var out []byte
	for _, st := range streams {
		data := st.Data
		if f, _ := st.Dict.Lookup("Filter"); f == raw.NameLiteral("FlateDecode") {
			zr, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("zlib: %v", err)
			}
			data, err = io.ReadAll(zr)
			if err != nil {
				t.Fatalf("inflate: %v", err)
			}
		}
		out = append(out, data...)
	}
	return out
}

func TestWriterRoundTrip(t *testing.T) {
	doc := &semantic.Document{Pages: []*semantic.Page{textPage(200, 200, "Hello")}}
	data := writeDoc(t, doc, Config{Deterministic: true})

	parsed := parseDoc(t, data)
	pages, err := parser.PageTree(parsed)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	if len(pages) != 1 || pages[0].Width() != 200 {
		t.Fatalf("unexpected pages %+v", pages)
	}
	if !bytes.Contains(pageContent(t, parsed, pages[0]), []byte("(Hello) Tj")) {
		t.Fatalf("content not found")
	}
}

func TestWriterRejectsEmptyDocument(t *testing.T) {
	w := (&WriterBuilder{}).Build()
	if err := w.Write(context.Background(), &semantic.Document{}, io.Discard, Config{}); err == nil {
		t.Fatalf("expected error for a document without pages")
	}
}

func TestWriter_InfoAndDeterministicID(t *testing.T) {
	doc := &semantic.Document{
		Pages: []*semantic.Page{textPage(100, 100, "Hi")},
		Info:  &semantic.DocumentInfo{Title: "Sample Title", Producer: "pdfgrid"},
	}
	cfg := Config{Version: PDF14, Deterministic: true}
	first := writeDoc(t, doc, cfg)
	second := writeDoc(t, doc, cfg)
	if !bytes.Equal(first, second) {
		t.Fatalf("deterministic output differs between runs")
	}
	if !bytes.HasPrefix(first, []byte("%PDF-1.4")) {
		t.Fatalf("expected PDF 1.4 header, got %q", first[:8])
	}
	parsed := parseDoc(t, first)
	info, ok := parsed.DictOf(parsed.Get(parsed.Trailer, "Info"))
	if !ok {
		t.Fatalf("Info missing from trailer")
	}
	if title, _ := info.Lookup("Title"); string(title.(raw.StringObj).Bytes) != "Sample Title" {
		t.Fatalf("unexpected title %v", title)
	}
	ids, ok := parsed.ArrayOf(parsed.Get(parsed.Trailer, "ID"))
	if !ok || ids.Len() != 2 {
		t.Fatalf("ID array malformed")
	}
}

func TestWriter_UnicodeInfoIsUTF16(t *testing.T) {
	doc := &semantic.Document{
		Pages: []*semantic.Page{textPage(100, 100, "x")},
		Info:  &semantic.DocumentInfo{Title: "表格"},
	}
	parsed := parseDoc(t, writeDoc(t, doc, Config{Deterministic: true}))
	info, _ := parsed.DictOf(parsed.Get(parsed.Trailer, "Info"))
	title, _ := info.Lookup("Title")
	got := title.(raw.StringObj).Bytes
	if !bytes.HasPrefix(got, []byte{0xFE, 0xFF}) || len(got) != 6 {
		t.Fatalf("expected UTF-16BE title with BOM, got % X", got)
	}
}

func TestWriter_XRefStream(t *testing.T) {
	doc := &semantic.Document{Pages: []*semantic.Page{textPage(100, 100, "XRef")}}
	data := writeDoc(t, doc, Config{XRefStreams: true, Deterministic: true})
	if !bytes.Contains(data, []byte("/Type /XRef")) {
		t.Fatalf("expected xref stream type")
	}
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("resolve xref stream: %v", err)
	}
	if table.Type() != "xref-stream" {
		t.Fatalf("expected xref-stream table, got %s", table.Type())
	}
	off, _, ok := table.Lookup(1)
	if !ok || !bytes.HasPrefix(data[off:], []byte("1 0 obj")) {
		t.Fatalf("catalog entry wrong in xref stream")
	}
	parsed := parseDoc(t, data)
	if !parsed.XRefStream {
		t.Fatalf("parser did not report an xref stream")
	}
}

func TestWriter_XRefTableOffsets(t *testing.T) {
	doc := &semantic.Document{Pages: []*semantic.Page{textPage(80, 80, "a"), textPage(80, 80, "b")}}
	data := writeDoc(t, doc, Config{Deterministic: true})
	start := startXRef(data)
	if start <= 0 || !bytes.HasPrefix(data[start:], []byte("xref")) {
		t.Fatalf("startxref does not point to xref table")
	}
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("resolve xref table: %v", err)
	}
	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue
		}
		off, gen, ok := table.Lookup(objNum)
		if !ok {
			continue
		}
		want := strconv.Itoa(objNum) + " " + strconv.Itoa(gen) + " obj"
		if !bytes.HasPrefix(data[off:], []byte(want)) {
			t.Fatalf("offset %d for object %d does not start %q", off, objNum, want)
		}
	}
}

func TestWriter_ContentStreamCompression(t *testing.T) {
	// Deflate stores very short inputs verbatim, so the text must repeat.
	text := strings.Repeat("compress me ", 64)
	doc := &semantic.Document{Pages: []*semantic.Page{textPage(200, 200, text)}}
	plain := writeDoc(t, doc, Config{Deterministic: true})
	data := writeDoc(t, doc, Config{Deterministic: true, Compression: flate.BestSpeed})
	if !bytes.Contains(data, []byte("/Filter /FlateDecode")) {
		t.Fatalf("content stream has no FlateDecode filter")
	}
	if bytes.Contains(data, []byte(text)) || len(data) >= len(plain) {
		t.Fatalf("content not compressed: %d bytes, %d uncompressed", len(data), len(plain))
	}
	parsed := parseDoc(t, data)
	pages, err := parser.PageTree(parsed)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	if !bytes.Contains(pageContent(t, parsed, pages[0]), []byte("("+text+") Tj")) {
		t.Fatalf("decoded stream missing text")
	}
}

func TestWriter_SharesResources(t *testing.T) {
	half := 0.5
	gs := semantic.ExtGState{FillAlpha: &half, StrokeAlpha: &half}
	p1 := textPage(100, 100, "one")
	p2 := textPage(100, 100, "two")
	for _, p := range []*semantic.Page{p1, p2} {
		p.Resources.ExtGStates = map[string]semantic.ExtGState{"GS1": gs}
		p.Resources.Fonts["FMono"] = fonts.Standard("Courier")
	}
	out := string(writeDoc(t, &semantic.Document{Pages: []*semantic.Page{p1, p2}}, Config{Deterministic: true}))
	if strings.Count(out, "/BaseFont /Helvetica") != 1 {
		t.Fatalf("expected shared Helvetica font object")
	}
	if strings.Count(out, "/BaseFont /Courier") != 1 {
		t.Fatalf("expected single Courier font object")
	}
	if strings.Count(out, "/CA 0.5") != 1 || strings.Count(out, "/ca 0.5") != 1 {
		t.Fatalf("expected one shared ExtGState object")
	}
}

func TestWriter_EmbedTrueTypeFont(t *testing.T) {
	font, err := fonts.LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("load font: %v", err)
	}
	glyphs, err := fonts.ShapeText("Hi", font)
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	docFont := *font
	docFont.ToUnicode = map[int][]rune{}
	var encoded []byte
	for _, g := range glyphs {
		docFont.ToUnicode[g.ID] = g.Runes
		encoded = append(encoded, byte(g.ID>>8), byte(g.ID))
	}
	page := &semantic.Page{
		MediaBox:  semantic.Rectangle{URX: 100, URY: 100},
		Resources: &semantic.Resources{Fonts: map[string]*semantic.Font{"F1": &docFont}},
		Contents: []semantic.ContentStream{{Operations: []semantic.Operation{
			semantic.Op("BT"),
			semantic.Op("Tf", semantic.NameOperand{Value: "F1"}, semantic.NumberOperand{Value: 10}),
			semantic.Op("Tj", semantic.StringOperand{Value: encoded, Hex: true}),
			semantic.Op("ET"),
		}}},
	}
	data := writeDoc(t, &semantic.Document{Pages: []*semantic.Page{page}}, Config{Deterministic: true})
	parsed := parseDoc(t, data)

	var fontDict, cidFont *raw.DictObj
	for _, obj := range parsed.Objects {
		d, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		switch sub, _ := parsed.NameOf(parsed.Get(d, "Subtype")); sub {
		case "Type0":
			fontDict = d
		case "CIDFontType2":
			cidFont = d
		}
	}
	if fontDict == nil || cidFont == nil {
		t.Fatalf("Type0 font objects missing")
	}
	if enc, _ := parsed.NameOf(parsed.Get(fontDict, "Encoding")); enc != "Identity-H" {
		t.Fatalf("unexpected encoding %q", enc)
	}
	if _, ok := parsed.Resolve(parsed.Get(fontDict, "ToUnicode")).(*raw.StreamObj); !ok {
		t.Fatalf("ToUnicode stream missing")
	}
	w, ok := parsed.ArrayOf(parsed.Get(cidFont, "W"))
	if !ok || w.Len() == 0 || w.Len()%3 != 0 {
		t.Fatalf("W array malformed")
	}
	desc, ok := parsed.DictOf(parsed.Get(cidFont, "FontDescriptor"))
	if !ok {
		t.Fatalf("font descriptor missing")
	}
	if _, ok := parsed.Resolve(parsed.Get(desc, "FontFile2")).(*raw.StreamObj); !ok {
		t.Fatalf("FontFile2 missing")
	}
}

func TestWriter_ImageXObject(t *testing.T) {
	img := semantic.XObject{Subtype: "Image", Width: 2, Height: 1, ColorSpace: "DeviceRGB", BitsPerComponent: 8, Data: []byte{255, 0, 0, 0, 0, 255}}
	page := &semantic.Page{
		MediaBox:  semantic.Rectangle{URX: 50, URY: 50},
		Resources: &semantic.Resources{XObjects: map[string]semantic.XObject{"Im1": img, "Im2": img}},
		Contents:  []semantic.ContentStream{{RawBytes: []byte("q 10 0 0 10 0 0 cm /Im1 Do Q")}},
	}
	data := writeDoc(t, &semantic.Document{Pages: []*semantic.Page{page}}, Config{Deterministic: true})
	if n := bytes.Count(data, []byte("/Subtype /Image")); n != 1 {
		t.Fatalf("expected one shared image object, got %d", n)
	}
	if !bytes.Contains(data, []byte("/ImageC")) {
		t.Fatalf("ProcSet lacks image entries")
	}
}

type countingInterceptor struct{ before, after int }

func (c *countingInterceptor) BeforeWrite(context.Context, raw.ObjectRef, raw.Object) error {
	c.before++
	return nil
}

func (c *countingInterceptor) AfterWrite(context.Context, raw.ObjectRef, int64) error {
	c.after++
	return nil
}

func TestWriter_Interceptor(t *testing.T) {
	ic := &countingInterceptor{}
	w := (&WriterBuilder{}).WithInterceptor(ic).Build()
	doc := &semantic.Document{Pages: []*semantic.Page{textPage(10, 10, "x")}}
	if err := w.Write(context.Background(), doc, io.Discard, Config{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// catalog, pages, page, content, font
	if ic.before != 5 || ic.after != 5 {
		t.Fatalf("interceptor saw %d/%d objects", ic.before, ic.after)
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := (&WriterBuilder{}).Build()
	doc := &semantic.Document{Pages: []*semantic.Page{textPage(10, 10, "x")}}
	if err := w.Write(ctx, doc, io.Discard, Config{}); err == nil {
		t.Fatalf("expected context error")
	}
}
