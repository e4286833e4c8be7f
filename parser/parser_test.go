package parser

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"maps"
	"slices"
	"testing"

	"github.com/pboffice01/PDFGeneral/ir/raw"
)

func parseBytes(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDocumentParserParsesClassicXRef(t *testing.T) {
	doc := parseBytes(t, numberedPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	))
	if doc.Version != "1.7" {
		t.Fatalf("version %q", doc.Version)
	}
	if doc.Trailer == nil || len(doc.Objects) != 2 {
		t.Fatalf("trailer=%v objects=%d", doc.Trailer, len(doc.Objects))
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 1}].(*raw.DictObj); !ok {
		t.Fatalf("catalog is %T", doc.Objects[raw.ObjectRef{Num: 1}])
	}
}

// appendRevision adds an incremental update that redefines the given
// objects and chains to the previous xref section through /Prev.
func appendRevision(base []byte, objs map[int]string) []byte {
	buf := bytes.NewBuffer(slices.Clone(base))
	prev := bytes.LastIndex(base, []byte("\nxref\n")) + 1
	nums := slices.Sorted(maps.Keys(objs))
	offsets := make(map[int]int, len(objs))
	for _, n := range nums {
		offsets[n] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", n, objs[n])
	}
	xrefAt := buf.Len()
	buf.WriteString("xref\n")
	for _, n := range nums {
		fmt.Fprintf(buf, "%d 1\n%010d 00000 n \n", n, offsets[n])
	}
	size := nums[len(nums)-1] + 1
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", size, prev, xrefAt)
	return buf.Bytes()
}

func TestDocumentParserFollowsPrevChain(t *testing.T) {
	base := numberedPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	)
	doc := parseBytes(t, appendRevision(base, map[int]string{
		2: "<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		3: "<< /Type /Page /Parent 2 0 R >>",
	}))

	if _, ok := doc.Objects[raw.ObjectRef{Num: 3}]; !ok {
		t.Fatal("object added by the update is missing")
	}
	tree, ok := doc.Objects[raw.ObjectRef{Num: 2}].(*raw.DictObj)
	if !ok {
		t.Fatalf("object 2 is %T", doc.Objects[raw.ObjectRef{Num: 2}])
	}
	if n, _ := tree.Lookup("Count"); n != raw.NumberInt(1) {
		t.Fatalf("object 2 should be the updated revision, Count=%v", n)
	}
	if _, ok := doc.Trailer.Lookup("Prev"); !ok {
		t.Fatal("newest trailer should keep /Prev")
	}
}

func TestDocumentParserReconstructsWithoutXRef(t *testing.T) {
	src := "%PDF-1.6\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 100] >>\nendobj\n" +
		"startxref\n999999\n%%EOF\n"

	if _, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader([]byte(src))); err == nil {
		t.Fatalf("expected xref error without reconstruction")
	}

	doc, err := NewDocumentParser(Config{Reconstruct: true}).Parse(context.Background(), bytes.NewReader([]byte(src)))
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if doc.StartXRef != -1 {
		t.Fatalf("reconstructed document should have no startxref, got %d", doc.StartXRef)
	}
	pages, err := PageTree(doc)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	if len(pages) != 1 || pages[0].Width() != 200 || pages[0].Height() != 100 {
		t.Fatalf("unexpected pages %+v", pages)
	}
}

func TestDocumentParserLoadsCompressedObjectStream(t *testing.T) {
	data := buildObjStmPDF(t)
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !doc.XRefStream {
		t.Fatalf("expected xref stream flag")
	}
	pages, err := PageTree(doc)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected one page, got %d", len(pages))
	}
	if pages[0].Ref != (raw.ObjectRef{Num: 3}) {
		t.Fatalf("unexpected page ref %v", pages[0].Ref)
	}
}

func TestDocumentParserFlagsEncryptedDocuments(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", off1)
	fmt.Fprintf(buf, "trailer\n<< /Size 2 /Root 1 0 R /Encrypt << /Filter /Standard >> >>\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !doc.Encrypted {
		t.Fatalf("expected encrypted flag")
	}
}

func TestPageTreeInheritsAttributes(t *testing.T) {
	doc := &raw.Document{Objects: map[raw.ObjectRef]raw.Object{}}
	res := raw.Dict()
	res.Set(raw.NameLiteral("ProcSet"), raw.NewArray(raw.NameLiteral("PDF")))

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("MediaBox"), raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(595), raw.NumberInt(842)))
	pages.Set(raw.NameLiteral("Resources"), raw.Ref(5, 0))
	pages.Set(raw.NameLiteral("Rotate"), raw.NumberInt(-90))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(3, 0), raw.Ref(4, 0)))

	first := raw.Dict()
	first.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	second := raw.Dict()
	second.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	second.Set(raw.NameLiteral("MediaBox"), raw.NewArray(raw.NumberInt(100), raw.NumberInt(100), raw.NumberInt(0), raw.NumberInt(0)))

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog
	doc.Objects[raw.ObjectRef{Num: 2}] = pages
	doc.Objects[raw.ObjectRef{Num: 3}] = first
	doc.Objects[raw.ObjectRef{Num: 4}] = second
	doc.Objects[raw.ObjectRef{Num: 5}] = res
	doc.Trailer = raw.Dict()
	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))

	got, err := PageTree(doc)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two pages, got %d", len(got))
	}
	if got[0].MediaBox != [4]float64{0, 0, 595, 842} || got[0].Resources != res || got[0].Rotate != 270 {
		t.Fatalf("first page did not inherit attributes: %+v", got[0])
	}
	if got[1].MediaBox != [4]float64{0, 0, 100, 100} {
		t.Fatalf("second page media box not normalised: %v", got[1].MediaBox)
	}
}

func TestPageTreeRejectsCycles(t *testing.T) {
	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(2, 0)))
	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(2, 0))
	doc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{{Num: 1}: catalog, {Num: 2}: pages},
		Trailer: raw.Dict(),
	}
	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))
	if _, err := PageTree(doc); err == nil {
		t.Fatalf("expected cycle error")
	}
}

// buildObjStmPDF stores the page tree in a flate-compressed object stream
// indexed by a cross-reference stream.
func buildObjStmPDF(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 300] >>",
	}
	var header, body bytes.Buffer
	for i, o := range objs {
		fmt.Fprintf(&header, "%d %d ", i+1, body.Len())
		body.WriteString(o)
		body.WriteString("\n")
	}
	decoded := append(header.Bytes(), body.Bytes()...)
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write(decoded)
	zw.Close()

	off4 := buf.Len()
	fmt.Fprintf(buf, "4 0 obj\n<< /Type /ObjStm /N 3 /First %d /Filter /FlateDecode /Length %d >>\nstream\n", header.Len(), comp.Len())
	buf.Write(comp.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	off5 := buf.Len()
	rows := []byte{
		0, 0, 0, 0,
		2, 0, 4, 0,
		2, 0, 4, 1,
		2, 0, 4, 2,
		1, byte(off4 >> 8), byte(off4), 0,
		1, byte(off5 >> 8), byte(off5), 0,
	}
	fmt.Fprintf(buf, "5 0 obj\n<< /Type /XRef /Size 6 /Root 1 0 R /W [1 2 1] /Length %d >>\nstream\n", len(rows))
	buf.Write(rows)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", off5)
	return buf.Bytes()
}
