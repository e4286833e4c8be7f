package writer

import (
	"bytes"
	"context"
	"testing"

	"github.com/pboffice01/PDFGeneral/fonts"
	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/parser"
)

// stampPage appends a content stream to the first page of base.
func stampPage(t *testing.T, base []byte, cfg Config) ([]byte, *raw.Document) {
	t.Helper()
	doc := parseDoc(t, base)
	pages, err := parser.PageTree(doc)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	app := NewAppender(base, doc, cfg)
	fontRef := app.Font(fonts.Standard("Courier"))
	csRef, err := app.ContentStream(semantic.ContentStream{Operations: []semantic.Operation{
		semantic.Op("BT"),
		semantic.Op("Tf", semantic.NameOperand{Value: "FStamp"}, semantic.NumberOperand{Value: 8}),
		semantic.Op("Tj", semantic.StringOperand{Value: []byte("1 / 1")}),
		semantic.Op("ET"),
	}})
	if err != nil {
		t.Fatalf("content stream: %v", err)
	}

	page := pages[0].Dict.Clone()
	contents := raw.NewArray()
	switch v := page.KV["Contents"].(type) {
	case *raw.ArrayObj:
		contents.Items = append(contents.Items, v.Items...)
	case nil:
	default:
		contents.Append(v)
	}
	contents.Append(raw.RefObj{R: csRef})
	page.Set(raw.NameLiteral("Contents"), contents)

	res := pages[0].Resources
	if res == nil {
		res = raw.Dict()
	}
	res = res.Clone()
	fontsDict := raw.Dict()
	if existing, ok := doc.DictOf(doc.Get(res, "Font")); ok {
		fontsDict = existing.Clone()
	}
	fontsDict.Set(raw.NameLiteral("FStamp"), raw.RefObj{R: fontRef})
	res.Set(raw.NameLiteral("Font"), fontsDict)
	page.Set(raw.NameLiteral("Resources"), res)
	app.Update(pages[0].Ref, page)

	out, err := app.Bytes(context.Background())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return out, doc
}

func TestAppenderIncrementalClassic(t *testing.T) {
	base := writeDoc(t, &semantic.Document{Pages: []*semantic.Page{textPage(200, 100, "base")}}, Config{Deterministic: true})
	out, baseDoc := stampPage(t, base, Config{})

	if !bytes.HasPrefix(out, base) {
		t.Fatalf("incremental update must keep the original bytes")
	}
	tail := out[len(base):]
	if !bytes.Contains(tail, []byte("/Prev "+itoa(startXRef(base)))) {
		t.Fatalf("new trailer lacks /Prev to the base section")
	}
	if bytes.Contains(tail, []byte("65535 f")) {
		t.Fatalf("update section must not repeat the free-list head")
	}

	updated := parseDoc(t, out)
	if updated.Size <= baseDoc.Size {
		t.Fatalf("size did not grow: %d <= %d", updated.Size, baseDoc.Size)
	}
	pages, err := parser.PageTree(updated)
	if err != nil || len(pages) != 1 {
		t.Fatalf("page tree after update: %v (%d pages)", err, len(pages))
	}
	content := pageContent(t, updated, pages[0])
	if !bytes.Contains(content, []byte("(base) Tj")) || !bytes.Contains(content, []byte("(1 / 1) Tj")) {
		t.Fatalf("stamped content missing: %s", content)
	}

	oldIDs, _ := baseDoc.ArrayOf(baseDoc.Get(baseDoc.Trailer, "ID"))
	newIDs, _ := updated.ArrayOf(updated.Get(updated.Trailer, "ID"))
	if !bytes.Equal(oldIDs.Items[0].(raw.StringObj).Bytes, newIDs.Items[0].(raw.StringObj).Bytes) {
		t.Fatalf("permanent identifier changed")
	}
	if bytes.Equal(oldIDs.Items[1].(raw.StringObj).Bytes, newIDs.Items[1].(raw.StringObj).Bytes) {
		t.Fatalf("revision identifier should change")
	}
}

func TestAppenderIncrementalXRefStream(t *testing.T) {
	base := writeDoc(t, &semantic.Document{Pages: []*semantic.Page{textPage(200, 100, "streamed")}}, Config{XRefStreams: true, Deterministic: true})
	out, _ := stampPage(t, base, Config{Compression: 6})

	tail := out[len(base):]
	if !bytes.Contains(tail, []byte("/Type /XRef")) {
		t.Fatalf("update of an xref-stream file should use an xref stream")
	}
	updated := parseDoc(t, out)
	pages, err := parser.PageTree(updated)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	content := pageContent(t, updated, pages[0])
	if !bytes.Contains(content, []byte("(1 / 1) Tj")) {
		t.Fatalf("stamped content missing")
	}
}

func TestAppenderDeterministic(t *testing.T) {
	base := writeDoc(t, &semantic.Document{Pages: []*semantic.Page{textPage(100, 100, "same")}}, Config{Deterministic: true})
	first, _ := stampPage(t, base, Config{})
	second, _ := stampPage(t, base, Config{})
	if !bytes.Equal(first, second) {
		t.Fatalf("identical updates should produce identical files")
	}
}

func TestAppenderRewritesReconstructedBase(t *testing.T) {
	base := writeDoc(t, &semantic.Document{Pages: []*semantic.Page{textPage(120, 90, "broken")}}, Config{Deterministic: true})
	// Corrupt the startxref offset so the parser must rebuild the object table.
	idx := bytes.LastIndex(base, []byte("startxref"))
	broken := append(append([]byte{}, base[:idx]...), []byte("startxref\n999999\n%%EOF\n")...)

	doc, err := parser.NewDocumentParser(parser.Config{Reconstruct: true}).Parse(context.Background(), bytes.NewReader(broken))
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if doc.StartXRef >= 0 {
		t.Skip("parser recovered the xref without reconstruction")
	}
	out, err := NewAppender(broken, doc, Config{}).Bytes(context.Background())
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if bytes.HasPrefix(out, broken) {
		t.Fatalf("reconstructed base should be rewritten, not appended")
	}
	parsed := parseDoc(t, out)
	pages, err := parser.PageTree(parsed)
	if err != nil || len(pages) != 1 || pages[0].Width() != 120 {
		t.Fatalf("rewritten document unreadable: %v", err)
	}
}

func TestAppenderRequiresTrailer(t *testing.T) {
	if _, err := NewAppender(nil, &raw.Document{}, Config{}).Bytes(context.Background()); err == nil {
		t.Fatalf("expected error without trailer")
	}
}

func itoa(n int64) string {
	return string(encodeObject(raw.NumberInt(n)))
}
