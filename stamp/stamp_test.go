package stamp

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"

	"github.com/pboffice01/PDFGeneral/builder"
	"github.com/pboffice01/PDFGeneral/fonts"
	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/parser"
	"github.com/pboffice01/PDFGeneral/pdferr"
	"github.com/pboffice01/PDFGeneral/writer"
)

// sourcePDF writes n pages of w x h. Each page uses a font named like the
// caption font and an opacity state, so overlay names clash.
func sourcePDF(t *testing.T, n int, w, h float64) []byte {
	t.Helper()
	b := builder.NewBuilder().RegisterFont(captionFont, fonts.Standard("Times-Roman"))
	for i := 1; i <= n; i++ {
		b.NewPage(w, h).
			SetOpacity(0.9, 0.9).
			DrawText(fmt.Sprintf("page %d", i), 20, 20, builder.TextOptions{Font: captionFont, FontSize: 14})
	}
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build source: %v", err)
	}
	var buf bytes.Buffer
	if err := (&writer.WriterBuilder{}).Build().Write(context.Background(), doc, &buf, writer.Config{Deterministic: true}); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return buf.Bytes()
}

func testImage(w, h int) *semantic.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return builder.FromImage(img)
}

func memoryLoader(img *semantic.Image) ImageLoader {
	return func(ref string) (*semantic.Image, error) {
		if ref != "logo.png" {
			return nil, errors.New("no such image")
		}
		return img, nil
	}
}

func parseOutput(t *testing.T, data []byte) (*raw.Document, []parser.Page) {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	pages, err := parser.PageTree(doc)
	if err != nil {
		t.Fatalf("page tree: %v", err)
	}
	return doc, pages
}

// pageContent joins the decoded content streams of page.
func pageContent(t *testing.T, doc *raw.Document, page parser.Page) []byte {
	t.Helper()
	var streams []*raw.StreamObj
	switch v := doc.Resolve(doc.Get(page.Dict, "Contents")).(type) {
	case *raw.StreamObj:
		streams = append(streams, v)
	case *raw.ArrayObj:
		for _, it := range v.Items {
			if st, ok := doc.Resolve(it).(*raw.StreamObj); ok {
				streams = append(streams, st)
			}
		}
	}
	var out bytes.Buffer
	for _, st := range streams {
		data := st.Data
		if f, _ := st.Dict.Lookup("Filter"); f == raw.NameLiteral("FlateDecode") {
			zr, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("zlib: %v", err)
			}
			if data, err = io.ReadAll(zr); err != nil {
				t.Fatalf("inflate: %v", err)
			}
		}
		out.Write(data)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

func indexAll(t *testing.T, content []byte, parts ...string) {
	t.Helper()
	last := -1
	for _, p := range parts {
		i := bytes.Index(content, []byte(p))
		if i < 0 {
			t.Fatalf("content lacks %q:\n%s", p, content)
		}
		if i < last {
			t.Fatalf("%q out of order:\n%s", p, content)
		}
		last = i
	}
}

func TestStampCaptionsEveryPage(t *testing.T) {
	src := sourcePDF(t, 3, 300, 400)
	s := New(WithImageLoader(memoryLoader(testImage(40, 20))))
	out, err := s.Stamp(context.Background(), src, Options{
		FillOpacity:     0.3,
		StrokeOpacity:   0.6,
		RotationDegrees: 45,
		ScalePercent:    50,
		ImageRef:        "logo.png",
	})
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	if !bytes.HasPrefix(out, src) {
		t.Fatalf("source bytes must be preserved")
	}
	doc, pages := parseOutput(t, out)
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	for i, page := range pages {
		content := pageContent(t, doc, page)
		if !bytes.HasPrefix(content, []byte("q\n")) {
			t.Fatalf("page %d: original content is not saved first", i+1)
		}
		// The source's own names win; the overlay's are suffixed.
		indexAll(t, content,
			fmt.Sprintf("(page %d) Tj", i+1),
			"Q\n",
			"/FCaption_1 12 Tf",
			fmt.Sprintf("(%d / 3) Tj", i+1),
			"/GS1_1 gs",
			"/Im1 Do",
		)
	}

	res := pages[1].Resources
	gs, ok := doc.DictOf(doc.Get(mustDict(t, doc, res, "ExtGState"), "GS1_1"))
	if !ok {
		t.Fatalf("overlay graphics state missing")
	}
	if ca, _ := doc.NumberOf(doc.Get(gs, "ca")); ca != 0.3 {
		t.Fatalf("fill opacity %v, want 0.3", ca)
	}
	if sa, _ := doc.NumberOf(doc.Get(gs, "CA")); sa != 0.6 {
		t.Fatalf("stroke opacity %v, want 0.6", sa)
	}
	if _, ok := mustDict(t, doc, res, "Font").Lookup(captionFont); !ok {
		t.Fatalf("source font dropped from resources")
	}
	if n := bytes.Count(out[len(src):], []byte("/Subtype /Image")); n != 1 {
		t.Fatalf("image should be written once, got %d", n)
	}
}

func mustDict(t *testing.T, doc *raw.Document, d *raw.DictObj, key string) *raw.DictObj {
	t.Helper()
	sub, ok := doc.DictOf(doc.Get(d, key))
	if !ok {
		t.Fatalf("/%s missing", key)
	}
	return sub
}

func TestStampImagePlacement(t *testing.T) {
	src := sourcePDF(t, 1, 300, 400)
	out, err := New(WithImageLoader(memoryLoader(testImage(40, 20)))).Stamp(context.Background(), src, Options{
		FillOpacity:   1,
		StrokeOpacity: 1,
		ScalePercent:  50,
		ImageRef:      "logo.png",
	})
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	doc, pages := parseOutput(t, out)
	content := pageContent(t, doc, pages[0])
	// 40x20 at 50% is 20x10, lower-left at (300/2-100, 400/2).
	if !bytes.Contains(content, []byte("20 0 0 10 50 200 cm")) {
		t.Fatalf("unexpected image placement:\n%s", content)
	}
	// Caption baseline 10 above the bottom, starting at the centre.
	if !bytes.Contains(content, []byte("1 0 0 1 150 10 Tm")) {
		t.Fatalf("unexpected caption position:\n%s", content)
	}
}

func TestStampErrors(t *testing.T) {
	src := sourcePDF(t, 1, 200, 200)
	good := Options{FillOpacity: 0.5, StrokeOpacity: 0.5, ScalePercent: 100, ImageRef: "logo.png"}
	loader := WithImageLoader(memoryLoader(testImage(4, 4)))

	cases := []struct {
		name string
		s    *Stamper
		src  []byte
		opts func(Options) Options
		code pdferr.Code
	}{
		{"missing image", New(loader), src, func(o Options) Options { o.ImageRef = "gone.png"; return o }, pdferr.ImageUnavailable},
		{"empty image ref", New(loader), src, func(o Options) Options { o.ImageRef = ""; return o }, pdferr.ImageUnavailable},
		{"unreadable file image", New(), src, func(o Options) Options { o.ImageRef = "/nonexistent/logo.png"; return o }, pdferr.ImageUnavailable},
		{"garbage source", New(loader), []byte("not a pdf"), func(o Options) Options { return o }, pdferr.SourceDocumentUnreadable},
		{"caption font", New(loader, WithCaptionFont("/nonexistent/font.ttf")), src, func(o Options) Options { return o }, pdferr.FontUnavailable},
		{"zero scale", New(loader), src, func(o Options) Options { o.ScalePercent = 0; return o }, pdferr.InvalidInput},
		{"opacity range", New(loader), src, func(o Options) Options { o.FillOpacity = 1.5; return o }, pdferr.InvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tc.s.Stamp(context.Background(), tc.src, tc.opts(good))
			if !pdferr.Is(err, tc.code) {
				t.Fatalf("expected %v, got %v", tc.code, err)
			}
			if out != nil {
				t.Fatalf("no output expected on failure")
			}
		})
	}
}

func TestStampRejectsEncryptedSource(t *testing.T) {
	src := sourcePDF(t, 1, 200, 200)
	// The trailer follows the xref table, so inserting a key keeps offsets valid.
	enc := bytes.Replace(src, []byte("/Root"), []byte("/Encrypt 99 0 R /Root"), 1)
	_, err := New(WithImageLoader(memoryLoader(testImage(4, 4)))).Stamp(context.Background(), enc, Options{
		FillOpacity: 1, StrokeOpacity: 1, ScalePercent: 100, ImageRef: "logo.png",
	})
	if !pdferr.Is(err, pdferr.SourceDocumentUnreadable) {
		t.Fatalf("expected SourceDocumentUnreadable, got %v", err)
	}
}

func TestStampDeterministicAndConcurrent(t *testing.T) {
	src := sourcePDF(t, 2, 200, 300)
	s := New(
		WithImageLoader(memoryLoader(testImage(8, 8))),
		WithWriterConfig(writer.Config{Deterministic: true, Compression: 6}),
	)
	opts := Options{FillOpacity: 0.4, StrokeOpacity: 0.4, RotationDegrees: 90, ScalePercent: 200, ImageRef: "logo.png"}
	want, err := s.Stamp(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Stamp(context.Background(), src, opts)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, want) {
				errs <- errors.New("output differs between runs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestStampCancelled(t *testing.T) {
	src := sourcePDF(t, 1, 200, 200)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := New(WithImageLoader(memoryLoader(testImage(4, 4)))).Stamp(ctx, src, Options{
		FillOpacity: 1, StrokeOpacity: 1, ScalePercent: 100, ImageRef: "logo.png",
	})
	if err == nil || out != nil {
		t.Fatalf("cancelled stamp should fail without output")
	}
}
