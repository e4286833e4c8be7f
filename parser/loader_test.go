package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/scanner"
	"github.com/pboffice01/PDFGeneral/xref"
)

type countingCache struct {
	m          map[raw.ObjectRef]raw.Object
	hits, puts int
}

func (c *countingCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	v, ok := c.m[ref]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *countingCache) Put(ref raw.ObjectRef, obj raw.Object) {
	if c.m == nil {
		c.m = make(map[raw.ObjectRef]raw.Object)
	}
	c.puts++
	c.m[ref] = obj
}

// numberedPDF writes body[i] as object i+1 behind a classic xref table.
func numberedPDF(body ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(body))
	for i, obj := range body {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(body)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(body)+1, xrefAt)
	return buf.Bytes()
}

func newLoader(t *testing.T, data []byte, cache Cache, maxDepth int) ObjectLoader {
	t.Helper()
	r := bytes.NewReader(data)
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), r)
	if err != nil {
		t.Fatalf("resolve xref: %v", err)
	}
	loader, err := (&ObjectLoaderBuilder{maxDepth: maxDepth}).WithReader(r).WithXRef(table).WithCache(cache).Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	return loader
}

var loaderFixture = numberedPDF(
	"<< /Type /Catalog /Pages 2 0 R >>",
	"<< /Type /Pages /Kids [] /Count 0 >>",
	"4 0 R",
	"<< /Kind /Target >>",
	"6 0 R",
	"5 0 R",
	"<< /Length 8 0 R >>\nstream\nab endstream cd\nendstream",
	"15",
)

func TestObjectLoaderServesRepeatLoadsFromCache(t *testing.T) {
	cache := &countingCache{}
	loader := newLoader(t, loaderFixture, cache, 0)
	ref := raw.ObjectRef{Num: 2}
	first, err := loader.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	second, err := loader.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if first != second || cache.puts != 1 || cache.hits != 1 {
		t.Fatalf("puts=%d hits=%d same=%v", cache.puts, cache.hits, first == second)
	}
}

func TestObjectLoaderFollowsReferenceChains(t *testing.T) {
	loader := newLoader(t, loaderFixture, nil, 3)
	obj, err := loader.LoadIndirect(context.Background(), raw.ObjectRef{Num: 3}, 0)
	if err != nil {
		t.Fatalf("load 3: %v", err)
	}
	d, ok := obj.(*raw.DictObj)
	if !ok {
		t.Fatalf("got %T, want dictionary", obj)
	}
	if kind, _ := d.Lookup("Kind"); kind != raw.NameLiteral("Target") {
		t.Fatalf("followed to %v", d)
	}

	// 5 and 6 point at each other.
	if _, err := loader.LoadIndirect(context.Background(), raw.ObjectRef{Num: 5}, 0); !errors.Is(err, ErrMaxDepth) {
		t.Fatalf("cycle should hit the depth limit, got %v", err)
	}
}

func TestObjectLoaderResolvesIndirectLength(t *testing.T) {
	loader := newLoader(t, loaderFixture, nil, 0)
	obj, err := loader.Load(context.Background(), raw.ObjectRef{Num: 7})
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("got %T, want stream", obj)
	}
	// Scanning for the marker would stop at the embedded "endstream".
	if string(st.Data) != "ab endstream cd" {
		t.Fatalf("payload %q", st.Data)
	}
}

func TestObjectLoaderBuildRequiresInputs(t *testing.T) {
	if _, err := (&ObjectLoaderBuilder{}).WithReader(bytes.NewReader(loaderFixture)).Build(); err == nil {
		t.Fatal("expected an error without an xref table")
	}
	if _, err := (&ObjectLoaderBuilder{}).Build(); err == nil {
		t.Fatal("expected an error without a reader")
	}
}

func TestObjectStreamHeaderStopsAtDeclaredCount(t *testing.T) {
	entries, err := objectStreamHeader([]byte("10 0 11 7 % note\n12 15"), 2, scanner.Config{})
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	want := []objectStreamEntry{{num: 10, offset: 0}, {num: 11, offset: 7}}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}

	short, err := objectStreamHeader([]byte("3 0 4"), 5, scanner.Config{})
	if err != nil || len(short) != 1 {
		t.Fatalf("short header gave %+v, %v", short, err)
	}
}
