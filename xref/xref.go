package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pboffice01/PDFGeneral/filters"
	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/recovery"
	"github.com/pboffice01/PDFGeneral/scanner"
)

// Table maps object numbers to their location in the file.
type Table interface {
	// Lookup returns the byte offset of an uncompressed object.
	Lookup(objNum int) (offset int64, gen int, found bool)
	// ObjStream returns the object stream holding a compressed object and
	// the object's index inside it.
	ObjStream(objNum int) (streamNum int, index int, found bool)
	Objects() []int
	// Type is "table" or "xref-stream", describing the newest section.
	Type() string
	Trailer() *raw.DictObj
	StartXRef() int64
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
	Linearized() bool
	Trailer() *raw.DictObj
	// Incremental returns one table per section, newest first.
	Incremental() []Table
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Limits       filters.Limits
}

// NewResolver returns a resolver for classic tables, xref streams, hybrid
// files and incremental update chains.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &resolver{cfg: cfg}
}

type entryKind int

const (
	kindFree entryKind = iota
	kindOffset
	kindCompressed
)

type entry struct {
	kind   entryKind
	offset int64
	gen    int
	stream int
	index  int
}

type table struct {
	entries   map[int]entry
	trailer   *raw.DictObj
	kind      string
	startxref int64
}

func newTable(kind string, start int64) *table {
	return &table{entries: make(map[int]entry), kind: kind, startxref: start}
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.kind != kindOffset {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.kind != kindCompressed {
		return 0, 0, false
	}
	return e.stream, e.index, true
}

// Objects lists object numbers in use, ascending.
func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.kind != kindFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Type() string          { return t.kind }
func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) StartXRef() int64      { return t.startxref }

// mergeOlder adds entries from an older section that are not already defined.
// Free entries in newer sections shadow older definitions.
func (t *table) mergeOlder(older *table) {
	for num, e := range older.entries {
		if _, ok := t.entries[num]; !ok {
			t.entries[num] = e
		}
	}
	if older.trailer == nil {
		return
	}
	if t.trailer == nil {
		t.trailer = older.trailer.Clone()
		return
	}
	for k, v := range older.trailer.KV {
		if k == "Prev" || k == "XRefStm" {
			continue
		}
		if _, ok := t.trailer.KV[k]; !ok {
			t.trailer.KV[k] = v
		}
	}
}

type resolver struct {
	cfg        ResolverConfig
	linearized bool
	trailer    *raw.DictObj
	sections   []Table
}

func (r *resolver) Linearized() bool      { return r.linearized }
func (r *resolver) Trailer() *raw.DictObj { return r.trailer }
func (r *resolver) Incremental() []Table  { return r.sections }

func (r *resolver) Resolve(ctx context.Context, in io.ReaderAt) (Table, error) {
	r.sections = nil
	start, err := findStartXRef(in)
	if err != nil {
		return nil, err
	}
	s := scanner.New(in, scanner.Config{Recovery: r.cfg.Recovery})

	merged := (*table)(nil)
	visited := make(map[int64]bool)
	offset := start
	for depth := 0; offset >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d sections", r.cfg.MaxXRefDepth)
		}
		if visited[offset] {
			return nil, fmt.Errorf("xref loop at offset %d", offset)
		}
		visited[offset] = true

		sec, err := r.readSection(ctx, s, offset)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", offset, err)
		}
		// A hybrid file carries a cross-reference stream for objects the
		// classic table omits; it ranks between this table and /Prev.
		if stm, ok := intEntry(sec.trailer, "XRefStm"); ok && stm != offset {
			hidden, err := r.readSection(ctx, s, stm)
			if err != nil {
				return nil, fmt.Errorf("xref stream at %d: %w", stm, err)
			}
			sec.mergeOlder(&table{entries: hidden.entries})
		}
		r.sections = append(r.sections, sec)

		if merged == nil {
			merged = newTable(sec.kind, start)
			merged.trailer = sec.trailer.Clone()
			for k, v := range sec.entries {
				merged.entries[k] = v
			}
		} else {
			merged.mergeOlder(sec)
		}

		prev, ok := intEntry(sec.trailer, "Prev")
		if !ok {
			break
		}
		offset = prev
	}

	if err := validate(merged); err != nil {
		return nil, err
	}
	r.trailer = merged.trailer
	r.linearized = detectLinearized(s, merged)
	return merged, nil
}

func (r *resolver) readSection(ctx context.Context, s scanner.Scanner, offset int64) (*table, error) {
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	or := raw.NewObjectReader(s, r.cfg.Recovery)
	tok, err := or.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		return readClassic(or, offset)
	}
	or.Unread(tok)
	return r.readStream(ctx, or, offset)
}

// readClassic parses "start count" subsections followed by the trailer.
func readClassic(or *raw.ObjectReader, offset int64) (*table, error) {
	t := newTable("table", offset)
	for {
		tok, err := or.Next()
		if err != nil {
			return nil, fmt.Errorf("unexpected end of xref section: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		countTok, err := or.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber || !tok.IsInt || !countTok.IsInt {
			return nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		first, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err := or.Next()
			if err != nil {
				return nil, err
			}
			genTok, err := or.Next()
			if err != nil {
				return nil, err
			}
			kindTok, err := or.Next()
			if err != nil {
				return nil, err
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry for object %d", first+i)
			}
			num := first + i
			if _, dup := t.entries[num]; dup {
				continue
			}
			switch kindTok.Str {
			case "n":
				t.entries[num] = entry{kind: kindOffset, offset: offTok.Int, gen: int(genTok.Int)}
			case "f":
				if num != 0 {
					t.entries[num] = entry{kind: kindFree, gen: int(genTok.Int)}
				}
			default:
				return nil, fmt.Errorf("invalid xref entry type %q", kindTok.Str)
			}
		}
	}
	obj, err := or.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	t.trailer = trailer
	return t, nil
}

func (r *resolver) readStream(ctx context.Context, or *raw.ObjectReader, offset int64) (*table, error) {
	_, obj, err := or.ReadIndirect(nil)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("xref offset does not point to xref keyword or stream")
	}
	if n, _ := st.Dict.Lookup("Type"); n != raw.NameLiteral("XRef") {
		return nil, errors.New("stream at xref offset is not /Type /XRef")
	}
	names, params := filters.StreamFilters(st.Dict)
	data, err := filters.NewDefaultPipeline(r.cfg.Limits).Decode(ctx, st.Data, names, params)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}

	w, err := intArray(st.Dict, "W")
	if err != nil || len(w) != 3 {
		return nil, errors.New("xref stream /W must hold three widths")
	}
	for _, n := range w {
		if n < 0 || n > 8 {
			return nil, fmt.Errorf("xref stream field width %d out of range", n)
		}
	}
	size, _ := intEntry(st.Dict, "Size")
	index, err := intArray(st.Dict, "Index")
	if err != nil || len(index) == 0 {
		index = []int64{0, size}
	}
	if len(index)%2 != 0 {
		return nil, errors.New("xref stream /Index must hold pairs")
	}

	t := newTable("xref-stream", offset)
	t.trailer = st.Dict
	rowLen := int(w[0] + w[1] + w[2])
	if rowLen == 0 {
		return nil, errors.New("xref stream rows are empty")
	}
	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, errors.New("xref stream data shorter than /Index")
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = be(row[:w[0]])
			}
			f2 := be(row[w[0] : w[0]+w[1]])
			f3 := be(row[w[0]+w[1]:])
			num := first + j
			if _, dup := t.entries[num]; dup {
				continue
			}
			switch typ {
			case 0:
				if num != 0 {
					t.entries[num] = entry{kind: kindFree}
				}
			case 1:
				t.entries[num] = entry{kind: kindOffset, offset: f2, gen: int(f3)}
			case 2:
				t.entries[num] = entry{kind: kindCompressed, stream: int(f2), index: int(f3)}
			}
		}
	}
	return t, nil
}

func be(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intEntry(d *raw.DictObj, key string) (int64, bool) {
	v, ok := d.Lookup(key)
	if !ok {
		return 0, false
	}
	n, ok := v.(raw.NumberObj)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

func intArray(d *raw.DictObj, key string) ([]int64, error) {
	v, ok := d.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("missing /%s", key)
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok {
		return nil, fmt.Errorf("/%s is not an array", key)
	}
	out := make([]int64, 0, arr.Len())
	for _, item := range arr.Items {
		n, ok := item.(raw.NumberObj)
		if !ok {
			return nil, fmt.Errorf("/%s holds a non-number", key)
		}
		out = append(out, n.Int())
	}
	return out, nil
}

// validate checks the merged trailer against the entries it describes.
func validate(t *table) error {
	if t.trailer == nil {
		return errors.New("missing trailer")
	}
	size, ok := intEntry(t.trailer, "Size")
	if !ok {
		return errors.New("trailer missing /Size")
	}
	for num, e := range t.entries {
		if e.kind != kindFree && int64(num) >= size {
			return fmt.Errorf("object %d beyond trailer /Size %d", num, size)
		}
	}
	return nil
}

// detectLinearized reports whether the first object in the file carries a
// /Linearized dictionary.
func detectLinearized(s scanner.Scanner, t *table) bool {
	first, found := int64(-1), false
	for _, e := range t.entries {
		if e.kind == kindOffset && (!found || e.offset < first) {
			first, found = e.offset, true
		}
	}
	if !found || s.SeekTo(first) != nil {
		return false
	}
	_, obj, err := raw.NewObjectReader(s, nil).ReadIndirect(nil)
	if err != nil {
		return false
	}
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return false
	}
	_, ok = d.Lookup("Linearized")
	return ok
}

const tailWindow = 4096

// findStartXRef reads the offset after the last startxref keyword.
func findStartXRef(r io.ReaderAt) (int64, error) {
	size, err := readerSize(r)
	if err != nil {
		return 0, err
	}
	from := size - tailWindow
	if from < 0 {
		from = 0
	}
	tail := make([]byte, size-from)
	if n, err := r.ReadAt(tail, from); err != nil && !(errors.Is(err, io.EOF) && int64(n) == size-from) {
		return 0, fmt.Errorf("read file tail: %w", err)
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := bytes.TrimLeft(tail[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	off, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if off <= 0 || off >= size {
		return 0, fmt.Errorf("xref offset out of range: %d", off)
	}
	return off, nil
}

// readerSize uses Size() when available and otherwise finds the end with ReadAt.
func readerSize(r io.ReaderAt) (int64, error) {
	if sz, ok := r.(interface{ Size() int64 }); ok {
		return sz.Size(), nil
	}
	var size int64
	buf := make([]byte, 32*1024)
	for {
		n, err := r.ReadAt(buf, size)
		size += int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return size, nil
			}
			return 0, err
		}
		if n == 0 {
			return size, nil
		}
	}
}
