package raw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/pboffice01/PDFGeneral/recovery"
	"github.com/pboffice01/PDFGeneral/scanner"
)

// ParserConfig controls raw parsing behavior.
type ParserConfig struct {
	Scanner  scanner.Config
	Recovery recovery.Strategy
}

// NewParser returns a parser that scans the whole input for "n g obj"
// headers instead of trusting cross-reference data. It is the fallback used
// when a file's xref is missing or broken.
func NewParser(cfg ParserConfig) Parser {
	if cfg.Scanner.Recovery == nil {
		cfg.Scanner.Recovery = cfg.Recovery
	}
	return &parserImpl{cfg: cfg}
}

type parserImpl struct {
	cfg ParserConfig
}

func (p *parserImpl) Parse(ctx context.Context, r io.ReaderAt) (*Document, error) {
	version, err := ReadVersion(r)
	if err != nil {
		return nil, err
	}
	s := scanner.New(r, p.cfg.Scanner)
	or := NewObjectReader(s, p.cfg.Recovery)

	doc := &Document{
		Objects:   make(map[ObjectRef]Object),
		Version:   version,
		StartXRef: -1,
	}
	var xrefStreamDict *DictObj

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := or.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if p.allow(ctx, err, s.Position(), "reconstruct") {
				continue
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := or.ReadObject()
			if err != nil {
				if p.allow(ctx, err, tok.Pos, "trailer") {
					continue
				}
				return nil, fmt.Errorf("parse trailer: %w", err)
			}
			if d, ok := obj.(*DictObj); ok {
				doc.Trailer = mergeTrailer(doc.Trailer, d)
			}
			continue
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			continue
		}
		genTok, err := or.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
			or.Unread(genTok)
			continue
		}
		kwTok, err := or.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
			or.Unread(kwTok)
			or.Unread(genTok)
			continue
		}
		or.Unread(kwTok)
		or.Unread(genTok)
		or.Unread(tok)

		ref, obj, err := or.ReadIndirect(nil)
		if err != nil {
			if p.allow(ctx, err, tok.Pos, "reconstruct") {
				continue
			}
			return nil, fmt.Errorf("parse object %d %d: %w", tok.Int, genTok.Int, err)
		}
		// Later definitions of the same object win, as in incremental updates.
		doc.Objects[ref] = obj
		if st, ok := obj.(*StreamObj); ok {
			if n, _ := st.Dict.Lookup("Type"); n == NameLiteral("XRef") {
				xrefStreamDict = mergeTrailer(xrefStreamDict, st.Dict)
			}
		}
	}

	if doc.Trailer == nil && xrefStreamDict != nil {
		doc.Trailer = xrefStreamDict.Clone()
	}
	if doc.Trailer == nil {
		doc.Trailer = Dict()
	}
	if _, ok := doc.Trailer.Lookup("Root"); !ok {
		if ref, ok := findCatalog(doc); ok {
			doc.Trailer.Set(NameLiteral("Root"), RefObj{R: ref})
		}
	}
	_, doc.Encrypted = doc.Trailer.Lookup("Encrypt")
	doc.Size = doc.MaxObjectNum() + 1
	return doc, nil
}

func (p *parserImpl) allow(ctx context.Context, err error, offset int64, component string) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	action := p.cfg.Recovery.OnError(ctx, err, recovery.Location{ByteOffset: offset, Component: "raw:" + component})
	return recovery.Allows(action)
}

// mergeTrailer overlays newer on older: keys from the newer section win.
func mergeTrailer(older, newer *DictObj) *DictObj {
	if older == nil {
		return newer.Clone()
	}
	out := older.Clone()
	for k, v := range newer.KV {
		out.KV[k] = v
	}
	return out
}

func findCatalog(doc *Document) (ObjectRef, bool) {
	var found ObjectRef
	ok := false
	for ref, obj := range doc.Objects {
		d, isDict := obj.(*DictObj)
		if !isDict {
			continue
		}
		if t, _ := d.Lookup("Type"); t == NameLiteral("Catalog") {
			if !ok || ref.Num > found.Num {
				found, ok = ref, true
			}
		}
	}
	return found, ok
}

var versionPattern = regexp.MustCompile(`%PDF-(\d\.\d)`)

// ReadVersion finds the %PDF-x.y header within the first kilobyte.
func ReadVersion(r io.ReaderAt) (string, error) {
	buf := make([]byte, 1024)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read header: %w", err)
	}
	m := versionPattern.FindSubmatch(buf[:n])
	if m == nil {
		if bytes.Contains(buf[:n], []byte("%PDF-")) {
			return "1.4", nil
		}
		return "", errors.New("missing %PDF header")
	}
	return string(m[1]), nil
}

// LengthResolver resolves an indirect /Length value before a stream is read.
type LengthResolver func(ref ObjectRef) (int64, bool)

// ObjectReader parses objects from a scanner token stream, with pushback.
type ObjectReader struct {
	s   scanner.Scanner
	rec recovery.Strategy
	buf []scanner.Token
}

func NewObjectReader(s scanner.Scanner, rec recovery.Strategy) *ObjectReader {
	return &ObjectReader{s: s, rec: rec}
}

func (r *ObjectReader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *ObjectReader) Unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}

// ReadIndirect parses "num gen obj <object> [stream] endobj" at the current
// position. Stream payload lengths come from /Length, resolving references
// through resolve when it is non-nil.
func (r *ObjectReader) ReadIndirect(resolve LengthResolver) (ObjectRef, Object, error) {
	numTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	genTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt || genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return ObjectRef{}, nil, errors.New("missing object header")
	}
	kw, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return ObjectRef{}, nil, fmt.Errorf("expected obj keyword, got %q", kw.Str)
	}
	ref := ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}
	if rc, ok := r.s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "object"})
	}

	obj, err := r.ReadObject()
	if err != nil {
		return ref, nil, err
	}
	if dict, ok := obj.(*DictObj); ok {
		r.s.SetNextStreamLength(streamLength(dict, resolve))
		tok, err := r.Next()
		switch {
		case err == nil && tok.Type == scanner.TokenStream:
			obj = NewStream(dict, tok.Bytes)
		case err == nil:
			r.s.SetNextStreamLength(-1)
			r.Unread(tok)
		case errors.Is(err, io.EOF):
			r.s.SetNextStreamLength(-1)
		default:
			return ref, nil, err
		}
	}
	if tok, err := r.Next(); err == nil {
		if tok.Type != scanner.TokenKeyword || tok.Str != "endobj" {
			r.Unread(tok)
		}
	}
	return ref, obj, nil
}

func streamLength(dict *DictObj, resolve LengthResolver) int64 {
	v, ok := dict.Lookup("Length")
	if !ok {
		return -1
	}
	switch l := v.(type) {
	case NumberObj:
		if l.Int() >= 0 {
			return l.Int()
		}
	case RefObj:
		if resolve != nil {
			if n, ok := resolve(l.R); ok && n >= 0 {
				return n
			}
		}
	}
	return -1
}

// ReadObject parses one direct object.
func (r *ObjectReader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberInt(tok.Int), nil
		}
		return NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenArray:
		return r.readArray()
	case scanner.TokenDict:
		return r.readDict()
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	}
	return nil, fmt.Errorf("unexpected token %s %q at offset %d", tok.Type, tok.Str, tok.Pos)
}

func (r *ObjectReader) readArray() (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
			if r.repair(errors.New("array missing ]"), tok.Pos) {
				r.Unread(tok)
				return arr, nil
			}
			return nil, errors.New("array missing ]")
		}
		r.Unread(tok)
		item, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (r *ObjectReader) readDict() (Object, error) {
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type == scanner.TokenStream || (tok.Type == scanner.TokenKeyword && tok.Str == "endobj") {
			if r.repair(errors.New("dictionary missing >>"), tok.Pos) {
				r.Unread(tok)
				return d, nil
			}
			return nil, errors.New("dictionary missing >>")
		}
		if tok.Type != scanner.TokenName {
			err := fmt.Errorf("expected name in dict, got %s", tok.Type)
			if r.repair(err, tok.Pos) {
				continue
			}
			return nil, err
		}
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent key.
		if _, isNull := val.(NullObj); isNull {
			continue
		}
		d.Set(NameObj{Val: tok.Str}, val)
	}
}

func (r *ObjectReader) repair(err error, offset int64) bool {
	if r.rec == nil {
		return false
	}
	return recovery.Allows(r.rec.OnError(context.Background(), err, recovery.Location{ByteOffset: offset, Component: "raw:object"}))
}
