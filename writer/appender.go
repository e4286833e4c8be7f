package writer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// trailer keys that describe a cross-reference section rather than the
// document, and must not be carried into a new section.
var sectionKeys = []string{"Type", "W", "Index", "Length", "Filter", "DecodeParms", "Prev", "XRefStm", "Size"}

// Appender adds new and replaced objects to an existing file as a single
// incremental update. The base bytes are never modified.
type Appender struct {
	base    []byte
	doc     *raw.Document
	cfg     Config
	w       *impl
	b       *objectBuilder
	updated map[raw.ObjectRef]raw.Object
}

// NewAppender prepares an update of base, whose parsed form is doc.
func NewAppender(base []byte, doc *raw.Document, cfg Config) *Appender {
	start := max(doc.Size, doc.MaxObjectNum()+1, 1)
	if cfg.Version == "" {
		cfg.Version = PDFVersion(doc.Version)
	}
	return &Appender{
		base:    base,
		doc:     doc,
		cfg:     cfg,
		w:       &impl{},
		b:       newObjectBuilder(cfg, start),
		updated: make(map[raw.ObjectRef]raw.Object),
	}
}

// WithInterceptor registers an observer for every object the update writes.
func (a *Appender) WithInterceptor(i Interceptor) *Appender {
	a.w.interceptors = append(a.w.interceptors, i)
	return a
}

// Add stores obj under a fresh object number.
func (a *Appender) Add(obj raw.Object) raw.ObjectRef { return a.b.add(obj) }

// Update replaces the object at ref in the new revision.
func (a *Appender) Update(ref raw.ObjectRef, obj raw.Object) { a.updated[ref] = obj }

// Font returns the reference of font, adding it on first use.
func (a *Appender) Font(font *semantic.Font) raw.ObjectRef { return a.b.ensureFont(font) }

// Image returns the reference of an image XObject, adding it on first use.
func (a *Appender) Image(xo semantic.XObject) raw.ObjectRef { return a.b.ensureXObject(xo) }

// ExtGState returns the reference of a graphics state dictionary.
func (a *Appender) ExtGState(gs semantic.ExtGState) raw.ObjectRef { return a.b.ensureExtGState(gs) }

// ContentStream adds cs as a stream, compressed per the writer config.
func (a *Appender) ContentStream(cs semantic.ContentStream) (raw.ObjectRef, error) {
	return a.b.contentStream(cs)
}

// Bytes returns the base file followed by the update. A base whose object
// table was reconstructed has no usable xref to chain to, so it is rewritten
// as a complete file instead.
func (a *Appender) Bytes(ctx context.Context) ([]byte, error) {
	if a.doc.Trailer == nil {
		return nil, errors.New("base document has no trailer")
	}
	if a.doc.StartXRef < 0 {
		return a.rewrite(ctx)
	}

	objects := make(map[raw.ObjectRef]raw.Object, len(a.b.objects)+len(a.updated))
	for ref, obj := range a.b.objects {
		objects[ref] = obj
	}
	for ref, obj := range a.updated {
		objects[ref] = obj
	}

	var buf bytes.Buffer
	buf.Grow(len(a.base) + 4096)
	buf.Write(a.base)
	if n := len(a.base); n > 0 && a.base[n-1] != '\n' && a.base[n-1] != '\r' {
		buf.WriteByte('\n')
	}
	entries := make(map[int]xrefEntry, len(objects))
	if err := a.w.emit(ctx, &buf, objects, entries); err != nil {
		return nil, err
	}
	trailer := a.trailer()
	if err := a.w.finish(ctx, &buf, entries, trailer, a.doc.XRefStream, max(a.b.next, a.doc.Size), a.doc.StartXRef); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Appender) trailer() *raw.DictObj {
	t := a.doc.Trailer.Clone()
	for _, k := range sectionKeys {
		t.Delete(k)
	}
	if ids, ok := t.Lookup("ID"); ok {
		if arr, ok := ids.(*raw.ArrayObj); ok && arr.Len() == 2 {
			t.Set(raw.NameLiteral("ID"), raw.NewArray(arr.Items[0], raw.HexStr(a.revisionID())))
		}
	}
	return t
}

// revisionID derives the second file identifier from the base and the
// update contents, so identical updates yield identical files.
func (a *Appender) revisionID() []byte {
	h := sha256.New()
	h.Write(a.base)
	for _, ref := range sortedRefs(a.updated) {
		fmt.Fprintf(h, "%d %d", ref.Num, ref.Gen)
		h.Write(encodeObject(a.updated[ref]))
	}
	fmt.Fprintf(h, "%d", len(a.b.objects))
	return h.Sum(nil)[:16]
}

// rewrite serializes every object of the base plus the update as a new file.
func (a *Appender) rewrite(ctx context.Context) ([]byte, error) {
	objects := make(map[raw.ObjectRef]raw.Object, len(a.doc.Objects)+len(a.b.objects))
	for ref, obj := range a.doc.Objects {
		if st, ok := obj.(*raw.StreamObj); ok {
			if t, _ := st.Dict.Lookup("Type"); t == raw.NameLiteral("XRef") || t == raw.NameLiteral("ObjStm") {
				continue
			}
		}
		objects[ref] = obj
	}
	for ref, obj := range a.b.objects {
		objects[ref] = obj
	}
	for ref, obj := range a.updated {
		objects[ref] = obj
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", pdfVersion(a.cfg))
	entries := make(map[int]xrefEntry, len(objects))
	if err := a.w.emit(ctx, &buf, objects, entries); err != nil {
		return nil, err
	}
	trailer := a.doc.Trailer.Clone()
	for _, k := range sectionKeys {
		trailer.Delete(k)
	}
	if err := a.w.finish(ctx, &buf, entries, trailer, false, max(a.b.next, a.doc.Size), -1); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedRefs(m map[raw.ObjectRef]raw.Object) []raw.ObjectRef {
	refs := make([]raw.ObjectRef, 0, len(m))
	for ref := range m {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	return refs
}
