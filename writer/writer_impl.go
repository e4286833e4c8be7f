package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

type impl struct{ interceptors []Interceptor }

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	if obj == nil {
		return nil, fmt.Errorf("object %d %d is nil", ref.Num, ref.Gen)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(encodeObject(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config) error {
	if doc == nil || len(doc.Pages) == 0 {
		return errors.New("document has no pages")
	}
	b := newObjectBuilder(cfg, 1)
	catalogRef, infoRef, err := b.buildDocument(doc)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", pdfVersion(cfg))
	entries := make(map[int]xrefEntry, len(b.objects))
	if err := w.emit(ctx, &buf, b.objects, entries); err != nil {
		return err
	}

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.RefObj{R: catalogRef})
	if infoRef != nil {
		trailer.Set(raw.NameLiteral("Info"), raw.RefObj{R: *infoRef})
	}
	ids := fileID(doc, cfg)
	trailer.Set(raw.NameLiteral("ID"), raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1])))
	if err := w.finish(ctx, &buf, entries, trailer, cfg.XRefStreams, b.next, -1); err != nil {
		return err
	}
	_, err = out.Write(buf.Bytes())
	return err
}

// emit serializes objects in number order and records their offsets.
func (w *impl) emit(ctx context.Context, buf *bytes.Buffer, objects map[raw.ObjectRef]raw.Object, entries map[int]xrefEntry) error {
	refs := make([]raw.ObjectRef, 0, len(objects))
	for ref := range objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return err
			}
		}
		data, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		entries[ref.Num] = xrefEntry{offset: int64(buf.Len()), gen: ref.Gen}
		buf.Write(data)
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, int64(len(data))); err != nil {
				return err
			}
		}
	}
	return nil
}

// finish writes the cross-reference section, the trailer and startxref.
// nextNum is the first unused object number; prev is the previous section
// offset, or negative for a self-contained file.
func (w *impl) finish(ctx context.Context, buf *bytes.Buffer, entries map[int]xrefEntry, trailer *raw.DictObj, xrefStream bool, nextNum int, prev int64) error {
	full := prev < 0
	if prev >= 0 {
		trailer.Set(raw.NameLiteral("Prev"), raw.NumberInt(prev))
	}
	if !xrefStream {
		trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(sizeFor(entries, nextNum))))
		start := buf.Len()
		writeXRefTable(buf, entries, full)
		buf.WriteString("trailer\n")
		buf.Write(encodeObject(trailer))
		fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", start)
		return nil
	}

	ref := raw.ObjectRef{Num: nextNum}
	start := int64(buf.Len())
	entries[ref.Num] = xrefEntry{offset: start}
	index, data := xrefStreamIndexAndEntries(entries, full)
	dict := trailer.Clone()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XRef"))
	dict.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(sizeFor(entries, nextNum+1))))
	dict.Set(raw.NameLiteral("W"), raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(2)))
	dict.Set(raw.NameLiteral("Index"), index)
	if enc, err := flateEncode(data, -1); err == nil {
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
		data = enc
	}
	if err := w.emit(ctx, buf, map[raw.ObjectRef]raw.Object{ref: raw.NewStream(dict, data)}, map[int]xrefEntry{}); err != nil {
		return err
	}
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", start)
	return nil
}

func sizeFor(entries map[int]xrefEntry, nextNum int) int {
	size := nextNum
	for n := range entries {
		if n+1 > size {
			size = n + 1
		}
	}
	return size
}
