package writer

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// objectBuilder numbers objects in allocation order and turns semantic
// resources into raw objects. Identical fonts, images and graphics states
// are written once.
type objectBuilder struct {
	cfg     Config
	objects map[raw.ObjectRef]raw.Object
	next    int

	fonts   map[string]raw.ObjectRef
	images  map[string]raw.ObjectRef
	gstates map[string]raw.ObjectRef
}

func newObjectBuilder(cfg Config, first int) *objectBuilder {
	return &objectBuilder{
		cfg:     cfg,
		objects: make(map[raw.ObjectRef]raw.Object),
		next:    first,
		fonts:   make(map[string]raw.ObjectRef),
		images:  make(map[string]raw.ObjectRef),
		gstates: make(map[string]raw.ObjectRef),
	}
}

// dictFields is the key set of a dictionary under construction.
type dictFields map[string]raw.Object

func dictOf(e dictFields) *raw.DictObj { return &raw.DictObj{KV: e} }

func pdfName(s string) raw.NameObj { return raw.NameLiteral(s) }

func integer(i int) raw.NumberObj { return raw.NumberInt(int64(i)) }

func ref(r raw.ObjectRef) raw.RefObj { return raw.RefObj{R: r} }

// reserve hands out a number whose object is stored later.
func (b *objectBuilder) reserve() raw.ObjectRef {
	r := raw.ObjectRef{Num: b.next}
	b.next++
	return r
}

func (b *objectBuilder) add(obj raw.Object) raw.ObjectRef {
	r := b.reserve()
	b.objects[r] = obj
	return r
}

// buildDocument emits the catalog, page tree, pages and info dictionary.
// The catalog is always object 1 of a fresh document.
func (b *objectBuilder) buildDocument(doc *semantic.Document) (catalog raw.ObjectRef, info *raw.ObjectRef, err error) {
	catalog = b.reserve()
	tree := b.reserve()
	kids := make([]raw.Object, 0, len(doc.Pages))
	for i, p := range doc.Pages {
		pageRef, err := b.buildPage(p, tree)
		if err != nil {
			return raw.ObjectRef{}, nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		kids = append(kids, ref(pageRef))
	}
	b.objects[tree] = dictOf(dictFields{
		"Type":  pdfName("Pages"),
		"Count": integer(len(doc.Pages)),
		"Kids":  raw.NewArray(kids...),
	})
	b.objects[catalog] = dictOf(dictFields{
		"Type":  pdfName("Catalog"),
		"Pages": ref(tree),
	})
	if d := infoDict(doc.Info); d != nil {
		r := b.add(d)
		info = &r
	}
	return catalog, info, nil
}

// infoDict returns nil when every field is empty.
func infoDict(info *semantic.DocumentInfo) *raw.DictObj {
	if info == nil {
		return nil
	}
	e := dictFields{}
	for key, value := range map[string]string{
		"Title":    info.Title,
		"Author":   info.Author,
		"Subject":  info.Subject,
		"Creator":  info.Creator,
		"Producer": info.Producer,
		"Keywords": strings.Join(info.Keywords, ", "),
	} {
		if value != "" {
			e[key] = textString(value)
		}
	}
	if len(e) == 0 {
		return nil
	}
	return dictOf(e)
}

// textString keeps ASCII as a literal string. Anything else becomes
// UTF-16BE behind a byte-order mark.
func textString(s string) raw.StringObj {
	if !strings.ContainsFunc(s, func(r rune) bool { return r >= 0x80 }) {
		return raw.Str([]byte(s))
	}
	units := utf16Units(s)
	out := make([]byte, 2, 2+2*len(units))
	out[0], out[1] = 0xFE, 0xFF
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return raw.HexStr(out)
}

// buildPage writes resources before content so shared objects get the
// lower numbers.
func (b *objectBuilder) buildPage(p *semantic.Page, parent raw.ObjectRef) (raw.ObjectRef, error) {
	self := b.reserve()
	page := dictFields{
		"Type":      pdfName("Page"),
		"Parent":    ref(parent),
		"MediaBox":  rectArray(p.MediaBox),
		"Resources": b.resourcesDict(p.Resources),
	}
	if rot := normalizeRotation(p.Rotate); rot != 0 {
		page["Rotate"] = integer(rot)
	}
	streams := make([]raw.Object, 0, len(p.Contents))
	for _, cs := range p.Contents {
		r, err := b.contentStream(cs)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		streams = append(streams, ref(r))
	}
	switch len(streams) {
	case 0:
	case 1:
		page["Contents"] = streams[0]
	default:
		page["Contents"] = raw.NewArray(streams...)
	}
	b.objects[self] = dictOf(page)
	return self, nil
}

// contentStream adds cs as a stream object, flate-encoded when compression
// is configured.
func (b *objectBuilder) contentStream(cs semantic.ContentStream) (raw.ObjectRef, error) {
	data := SerializeContentStream(cs)
	dict := raw.Dict()
	if level := b.cfg.Compression; level != 0 {
		packed, err := flateEncode(data, level)
		if err != nil {
			return raw.ObjectRef{}, fmt.Errorf("compress content: %w", err)
		}
		data = packed
		dict.Set(pdfName("Filter"), pdfName("FlateDecode"))
	}
	return b.add(raw.NewStream(dict, data)), nil
}

// resourcesDict lists resources in name order so output is stable.
func (b *objectBuilder) resourcesDict(res *semantic.Resources) *raw.DictObj {
	procs := []raw.Object{pdfName("PDF"), pdfName("Text")}
	d := dictFields{}
	if res != nil {
		if len(res.Fonts) > 0 {
			d["Font"] = namedRefs(res.Fonts, b.ensureFont)
		}
		if len(res.XObjects) > 0 {
			d["XObject"] = namedRefs(res.XObjects, b.ensureXObject)
			procs = append(procs, pdfName("ImageB"), pdfName("ImageC"))
		}
		if len(res.ExtGStates) > 0 {
			d["ExtGState"] = namedRefs(res.ExtGStates, b.ensureExtGState)
		}
	}
	d["ProcSet"] = raw.NewArray(procs...)
	return dictOf(d)
}

// namedRefs maps each resource name to the object written for its value.
func namedRefs[V any](m map[string]V, write func(V) raw.ObjectRef) *raw.DictObj {
	e := make(dictFields, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		e[k] = ref(write(m[k]))
	}
	return dictOf(e)
}
