package stamp

import (
	"fmt"
	"sort"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/parser"
	"github.com/pboffice01/PDFGeneral/writer"
)

// merger folds overlay pages into the pages of a parsed document.
type merger struct {
	doc  *raw.Document
	app  *writer.Appender
	open raw.ObjectRef // shared "q" stream
	seen bool
}

func newMerger(doc *raw.Document, app *writer.Appender) *merger {
	return &merger{doc: doc, app: app}
}

// merge replaces page with a copy whose content is the original wrapped in
// q/Q followed by the overlay, and whose resources include the overlay's.
// Overlay names that clash with the page's own resources are renamed.
func (m *merger) merge(page parser.Page, overlay *semantic.Page) error {
	if !m.seen {
		ref, err := m.app.ContentStream(semantic.ContentStream{Operations: []semantic.Operation{semantic.Op("q")}})
		if err != nil {
			return err
		}
		m.open, m.seen = ref, true
	}

	// The page's effective resources may be inherited and shared, so the
	// update gets its own copy.
	res := page.Resources.Clone()
	names := make(map[string]string)
	if overlay.Resources != nil {
		fonts := m.category(res, "Font")
		for _, name := range sortedKeys(overlay.Resources.Fonts) {
			names[name] = bind(fonts, name, m.app.Font(overlay.Resources.Fonts[name]))
		}
		states := m.category(res, "ExtGState")
		for _, name := range sortedKeys(overlay.Resources.ExtGStates) {
			names[name] = bind(states, name, m.app.ExtGState(overlay.Resources.ExtGStates[name]))
		}
		xobjects := m.category(res, "XObject")
		for _, name := range sortedKeys(overlay.Resources.XObjects) {
			names[name] = bind(xobjects, name, m.app.Image(overlay.Resources.XObjects[name]))
		}
	}

	ops := []semantic.Operation{semantic.Op("Q")}
	for _, cs := range overlay.Contents {
		for _, op := range cs.Operations {
			ops = append(ops, rename(op, names))
		}
	}
	closeRef, err := m.app.ContentStream(semantic.ContentStream{Operations: ops})
	if err != nil {
		return err
	}

	contents := raw.NewArray(raw.RefObj{R: m.open})
	switch c := m.doc.Resolve(m.doc.Get(page.Dict, "Contents")).(type) {
	case *raw.ArrayObj:
		contents.Items = append(contents.Items, c.Items...)
	case *raw.StreamObj:
		orig, _ := page.Dict.Lookup("Contents")
		contents.Append(orig)
	}
	contents.Append(raw.RefObj{R: closeRef})

	updated := page.Dict.Clone()
	updated.Set(raw.NameLiteral("Contents"), contents)
	updated.Set(raw.NameLiteral("Resources"), res)
	updated.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberFloat(page.MediaBox[0]), raw.NumberFloat(page.MediaBox[1]),
		raw.NumberFloat(page.MediaBox[2]), raw.NumberFloat(page.MediaBox[3]),
	))
	m.app.Update(page.Ref, updated)
	return nil
}

// category returns a private copy of the named resource subdictionary,
// resolving it if the page referenced it indirectly.
func (m *merger) category(res *raw.DictObj, key string) *raw.DictObj {
	var sub *raw.DictObj
	if existing, ok := m.doc.DictOf(m.doc.Get(res, key)); ok {
		sub = existing.Clone()
	} else {
		sub = raw.Dict()
	}
	res.Set(raw.NameLiteral(key), sub)
	return sub
}

// bind stores ref in dict under name, or under name_N when name is taken.
func bind(dict *raw.DictObj, name string, ref raw.ObjectRef) string {
	final := name
	for n := 1; ; n++ {
		if _, taken := dict.Lookup(final); !taken {
			break
		}
		final = fmt.Sprintf("%s_%d", name, n)
	}
	dict.Set(raw.NameLiteral(final), raw.RefObj{R: ref})
	return final
}

// rename rewrites the resource operand of Tf, gs and Do.
func rename(op semantic.Operation, names map[string]string) semantic.Operation {
	switch op.Operator {
	case "Tf", "gs", "Do":
	default:
		return op
	}
	if len(op.Operands) == 0 {
		return op
	}
	name, ok := op.Operands[0].(semantic.NameOperand)
	if !ok {
		return op
	}
	to, ok := names[name.Value]
	if !ok || to == name.Value {
		return op
	}
	operands := append([]semantic.Operand{semantic.NameOperand{Value: to}}, op.Operands[1:]...)
	return semantic.Operation{Operator: op.Operator, Operands: operands}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
