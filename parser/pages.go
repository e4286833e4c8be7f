package parser

import (
	"errors"
	"fmt"

	"github.com/pboffice01/PDFGeneral/ir/raw"
)

// Page is a leaf of the page tree with inheritable attributes resolved.
type Page struct {
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  [4]float64
	Resources *raw.DictObj
	Rotate    int
}

// Width and Height of the media box.
func (p Page) Width() float64  { return p.MediaBox[2] - p.MediaBox[0] }
func (p Page) Height() float64 { return p.MediaBox[3] - p.MediaBox[1] }

// DefaultMediaBox is US Letter, used when no ancestor defines /MediaBox.
var DefaultMediaBox = [4]float64{0, 0, 612, 792}

type inherited struct {
	mediaBox  raw.Object
	resources raw.Object
	rotate    raw.Object
}

// PageTree walks the catalog's /Pages tree in document order.
func PageTree(doc *raw.Document) ([]Page, error) {
	root, ok := doc.Root()
	if !ok {
		return nil, errors.New("document has no catalog")
	}
	pagesRef, ok := root.Lookup("Pages")
	if !ok {
		return nil, errors.New("catalog has no /Pages")
	}
	var pages []Page
	visited := make(map[*raw.DictObj]bool)
	if err := walkPages(doc, pagesRef, inherited{}, visited, &pages, 0); err != nil {
		return nil, err
	}
	return pages, nil
}

const maxPageTreeDepth = 64

func walkPages(doc *raw.Document, node raw.Object, inh inherited, visited map[*raw.DictObj]bool, out *[]Page, depth int) error {
	if depth > maxPageTreeDepth {
		return errors.New("page tree too deep")
	}
	dict, ok := doc.DictOf(node)
	if !ok {
		return fmt.Errorf("page tree node %v is not a dictionary", node)
	}
	if visited[dict] {
		return errors.New("page tree contains a cycle")
	}
	visited[dict] = true

	if v, ok := dict.Lookup("MediaBox"); ok {
		inh.mediaBox = v
	}
	if v, ok := dict.Lookup("Resources"); ok {
		inh.resources = v
	}
	if v, ok := dict.Lookup("Rotate"); ok {
		inh.rotate = v
	}

	typ, _ := doc.NameOf(doc.Get(dict, "Type"))
	kids, hasKids := doc.ArrayOf(doc.Get(dict, "Kids"))
	if typ == "Pages" || (typ == "" && hasKids) {
		if !hasKids {
			return nil
		}
		for _, kid := range kids.Items {
			if err := walkPages(doc, kid, inh, visited, out, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	page := Page{Dict: dict, MediaBox: DefaultMediaBox}
	if ref, ok := node.(raw.RefObj); ok {
		page.Ref = ref.R
	}
	if box, ok := rectangle(doc, inh.mediaBox); ok {
		page.MediaBox = box
	}
	if res, ok := doc.DictOf(inh.resources); ok {
		page.Resources = res
	}
	if r, ok := doc.IntOf(inh.rotate); ok {
		page.Rotate = int(((r % 360) + 360) % 360)
	}
	*out = append(*out, page)
	return nil
}

// rectangle normalises a four-number array so that [0],[1] is the lower-left corner.
func rectangle(doc *raw.Document, obj raw.Object) ([4]float64, bool) {
	arr, ok := doc.ArrayOf(obj)
	if !ok || arr.Len() != 4 {
		return [4]float64{}, false
	}
	var v [4]float64
	for i, item := range arr.Items {
		f, ok := doc.NumberOf(item)
		if !ok {
			return [4]float64{}, false
		}
		v[i] = f
	}
	if v[0] > v[2] {
		v[0], v[2] = v[2], v[0]
	}
	if v[1] > v[3] {
		v[1], v[3] = v[3], v[1]
	}
	return v, true
}
