package filters

import "github.com/pboffice01/PDFGeneral/ir/raw"

// StreamFilters returns the /Filter chain of a stream dictionary with its
// /DecodeParms aligned slot for slot. A filter without parameters gets nil.
func StreamFilters(dict *raw.DictObj) ([]string, []raw.Dictionary) {
	v, _ := dict.Lookup("Filter")
	var names []string
	switch f := v.(type) {
	case raw.Name:
		names = []string{f.Value()}
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	params := make([]raw.Dictionary, len(names))
	v, _ = dict.Lookup("DecodeParms")
	switch p := v.(type) {
	case *raw.DictObj:
		params[0] = p
	case *raw.ArrayObj:
		for i, item := range p.Items {
			if d, ok := item.(*raw.DictObj); ok && i < len(params) {
				params[i] = d
			}
		}
	}
	return names, params
}
