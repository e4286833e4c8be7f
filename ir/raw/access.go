package raw

// maxResolveDepth bounds reference chains such as 1 0 R -> 2 0 R -> 1 0 R.
const maxResolveDepth = 32

// Resolve follows indirect references until it reaches a direct object.
// Dangling references resolve to nil.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < maxResolveDepth; i++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		if d == nil {
			return nil
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return nil
		}
		obj = next
	}
	return nil
}

// DictOf resolves obj and returns its dictionary, including a stream's dictionary.
func (d *Document) DictOf(obj Object) (*DictObj, bool) {
	switch v := d.Resolve(obj).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, v.Dict != nil
	}
	return nil, false
}

func (d *Document) ArrayOf(obj Object) (*ArrayObj, bool) {
	arr, ok := d.Resolve(obj).(*ArrayObj)
	return arr, ok
}

// NumberOf resolves obj as a float.
func (d *Document) NumberOf(obj Object) (float64, bool) {
	if n, ok := d.Resolve(obj).(NumberObj); ok {
		return n.Float(), true
	}
	return 0, false
}

func (d *Document) IntOf(obj Object) (int64, bool) {
	if n, ok := d.Resolve(obj).(NumberObj); ok {
		return n.Int(), true
	}
	return 0, false
}

func (d *Document) NameOf(obj Object) (string, bool) {
	if n, ok := d.Resolve(obj).(NameObj); ok {
		return n.Val, true
	}
	return "", false
}

// Get resolves key in dict, following references on the value.
func (d *Document) Get(dict *DictObj, key string) Object {
	v, ok := dict.Lookup(key)
	if !ok {
		return nil
	}
	return d.Resolve(v)
}

// Root returns the catalog dictionary named by the trailer.
func (d *Document) Root() (*DictObj, bool) {
	if d == nil || d.Trailer == nil {
		return nil, false
	}
	root, ok := d.Trailer.Lookup("Root")
	if !ok {
		return nil, false
	}
	return d.DictOf(root)
}

// MaxObjectNum returns the highest object number present in Objects.
func (d *Document) MaxObjectNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}
