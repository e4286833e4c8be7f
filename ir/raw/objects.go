package raw

import "sort"

type NameObj struct{ Val string }

func NameLiteral(v string) NameObj { return NameObj{Val: v} }

func (NameObj) Type() string     { return "name" }
func (NameObj) IsIndirect() bool { return false }
func (n NameObj) Value() string  { return n.Val }

// NumberObj keeps integers exact; F is only meaningful when IsInt is false.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func NumberInt(i int64) NumberObj     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj { return NumberObj{F: f} }

func (NumberObj) Type() string      { return "number" }
func (NumberObj) IsIndirect() bool  { return false }
func (n NumberObj) IsInteger() bool { return n.IsInt }

func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

type BoolObj struct{ V bool }

func Bool(v bool) BoolObj        { return BoolObj{V: v} }
func (BoolObj) Type() string     { return "boolean" }
func (BoolObj) IsIndirect() bool { return false }
func (b BoolObj) Value() bool    { return b.V }

type NullObj struct{}

func (NullObj) Type() string     { return "null" }
func (NullObj) IsIndirect() bool { return false }

// StringObj remembers whether it was written in hex so output keeps the
// same spelling.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func Str(b []byte) StringObj    { return StringObj{Bytes: b} }
func HexStr(b []byte) StringObj { return StringObj{Bytes: b, Hex: true} }

func (StringObj) Type() string     { return "string" }
func (StringObj) IsIndirect() bool { return false }
func (s StringObj) Value() []byte  { return s.Bytes }
func (s StringObj) IsHex() bool    { return s.Hex }

type ArrayObj struct{ Items []Object }

func NewArray(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }

func (*ArrayObj) Type() string      { return "array" }
func (*ArrayObj) IsIndirect() bool  { return false }
func (a *ArrayObj) Len() int        { return len(a.Items) }
func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}

// DictObj is keyed by the decoded name, without the leading slash.
type DictObj struct{ KV map[string]Object }

func Dict() *DictObj { return &DictObj{KV: make(map[string]Object)} }

func (*DictObj) Type() string                  { return "dict" }
func (*DictObj) IsIndirect() bool              { return false }
func (d *DictObj) Len() int                    { return len(d.KV) }
func (d *DictObj) Get(key Name) (Object, bool) { return d.Lookup(key.Value()) }
func (d *DictObj) Delete(key string)           { delete(d.KV, key) }

func (d *DictObj) Set(key Name, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key.Value()] = value
}

// Lookup is Get keyed by a plain string. A nil dictionary has no keys.
func (d *DictObj) Lookup(key string) (Object, bool) {
	if d == nil {
		return nil, false
	}
	o, ok := d.KV[key]
	return o, ok
}

// Keys returns the keys sorted, which makes serialization deterministic.
func (d *DictObj) Keys() []Name {
	names := make([]string, 0, len(d.KV))
	for k := range d.KV {
		names = append(names, k)
	}
	sort.Strings(names)
	keys := make([]Name, len(names))
	for i, k := range names {
		keys[i] = NameObj{Val: k}
	}
	return keys
}

// Clone copies the key set; values are shared.
func (d *DictObj) Clone() *DictObj {
	out := Dict()
	if d == nil {
		return out
	}
	for k, v := range d.KV {
		out.KV[k] = v
	}
	return out
}

// StreamObj holds the bytes between stream and endstream, still encoded.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func NewStream(dict *DictObj, data []byte) *StreamObj { return &StreamObj{Dict: dict, Data: data} }

func (*StreamObj) Type() string      { return "stream" }
func (*StreamObj) IsIndirect() bool  { return false }
func (s *StreamObj) RawData() []byte { return s.Data }

type RefObj struct{ R ObjectRef }

func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

func (RefObj) Type() string     { return "ref" }
func (RefObj) IsIndirect() bool { return true }
func (r RefObj) Ref() ObjectRef { return r.R }
