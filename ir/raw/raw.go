// Package raw holds PDF objects as they appear in the file: no filters
// applied and references left unresolved. The stamper edits pages at this
// level so that everything it does not touch survives byte for byte.
package raw

import (
	"context"
	"fmt"
	"io"
)

// ObjectRef names an indirect object by number and generation.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary is the read/write view of DictObj used by the filter and writer
// packages.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Keys() []Name
	Len() int
}

type Name interface {
	Object
	Value() string
}

// String is a literal or hex string; IsHex preserves the spelling for output.
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Document is a parsed file: every live object keyed by reference plus the
// newest trailer.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string
	Encrypted bool
	// Size is the trailer's /Size, one past the highest object number.
	Size int
	// StartXRef is the offset of the newest cross-reference section, or -1
	// when the object table was rebuilt by scanning.
	StartXRef int64
	// XRefStream is set when the newest section is a cross-reference stream,
	// so that an appended section uses the same form.
	XRefStream bool
}

// Parser converts bytes into a raw Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
