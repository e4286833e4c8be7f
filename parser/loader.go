package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pboffice01/PDFGeneral/filters"
	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/recovery"
	"github.com/pboffice01/PDFGeneral/scanner"
	"github.com/pboffice01/PDFGeneral/xref"
)

// Cache memoises loaded objects across Load calls. Implementations must be
// safe for concurrent use when the loader is shared.
type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

// ObjectLoader reads indirect objects on demand through an xref table.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
	// LoadIndirect follows chains of bare references, failing with
	// ErrMaxDepth once depth passes the configured limit.
	LoadIndirect(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error)
}

// ErrMaxDepth is returned when a reference chain is longer than
// Limits.MaxIndirectDepth, which is also how cycles end.
var ErrMaxDepth = errors.New("max depth exceeded")

// ObjectLoaderBuilder assembles an ObjectLoader. A reader and an xref table
// are required.
type ObjectLoaderBuilder struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	maxDepth  int
	limits    Limits
	cache     Cache
	recovery  recovery.Strategy
}

func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}

func (b *ObjectLoaderBuilder) WithXRef(t xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = t
	return b
}

func (b *ObjectLoaderBuilder) WithLimits(l Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}

func (b *ObjectLoaderBuilder) WithRecovery(s recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = s
	return b
}

func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder {
	b.cache = c
	return b
}

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	switch {
	case b.reader == nil:
		return nil, errors.New("object loader: reader required")
	case b.xrefTable == nil:
		return nil, errors.New("object loader: xref table required")
	}
	l := &loader{
		src:      b.reader,
		table:    b.xrefTable,
		limits:   b.limits.withDefaults(),
		cache:    b.cache,
		recovery: b.recovery,
		streams:  make(map[int]map[int]raw.Object),
	}
	l.maxDepth = b.maxDepth
	if l.maxDepth == 0 {
		l.maxDepth = l.limits.MaxIndirectDepth
	}
	l.pipeline = filters.NewDefaultPipeline(filters.Limits{
		MaxDecompressedSize: l.limits.MaxDecompressedSize,
		MaxDecodeTime:       l.limits.MaxDecodeTime,
	})
	return l, nil
}

type loader struct {
	src      io.ReaderAt
	table    xref.Table
	maxDepth int
	limits   Limits
	cache    Cache
	recovery recovery.Strategy
	pipeline *filters.Pipeline

	// mu guards the shared scanner and the decoded object streams.
	mu      sync.Mutex
	cursor  scanner.Scanner
	streams map[int]map[int]raw.Object
}

func (l *loader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if l.cache != nil {
		if obj, ok := l.cache.Get(ref); ok {
			return obj, nil
		}
	}
	l.mu.Lock()
	obj, err := l.locate(ctx, ref)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Put(ref, obj)
	}
	return obj, nil
}

func (l *loader) LoadIndirect(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	for ; depth <= l.maxDepth; depth++ {
		obj, err := l.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		next, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		ref = next.R
	}
	return nil, fmt.Errorf("object %d: %w", ref.Num, ErrMaxDepth)
}

// locate finds ref either at a byte offset or inside an object stream.
// Callers hold mu.
func (l *loader) locate(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if offset, gen, ok := l.table.Lookup(ref.Num); ok {
		return l.readAt(ref.Num, offset, gen)
	}
	if container, _, ok := l.table.ObjStream(ref.Num); ok {
		return l.fromObjectStream(ctx, ref.Num, container)
	}
	return nil, fmt.Errorf("object %d not found in xref", ref.Num)
}

func (l *loader) scannerConfig() scanner.Config {
	return scanner.Config{
		Recovery:        l.recovery,
		MaxStringLength: l.limits.MaxStringLength,
		MaxArrayDepth:   l.limits.MaxNestingDepth,
		MaxDictDepth:    l.limits.MaxNestingDepth,
		MaxStreamLength: l.limits.MaxStreamLength,
	}
}

// readAt parses the object at offset with the shared scanner and checks its
// header against the xref entry. Callers hold mu.
func (l *loader) readAt(num int, offset int64, gen int) (raw.Object, error) {
	if l.cursor == nil {
		l.cursor = scanner.New(l.src, l.scannerConfig())
	}
	if err := l.cursor.SeekTo(offset); err != nil {
		return nil, err
	}
	got, obj, err := raw.NewObjectReader(l.cursor, l.recovery).ReadIndirect(l.resolveLength)
	if err != nil {
		return nil, fmt.Errorf("object %d at offset %d: %w", num, offset, err)
	}
	if got.Num != num || got.Gen != gen {
		mismatch := fmt.Errorf("object header %d %d does not match xref entry %d %d", got.Num, got.Gen, num, gen)
		if !l.tolerate(mismatch, offset, num, gen) {
			return nil, mismatch
		}
	}
	return obj, nil
}

// resolveLength reads an indirect /Length with a private scanner so the
// shared cursor stays on the stream being loaded.
func (l *loader) resolveLength(ref raw.ObjectRef) (int64, bool) {
	offset, gen, ok := l.table.Lookup(ref.Num)
	if !ok {
		return 0, false
	}
	s := scanner.New(l.src, l.scannerConfig())
	if s.SeekTo(offset) != nil {
		return 0, false
	}
	got, obj, err := raw.NewObjectReader(s, nil).ReadIndirect(nil)
	if err != nil || got != (raw.ObjectRef{Num: ref.Num, Gen: gen}) {
		return 0, false
	}
	n, ok := obj.(raw.NumberObj)
	return n.Int(), ok
}

func (l *loader) tolerate(err error, offset int64, num, gen int) bool {
	if l.recovery == nil {
		return false
	}
	return recovery.Allows(l.recovery.OnError(context.Background(), err, recovery.Location{
		ByteOffset: offset,
		ObjectNum:  num,
		ObjectGen:  gen,
		Component:  "parser:loader",
	}))
}

// fromObjectStream decodes the container on first use and serves every
// later lookup from the decoded set. Callers hold mu.
func (l *loader) fromObjectStream(ctx context.Context, num, container int) (raw.Object, error) {
	objs, ok := l.streams[container]
	if !ok {
		offset, gen, found := l.table.Lookup(container)
		if !found {
			return nil, fmt.Errorf("object stream %d missing from xref", container)
		}
		obj, err := l.readAt(container, offset, gen)
		if err != nil {
			return nil, err
		}
		st, isStream := obj.(*raw.StreamObj)
		if !isStream {
			return nil, fmt.Errorf("object stream %d is a %s", container, obj.Type())
		}
		if objs, err = decodeObjectStream(ctx, l.pipeline, st, l.scannerConfig(), l.recovery); err != nil {
			return nil, fmt.Errorf("object stream %d: %w", container, err)
		}
		l.streams[container] = objs
	}
	if obj, ok := objs[num]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %d not found in object stream %d", num, container)
}
