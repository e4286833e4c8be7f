package parser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pboffice01/PDFGeneral/filters"
	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/observability"
	"github.com/pboffice01/PDFGeneral/recovery"
	"github.com/pboffice01/PDFGeneral/scanner"
	"github.com/pboffice01/PDFGeneral/xref"
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery recovery.Strategy
	XRef     xref.ResolverConfig
	Limits   Limits
	Cache    Cache
	Logger   observability.Logger
	// Reconstruct rebuilds the object table by scanning the whole file when
	// the cross-reference data cannot be used.
	Reconstruct bool
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.withDefaults()
	if cfg.XRef.MaxXRefDepth == 0 {
		cfg.XRef.MaxXRefDepth = cfg.Limits.MaxXRefDepth
	}
	if cfg.XRef.Recovery == nil {
		cfg.XRef.Recovery = cfg.Recovery
	}
	if cfg.XRef.Limits == (filters.Limits{}) {
		cfg.XRef.Limits = filters.Limits{MaxDecompressedSize: cfg.Limits.MaxDecompressedSize, MaxDecodeTime: cfg.Limits.MaxDecodeTime}
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &DocumentParser{cfg: cfg}
}

// Parse reads every live object of r. Encrypted documents are returned with
// Encrypted set and no objects, since decryption is not supported.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Limits.MaxParseTime)
	defer cancel()
	start := time.Now()

	version, err := raw.ReadVersion(r)
	if err != nil {
		return nil, err
	}

	resolver := xref.NewResolver(p.cfg.XRef)
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		if !p.cfg.Reconstruct {
			return nil, fmt.Errorf("resolve xref: %w", err)
		}
		p.cfg.Logger.Warn("xref unusable, reconstructing", observability.Error("error", err))
		return p.reconstruct(ctx, r)
	}

	doc := &raw.Document{
		Objects:    make(map[raw.ObjectRef]raw.Object),
		Trailer:    table.Trailer(),
		Version:    version,
		StartXRef:  table.StartXRef(),
		XRefStream: table.Type() == "xref-stream",
	}
	if size, ok := doc.Trailer.Lookup("Size"); ok {
		if n, ok := size.(raw.NumberObj); ok {
			doc.Size = int(n.Int())
		}
	}
	if _, ok := doc.Trailer.Lookup("Encrypt"); ok {
		doc.Encrypted = true
		return doc, nil
	}

	loader, err := (&ObjectLoaderBuilder{
		reader:    r,
		xrefTable: table,
		limits:    p.cfg.Limits,
		cache:     p.cfg.Cache,
		recovery:  p.cfg.Recovery,
	}).Build()
	if err != nil {
		return nil, err
	}

	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue
		}
		gen := 0
		if _, g, found := table.Lookup(objNum); found {
			gen = g
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if p.skip(ctx, err, objNum, gen) {
				continue
			}
			if p.cfg.Reconstruct {
				p.cfg.Logger.Warn("object unreadable, reconstructing", observability.Int("object", objNum), observability.Error("error", err))
				return p.reconstruct(ctx, r)
			}
			return nil, fmt.Errorf("load object %d: %w", objNum, err)
		}
		doc.Objects[ref] = obj
	}
	p.applyCatalogVersion(doc)

	p.cfg.Logger.Debug("parsed document",
		observability.Int("objects", len(doc.Objects)),
		observability.String("version", doc.Version),
		observability.Int("sections", len(resolver.Incremental())),
		observability.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return doc, nil
}

func (p *DocumentParser) skip(ctx context.Context, err error, objNum, gen int) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	action := p.cfg.Recovery.OnError(ctx, err, recovery.Location{ObjectNum: objNum, ObjectGen: gen, Component: "parser"})
	return recovery.Allows(action)
}

// reconstruct scans the file for object headers and expands any object
// streams it finds.
func (p *DocumentParser) reconstruct(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	cfg := scanner.Config{
		MaxStringLength: p.cfg.Limits.MaxStringLength,
		MaxArrayDepth:   p.cfg.Limits.MaxNestingDepth,
		MaxDictDepth:    p.cfg.Limits.MaxNestingDepth,
		MaxStreamLength: p.cfg.Limits.MaxStreamLength,
		Recovery:        p.cfg.Recovery,
	}
	doc, err := raw.NewParser(raw.ParserConfig{Scanner: cfg, Recovery: p.cfg.Recovery}).Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	if doc.Encrypted {
		return doc, nil
	}
	pipeline := filters.NewDefaultPipeline(filters.Limits{
		MaxDecompressedSize: p.cfg.Limits.MaxDecompressedSize,
		MaxDecodeTime:       p.cfg.Limits.MaxDecodeTime,
	})
	for ref, obj := range doc.Objects {
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		if t, _ := st.Dict.Lookup("Type"); t != raw.NameLiteral("ObjStm") {
			continue
		}
		objs, err := decodeObjectStream(ctx, pipeline, st, cfg, p.cfg.Recovery)
		if err != nil {
			p.cfg.Logger.Warn("skipping unreadable object stream", observability.Int("object", ref.Num), observability.Error("error", err))
			continue
		}
		for num, o := range objs {
			key := raw.ObjectRef{Num: num}
			if _, exists := doc.Objects[key]; !exists {
				doc.Objects[key] = o
			}
		}
	}
	if _, ok := doc.Trailer.Lookup("Root"); !ok {
		if ref, ok := findCatalogRef(doc); ok {
			doc.Trailer.Set(raw.NameLiteral("Root"), raw.RefObj{R: ref})
		}
	}
	doc.Size = doc.MaxObjectNum() + 1
	doc.Trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(doc.Size)))
	p.applyCatalogVersion(doc)
	p.cfg.Logger.Info("reconstructed document", observability.Int("objects", len(doc.Objects)))
	return doc, nil
}

func findCatalogRef(doc *raw.Document) (raw.ObjectRef, bool) {
	for ref, obj := range doc.Objects {
		if d, ok := obj.(*raw.DictObj); ok {
			if t, _ := d.Lookup("Type"); t == raw.NameLiteral("Catalog") {
				return ref, true
			}
		}
	}
	return raw.ObjectRef{}, false
}

// applyCatalogVersion lets a catalog /Version entry raise the header version.
func (p *DocumentParser) applyCatalogVersion(doc *raw.Document) {
	root, ok := doc.Root()
	if !ok {
		return
	}
	v, ok := doc.NameOf(doc.Get(root, "Version"))
	if ok && v > doc.Version {
		doc.Version = v
	}
}
