// Package stamp overlays a page caption and a translucent rotated image on
// every page of an existing PDF.
package stamp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pboffice01/PDFGeneral/builder"
	"github.com/pboffice01/PDFGeneral/fonts"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
	"github.com/pboffice01/PDFGeneral/observability"
	"github.com/pboffice01/PDFGeneral/parser"
	"github.com/pboffice01/PDFGeneral/pdferr"
	"github.com/pboffice01/PDFGeneral/recovery"
	"github.com/pboffice01/PDFGeneral/writer"
)

const (
	// CaptionOffset is the distance of the caption baseline from the bottom edge.
	CaptionOffset = 10
	// ImageOffset shifts the image left of the page centre.
	ImageOffset = 100
	// DefaultCaptionSize is the caption font size.
	DefaultCaptionSize = 12

	captionFont = "FCaption"
)

// Options describes one overlay.
type Options struct {
	FillOpacity     float64
	StrokeOpacity   float64
	RotationDegrees int
	// ScalePercent scales the image from one point per pixel.
	ScalePercent float64
	ImageRef     string
}

// ImageLoader resolves an image reference.
type ImageLoader func(ref string) (*semantic.Image, error)

// Stamper applies overlays. It holds no per-call state and is safe for
// concurrent use.
type Stamper struct {
	fontPath    string
	captionSize float64
	loadImage   ImageLoader
	parserCfg   parser.Config
	writerCfg   writer.Config
	logger      observability.Logger
}

// Option configures a Stamper.
type Option func(*Stamper)

// WithCaptionFont loads the caption font from a TrueType file. An empty
// path keeps Helvetica.
func WithCaptionFont(path string) Option {
	return func(s *Stamper) { s.fontPath = path }
}

// WithCaptionSize sets the caption font size.
func WithCaptionSize(size float64) Option {
	return func(s *Stamper) {
		if size > 0 {
			s.captionSize = size
		}
	}
}

// WithImageLoader replaces the file-based image loader.
func WithImageLoader(l ImageLoader) Option {
	return func(s *Stamper) { s.loadImage = l }
}

// WithParserConfig sets how source documents are parsed.
func WithParserConfig(cfg parser.Config) Option {
	return func(s *Stamper) { s.parserCfg = cfg }
}

// WithWriterConfig sets how the update is serialized.
func WithWriterConfig(cfg writer.Config) Option {
	return func(s *Stamper) { s.writerCfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Stamper) { s.logger = l }
}

// New creates a Stamper.
func New(opts ...Option) *Stamper {
	s := &Stamper{
		captionSize: DefaultCaptionSize,
		loadImage:   builder.ImageFromFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.OrNop(s.logger)
	if s.parserCfg.Logger == nil {
		s.parserCfg.Logger = s.logger
	}
	if s.parserCfg.Recovery == nil {
		s.parserCfg.Recovery = recovery.NewLoggingStrategy(s.logger)
	}
	return s
}

// Stamp returns src with page i of n captioned "i / n" and overlaid with the
// image. src is not modified; the result is src followed by an incremental
// update, or a full rewrite when src's cross-reference data was unusable.
func (s *Stamper) Stamp(ctx context.Context, src []byte, opts Options) ([]byte, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	font, err := fonts.Default(s.fontPath)
	if err != nil {
		return nil, err
	}
	img, err := s.loadImage(opts.ImageRef)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.ImageUnavailable, err, "load image %q", opts.ImageRef)
	}
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, pdferr.New(pdferr.ImageUnavailable, "image %q is empty", opts.ImageRef)
	}

	doc, err := parser.NewDocumentParser(s.parserCfg).Parse(ctx, bytes.NewReader(src))
	if err != nil {
		return nil, pdferr.Wrap(pdferr.SourceDocumentUnreadable, err, "parse source")
	}
	if doc.Encrypted {
		return nil, pdferr.New(pdferr.SourceDocumentUnreadable, "source is encrypted")
	}
	pages, err := parser.PageTree(doc)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.SourceDocumentUnreadable, err, "read page tree")
	}
	if len(pages) == 0 {
		return nil, pdferr.New(pdferr.SourceDocumentUnreadable, "source has no pages")
	}

	// All overlays share one builder so the font and image are written once.
	b := builder.NewBuilder().RegisterFont(captionFont, font)
	scale := opts.ScalePercent / 100
	overlays := make([]*semantic.Page, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		llx, lly := page.MediaBox[0], page.MediaBox[1]
		w, h := page.Width(), page.Height()
		pb := b.NewPage(w, h).
			DrawText(fmt.Sprintf("%d / %d", i+1, len(pages)), llx+w/2, lly+CaptionOffset, builder.TextOptions{Font: captionFont, FontSize: s.captionSize}).
			SetOpacity(opts.FillOpacity, opts.StrokeOpacity).
			DrawImage(img, llx+w/2-ImageOffset, lly+h/2, float64(img.Width)*scale, float64(img.Height)*scale, builder.ImageOptions{Rotation: float64(opts.RotationDegrees)})
		overlays[i] = pb.Page()
	}
	if _, err := b.Build(); err != nil {
		code := pdferr.Internal
		if builder.IsFontError(err) {
			code = pdferr.FontUnavailable
		}
		return nil, pdferr.Wrap(code, err, "draw caption")
	}

	app := writer.NewAppender(src, doc, s.writerCfg)
	m := newMerger(doc, app)
	for i, page := range pages {
		if err := m.merge(page, overlays[i]); err != nil {
			return nil, pdferr.Wrap(pdferr.Internal, err, "stamp page %d", i+1)
		}
		s.logger.Debug("stamped page", observability.Int("page", i+1), observability.Int("object", page.Ref.Num))
	}
	out, err := app.Bytes(ctx)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.Internal, err, "write update")
	}
	s.logger.Info("stamped document",
		observability.Int("pages", len(pages)),
		observability.Int("source_bytes", len(src)),
		observability.Int("bytes", len(out)),
	)
	return out, nil
}

func validate(opts Options) error {
	if opts.FillOpacity < 0 || opts.FillOpacity > 1 {
		return pdferr.New(pdferr.InvalidInput, "fill opacity %v outside [0,1]", opts.FillOpacity)
	}
	if opts.StrokeOpacity < 0 || opts.StrokeOpacity > 1 {
		return pdferr.New(pdferr.InvalidInput, "stroke opacity %v outside [0,1]", opts.StrokeOpacity)
	}
	if opts.ScalePercent <= 0 {
		return pdferr.New(pdferr.InvalidInput, "scale percent must be positive, got %v", opts.ScalePercent)
	}
	if opts.ImageRef == "" {
		return pdferr.New(pdferr.ImageUnavailable, "no image reference")
	}
	return nil
}
