// Package filters undoes the /Filter chain of a stream. Decoders are looked up
// by filter name, including the abbreviated names allowed in inline images.
package filters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pboffice01/PDFGeneral/ir/raw"
)

// Decoder reverses one stream filter.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params raw.Dictionary) ([]byte, error)
}

// Limits bounds the work done for a single stream. Zero disables a limit.
type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// ErrOutputLimit is returned when a filter stage grows past
// Limits.MaxDecompressedSize.
var ErrOutputLimit = errors.New("decompressed size exceeds limit")

// UnsupportedError reports a filter with no registered decoder.
type UnsupportedError struct{ Filter string }

func (e UnsupportedError) Error() string { return "unsupported filter: " + e.Filter }

// Pipeline applies decoders in /Filter order.
type Pipeline struct {
	byName map[string]Decoder
	limits Limits
}

// abbreviations maps inline image filter names to their full form.
var abbreviations = map[string]string{
	"Fl":  "FlateDecode",
	"LZW": "LZWDecode",
	"A85": "ASCII85Decode",
	"AHx": "ASCIIHexDecode",
	"RL":  "RunLengthDecode",
}

// NewPipeline registers decoders under their names. A later decoder with the
// same name replaces an earlier one.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	p := &Pipeline{byName: make(map[string]Decoder, len(decoders)), limits: limits}
	for _, d := range decoders {
		p.byName[d.Name()] = d
	}
	return p
}

// NewDefaultPipeline registers every decoder this package implements.
func NewDefaultPipeline(limits Limits) *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(),
		NewLZWDecoder(),
		NewASCII85Decoder(),
		NewASCIIHexDecoder(),
		NewRunLengthDecoder(),
	}, limits)
}

func (p *Pipeline) lookup(name string) (Decoder, bool) {
	if full, ok := abbreviations[name]; ok {
		name = full
	}
	d, ok := p.byName[name]
	return d, ok
}

// Decode runs input through filters in order. params[i] belongs to
// filters[i]; a short params slice leaves the rest without parameters.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filters []string, params []raw.Dictionary) ([]byte, error) {
	if d := p.limits.MaxDecodeTime; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	for i, name := range filters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec, ok := p.lookup(name)
		if !ok {
			return nil, UnsupportedError{Filter: name}
		}
		var stageParams raw.Dictionary
		if i < len(params) {
			stageParams = params[i]
		}
		decoded, err := dec.Decode(ctx, input, stageParams)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if limit := p.limits.MaxDecompressedSize; limit > 0 && int64(len(decoded)) > limit {
			return nil, fmt.Errorf("%s: %w", name, ErrOutputLimit)
		}
		input = decoded
	}
	return input, nil
}
