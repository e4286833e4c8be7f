package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	"context"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"io"

	tifflzw "golang.org/x/image/tiff/lzw"

	"github.com/pboffice01/PDFGeneral/ir/raw"
)

type (
	flateDecoder     struct{}
	lzwDecoder       struct{}
	ascii85Decoder   struct{}
	asciiHexDecoder  struct{}
	runLengthDecoder struct{}
)

func NewFlateDecoder() Decoder     { return flateDecoder{} }
func NewLZWDecoder() Decoder       { return lzwDecoder{} }
func NewASCII85Decoder() Decoder   { return ascii85Decoder{} }
func NewASCIIHexDecoder() Decoder  { return asciiHexDecoder{} }
func NewRunLengthDecoder() Decoder { return runLengthDecoder{} }

func (flateDecoder) Name() string     { return "FlateDecode" }
func (lzwDecoder) Name() string       { return "LZWDecode" }
func (ascii85Decoder) Name() string   { return "ASCII85Decode" }
func (asciiHexDecoder) Name() string  { return "ASCIIHexDecode" }
func (runLengthDecoder) Name() string { return "RunLengthDecode" }

var (
	errRunOverrun   = errors.New("run length literal overruns input")
	errRunNoRepeat  = errors.New("run length repeat missing byte")
	ascii85Start    = []byte("<~")
	ascii85Terminal = []byte("~>")
)

// Decode inflates zlib-wrapped data, falling back to a bare deflate stream
// when the header is missing or the checksum is wrong. A truncated stream
// keeps whatever was inflated before the damage.
func (flateDecoder) Decode(_ context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	if looksLikeZlib(in) {
		if zr, err := zlib.NewReader(bytes.NewReader(in)); err == nil {
			if out, err := drain(zr); err == nil {
				return applyPredictor(out, params)
			}
		}
	}
	out, err := drain(flate.NewReader(bytes.NewReader(in)))
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

// drain reads r to the end. An unexpected EOF after some output counts as
// success.
func drain(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && (len(out) == 0 || !errors.Is(err, io.ErrUnexpectedEOF)) {
		return nil, err
	}
	return out, nil
}

// looksLikeZlib checks the CMF/FLG pair: deflate method and a valid check
// value.
func looksLikeZlib(b []byte) bool {
	return len(b) >= 2 && b[0]&0x0F == 8 && (int(b[0])<<8|int(b[1]))%31 == 0
}

// Decode honours /EarlyChange. The default of 1 widens codes one entry
// early, which is the TIFF variant; 0 is plain LZW.
func (lzwDecoder) Decode(_ context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	var r io.ReadCloser
	if paramInt(params, "EarlyChange", 1) == 0 {
		r = lzw.NewReader(bytes.NewReader(in), lzw.MSB, 8)
	} else {
		r = tifflzw.NewReader(bytes.NewReader(in), tifflzw.MSB, 8)
	}
	out, err := drain(r)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

// Decode accepts data with or without the <~ ~> brackets. Anything after
// the terminator is ignored.
func (ascii85Decoder) Decode(_ context.Context, in []byte, _ raw.Dictionary) ([]byte, error) {
	body := bytes.TrimPrefix(bytes.TrimSpace(in), ascii85Start)
	body, _, _ = bytes.Cut(body, ascii85Terminal)
	dst := make([]byte, 4*len(body)+4)
	n, _, err := ascii85.Decode(dst, body, true)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Decode stops at '>' and pads an odd final digit with 0.
func (asciiHexDecoder) Decode(_ context.Context, in []byte, _ raw.Dictionary) ([]byte, error) {
	in, _, _ = bytes.Cut(in, []byte{'>'})
	digits := bytes.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', 0:
			return -1
		}
		return r
	}, in)
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	out := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode expands length-prefixed runs: 0..127 copies the next n+1 bytes,
// 129..255 repeats the next byte 257-n times and 128 ends the data.
func (runLengthDecoder) Decode(_ context.Context, in []byte, _ raw.Dictionary) ([]byte, error) {
	out := make([]byte, 0, 2*len(in))
	for len(in) > 0 {
		n := int(in[0])
		in = in[1:]
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			if n+1 > len(in) {
				return nil, errRunOverrun
			}
			out = append(out, in[:n+1]...)
			in = in[n+1:]
		default:
			if len(in) == 0 {
				return nil, errRunNoRepeat
			}
			for range 257 - n {
				out = append(out, in[0])
			}
			in = in[1:]
		}
	}
	return out, nil
}
