package filters

import (
	"context"
	"testing"

	"github.com/pboffice01/PDFGeneral/ir/raw"
)

func FuzzFilters(f *testing.F) {
	f.Add([]byte("some compressed data"), "FlateDecode")
	f.Add([]byte("some ascii85 data"), "ASCII85Decode")
	f.Add([]byte("some hex data"), "ASCIIHexDecode")
	f.Add([]byte{2, 'x', 'r', 'e', 255, 'f', 128}, "RunLengthDecode")

	p := NewDefaultPipeline(Limits{MaxDecompressedSize: 1024 * 1024})
	params := raw.Dict()
	params.Set(raw.NameLiteral("Predictor"), raw.NumberInt(12))
	params.Set(raw.NameLiteral("Columns"), raw.NumberInt(5))

	f.Fuzz(func(t *testing.T, data []byte, filterName string) {
		// Unknown names only exercise the UnsupportedError path.
		_, _ = p.Decode(context.Background(), data, []string{filterName}, nil)
		_, _ = p.Decode(context.Background(), data, []string{filterName}, []raw.Dictionary{params})
	})
}
