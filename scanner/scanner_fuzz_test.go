package scanner

import (
	"bytes"
	"testing"

	"github.com/pboffice01/PDFGeneral/recovery"
)

func FuzzScannerPositions(f *testing.F) {
	for _, seed := range []string{
		"<< /Type /Page /Contents [5 0 R 6 0 R] >>",
		"BT /FCaption_1 12 Tf 1 0 0 1 297.64 10 Tm (1 / 3) Tj ET",
		"/GS1_1 gs 20 0 0 10 50 200 cm /Im1 Do",
		"stream\n...data...\nendstream",
		"(unbalanced <AABBCC",
	} {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, rec := range []recovery.Strategy{nil, recovery.NewLenientStrategy()} {
			s := New(bytes.NewReader(data), Config{
				MaxStringLength: 1024,
				MaxArrayDepth:   10,
				MaxDictDepth:    10,
				MaxStreamLength: 1024,
				WindowSize:      16,
				Recovery:        rec,
			})
			// Every token consumes input except the closers synthesised at EOF,
			// of which there are at most one per byte.
			last, n := int64(0), 0
			for ; n <= 2*len(data)+1; n++ {
				if _, err := s.Next(); err != nil {
					break
				}
				if s.Position() < last {
					t.Fatalf("scanner moved back from %d to %d", last, s.Position())
				}
				last = s.Position()
			}
			if n > 2*len(data)+1 {
				t.Fatalf("scanner produced more than %d tokens from %d bytes", n-1, len(data))
			}
		}
	})
}
