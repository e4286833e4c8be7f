package writer

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

func TestAppendLiteral(t *testing.T) {
	cases := map[string]string{
		"plain":      "(plain)",
		"a(b)c":      `(a\(b\)c)`,
		`back\slash`: `(back\\slash)`,
		"line\nfeed": `(line\nfeed)`,
		"\x01\xff":   `(\001\377)`,
	}
	for in, want := range cases {
		if got := string(appendLiteral(nil, []byte(in))); got != want {
			t.Fatalf("literal %q: got %s want %s", in, got, want)
		}
	}
}

func TestAppendName(t *testing.T) {
	cases := map[string]string{
		"F1":        "/F1",
		"Name With": "/Name#20With",
		"a/b":       "/a#2Fb",
		"hash#":     "/hash#23",
		"Résumé":    "/R#C3#A9sum#C3#A9",
		"Paren(1)":  "/Paren#281#29",
	}
	for in, want := range cases {
		if got := string(appendName(nil, in)); got != want {
			t.Fatalf("name %q: got %s want %s", in, got, want)
		}
	}
}

func TestAppendNumber(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{12, "12"},
		{0.5, "0.5"},
		{-3.25, "-3.25"},
		{1.0 / 3.0, "0.333333"},
		{1e-9, "0"},
		{123456789, "123456789"},
	}
	for _, tc := range cases {
		if got := string(appendNumber(nil, tc.in)); got != tc.want {
			t.Fatalf("appendNumber(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
	if n := numberObj(4); !n.IsInteger() {
		t.Fatalf("integral value should be written as integer")
	}
	if n := numberObj(4.5); n.IsInteger() {
		t.Fatalf("4.5 is not an integer")
	}
}

func TestEncodeObjectNesting(t *testing.T) {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	d.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(3, 0), raw.Bool(true), raw.NullObj{}))
	d.Set(raw.NameLiteral("T"), raw.HexStr([]byte{0xAB}))
	if got, want := string(encodeObject(d)), "<</Kids [3 0 R true null]/T <AB>/Type /Page>>"; got != want {
		t.Fatalf("dict = %s, want %s", got, want)
	}
}

func TestSubsections(t *testing.T) {
	runs := subsections(map[int]xrefEntry{1: {}, 2: {}, 4: {}, 5: {}, 9: {}}, true)
	want := [][]int{{0, 1, 2}, {4, 5}, {9}}
	if len(runs) != len(want) {
		t.Fatalf("runs %v, want %v", runs, want)
	}
	for i := range want {
		if !slices.Equal(runs[i], want[i]) {
			t.Fatalf("run %d = %v, want %v", i, runs[i], want[i])
		}
	}
	if subsections(nil, false) != nil {
		t.Fatal("no entries should give no runs")
	}
}

func TestEncodeCIDWidthsRuns(t *testing.T) {
	arr := encodeCIDWidths(map[int]int{3: 500, 4: 500, 5: 600, 9: 600})
	got := string(encodeObject(arr))
	if want := "[3 4 500 5 5 600 9 9 600]"; got != want {
		t.Fatalf("W = %s, want %s", got, want)
	}
	if encodeCIDWidths(nil).Len() != 0 {
		t.Fatalf("empty widths should give empty array")
	}
}

func TestEncodeWidthsFillsGaps(t *testing.T) {
	first, last, arr := encodeWidths(map[int]int{65: 600, 67: 700})
	if first != 65 || last != 67 || arr.Len() != 3 {
		t.Fatalf("unexpected widths %d..%d len %d", first, last, arr.Len())
	}
	if got := string(encodeObject(arr)); got != "[600 0 700]" {
		t.Fatalf("widths = %s", got)
	}
}

func TestWriteXRefTableSubsections(t *testing.T) {
	var buf bytes.Buffer
	writeXRefTable(&buf, map[int]xrefEntry{1: {offset: 15}, 2: {offset: 80}, 7: {offset: 300, gen: 1}}, true)
	want := "xref\n" +
		"0 3\n" +
		"0000000000 65535 f\r\n" +
		"0000000015 00000 n\r\n" +
		"0000000080 00000 n\r\n" +
		"7 1\n" +
		"0000000300 00001 n\r\n"
	if buf.String() != want {
		t.Fatalf("xref table:\n%q\nwant\n%q", buf.String(), want)
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.HasSuffix(line, "\r") && len(line) != 19 {
			t.Fatalf("entry %q is not 20 bytes", line)
		}
	}
}

func TestXRefStreamEntries(t *testing.T) {
	index, data := xrefStreamIndexAndEntries(map[int]xrefEntry{5: {offset: 0x01020304}}, false)
	if got := string(encodeObject(index)); got != "[5 1]" {
		t.Fatalf("index = %s", got)
	}
	want := []byte{1, 1, 2, 3, 4, 0, 0}
	if !bytes.Equal(data, want) {
		t.Fatalf("entry = % X, want % X", data, want)
	}
}

func TestSerializeContentStream(t *testing.T) {
	cs := semantic.ContentStream{Operations: []semantic.Operation{
		semantic.Op("q"),
		semantic.Op("cm", semantic.Num(1, 0, 0, 1, 10.5, 20)...),
		semantic.Op("Tj", semantic.StringOperand{Value: []byte{0x00, 0x2A}, Hex: true}),
		semantic.Op("TJ", semantic.ArrayOperand{Values: []semantic.Operand{
			semantic.StringOperand{Value: []byte("A")},
			semantic.NumberOperand{Value: -120},
		}}),
		semantic.Op("gs", semantic.NameOperand{Value: "GS1"}),
		semantic.Op("Q"),
	}}
	want := "q\n1 0 0 1 10.5 20 cm\n<002A> Tj\n[(A) -120] TJ\n/GS1 gs\nQ\n"
	if got := string(SerializeContentStream(cs)); got != want {
		t.Fatalf("content:\n%s\nwant\n%s", got, want)
	}
	rawCS := semantic.ContentStream{RawBytes: []byte("0 0 m")}
	if string(SerializeContentStream(rawCS)) != "0 0 m" {
		t.Fatalf("raw bytes should pass through")
	}
}

func TestSerializeStreamSetsLength(t *testing.T) {
	st := raw.NewStream(raw.Dict(), []byte("abcdef"))
	got := string(encodeObject(st))
	if !strings.HasPrefix(got, "<</Length 6>>\nstream\nabcdef\nendstream") {
		t.Fatalf("stream serialization %q", got)
	}
	if _, ok := st.Dict.Lookup("Length"); ok {
		t.Fatalf("serialization must not mutate the stream dictionary")
	}
}

func TestToUnicodeCMap(t *testing.T) {
	font := &semantic.Font{BaseFont: "Go Regular", ToUnicode: map[int][]rune{36: {'A'}, 300: {0x1F600}}}
	cmap := string(buildToUnicodeCMap(font))
	for _, want := range []string{"/CMapName /GoRegular-UTF16 def", "<0024> <0041>", "<012C> <D83DDE00>", "2 beginbfchar"} {
		if !strings.Contains(cmap, want) {
			t.Fatalf("cmap missing %q:\n%s", want, cmap)
		}
	}
	if buildToUnicodeCMap(&semantic.Font{}) != nil {
		t.Fatalf("empty map should produce no cmap")
	}
}

func TestNormalizeRotation(t *testing.T) {
	cases := map[int]int{0: 0, 90: 90, 450: 90, -90: 270, 45: 0}
	for in, want := range cases {
		if got := normalizeRotation(in); got != want {
			t.Fatalf("normalizeRotation(%d) = %d, want %d", in, got, want)
		}
	}
}
