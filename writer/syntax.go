package writer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// Bytes that must be escaped inside a name token.
const nameDelimiters = "#()<>[]{}/%"

var literalEscapes = [256]string{
	'\\': `\\`,
	'(':  `\(`,
	')':  `\)`,
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
	'\b': `\b`,
	'\f': `\f`,
}

// encodeObject renders o in file syntax. Indirect objects are written as
// references; the caller wraps top-level objects in obj/endobj.
func encodeObject(o raw.Object) []byte { return appendObject(nil, o) }

func appendObject(dst []byte, o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return appendName(dst, v.Val)
	case raw.NumberObj:
		if v.IsInt {
			return strconv.AppendInt(dst, v.I, 10)
		}
		return appendNumber(dst, v.F)
	case raw.BoolObj:
		return strconv.AppendBool(dst, v.V)
	case raw.String:
		if v.IsHex() {
			return appendHex(dst, v.Value())
		}
		return appendLiteral(dst, v.Value())
	case *raw.ArrayObj:
		dst = append(dst, '[')
		for i, item := range v.Items {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = appendObject(dst, item)
		}
		return append(dst, ']')
	case *raw.DictObj:
		dst = append(dst, "<<"...)
		for _, k := range v.Keys() {
			dst = append(appendName(dst, k.Value()), ' ')
			dst = appendObject(dst, v.KV[k.Value()])
		}
		return append(dst, ">>"...)
	case *raw.StreamObj:
		// /Length always reflects Data; the stored dictionary is left alone.
		d := v.Dict.Clone()
		d.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(v.Data))))
		dst = append(appendObject(dst, d), "\nstream\n"...)
		dst = append(dst, v.Data...)
		return append(dst, "\nendstream"...)
	case raw.RefObj:
		return fmt.Appendf(dst, "%d %d R", v.R.Num, v.R.Gen)
	}
	return append(dst, "null"...)
}

// appendName writes a name token, escaping bytes outside the regular
// character set as #xx.
func appendName(dst []byte, name string) []byte {
	dst = append(dst, '/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte(nameDelimiters, c) >= 0 {
			dst = fmt.Appendf(dst, "#%02X", c)
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

// appendLiteral writes s as a parenthesised string. Control and non-ASCII
// bytes use octal escapes so the output stays 7-bit.
func appendLiteral(dst, s []byte) []byte {
	dst = append(dst, '(')
	for _, c := range s {
		switch {
		case literalEscapes[c] != "":
			dst = append(dst, literalEscapes[c]...)
		case c < 0x20 || c >= 0x80:
			dst = append(dst, '\\', '0'+c>>6, '0'+(c>>3)&7, '0'+c&7)
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, ')')
}

func appendHex(dst, s []byte) []byte { return fmt.Appendf(dst, "<%X>", s) }

// appendNumber writes at most six decimals and never an exponent.
func appendNumber(dst []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, '0')
	}
	if f = math.Round(f*1e6) / 1e6; f == 0 {
		return append(dst, '0')
	}
	return strconv.AppendFloat(dst, f, 'f', -1, 64)
}

// SerializeContentStream renders operations in content-stream syntax, one
// operator per line. RawBytes, when present, are returned as is.
func SerializeContentStream(cs semantic.ContentStream) []byte {
	if len(cs.RawBytes) > 0 {
		return cs.RawBytes
	}
	var out []byte
	for _, op := range cs.Operations {
		for _, operand := range op.Operands {
			out = append(appendOperand(out, operand), ' ')
		}
		out = append(append(out, op.Operator...), '\n')
	}
	return out
}

func appendOperand(dst []byte, op semantic.Operand) []byte {
	switch v := op.(type) {
	case semantic.NumberOperand:
		return appendNumber(dst, v.Value)
	case semantic.NameOperand:
		return appendName(dst, v.Value)
	case semantic.StringOperand:
		if v.Hex {
			return appendHex(dst, v.Value)
		}
		return appendLiteral(dst, v.Value)
	case semantic.ArrayOperand:
		dst = append(dst, '[')
		for i, item := range v.Values {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = appendOperand(dst, item)
		}
		return append(dst, ']')
	}
	return append(dst, "null"...)
}
