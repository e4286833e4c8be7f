package scanner

import (
	"strconv"
	"unicode"
)

const (
	classSpace = 1 << iota
	classDelim
)

var charClass [256]uint8

// Escapes inside literal strings other than octal codes and line
// continuations. Unlisted bytes stand for themselves.
var escapes = [256]byte{'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f'}

func init() {
	for _, c := range []byte{0, '\t', '\n', '\f', '\r', ' '} {
		charClass[c] = classSpace | classDelim
	}
	for _, c := range []byte("()<>[]{}/%") {
		charClass[c] |= classDelim
	}
}

func isSpace(c byte) bool      { return charClass[c]&classSpace != 0 }
func isDelimiter(c byte) bool  { return charClass[c]&classDelim != 0 }
func isEOL(c byte) bool        { return c == '\r' || c == '\n' }
func isDigit(c byte) bool      { return '0' <= c && c <= '9' }
func isNumberByte(c byte) bool { return isDigit(c) || c == '+' || c == '-' || c == '.' }
func isAlpha(c byte) bool      { return unicode.IsLetter(rune(c)) }

// hexVal decodes one hex digit; anything else reads as 0.
func hexVal(c byte) byte {
	switch lower := c | 0x20; {
	case isDigit(c):
		return c - '0'
	case 'a' <= lower && lower <= 'f':
		return lower - 'a' + 10
	}
	return 0
}

func isUnsigned(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}

func (s *pdfScanner) name() (Token, error) {
	start := s.pos
	s.pos++
	var out []byte
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		s.pos++
		if c == '#' {
			hi := s.nibble()
			out = append(out, hi<<4|s.nibble())
			continue
		}
		out = append(out, c)
		if limit := s.cfg.MaxNameLength; limit > 0 && len(out) > limit {
			return Token{}, s.tolerate(errNameTooLong, "name")
		}
	}
	return s.emit(Token{Type: TokenName, Str: string(out), Pos: start})
}

func (s *pdfScanner) nibble() byte {
	c, ok := s.at(s.pos)
	if !ok {
		return 0
	}
	s.pos++
	return hexVal(c)
}

func (s *pdfScanner) literalString() (Token, error) {
	start := s.pos
	s.pos++
	var out []byte
	for depth := 1; ; {
		c, ok := s.at(s.pos)
		if !ok {
			if err := s.tolerate(errLiteralOpen, "literal"); err != nil {
				return Token{}, err
			}
			break
		}
		s.pos++
		switch c {
		case '\\':
			out = s.escape(out)
			continue
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return s.emit(Token{Type: TokenString, Bytes: out, Pos: start})
			}
		}
		out = append(out, c)
		if limit := s.cfg.MaxStringLength; limit > 0 && int64(len(out)) > limit {
			return Token{}, s.tolerate(errLiteralTooLong, "literal")
		}
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Pos: start})
}

// escape decodes the sequence following a backslash and appends it to out.
func (s *pdfScanner) escape(out []byte) []byte {
	c, ok := s.at(s.pos)
	if !ok {
		return out
	}
	s.pos++
	switch {
	case c == '\r':
		if next, ok := s.at(s.pos); ok && next == '\n' {
			s.pos++
		}
	case c == '\n':
	case '0' <= c && c <= '7':
		v := c - '0'
		for i := 0; i < 2; i++ {
			d, ok := s.at(s.pos)
			if !ok || d < '0' || d > '7' {
				break
			}
			v = v<<3 | (d - '0')
			s.pos++
		}
		out = append(out, v)
	case escapes[c] != 0:
		out = append(out, escapes[c])
	default:
		out = append(out, c)
	}
	return out
}

func (s *pdfScanner) hexString() (Token, error) {
	start := s.pos
	s.pos++
	var digits []byte
	closed := false
	for !closed {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		s.pos++
		switch {
		case c == '>':
			closed = true
		case !isSpace(c):
			digits = append(digits, c)
		}
	}
	if !closed {
		if err := s.tolerate(errHexOpen, "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	if limit := s.cfg.MaxStringLength; limit > 0 && int64(len(digits)/2) > limit {
		return Token{}, s.tolerate(errHexTooLong, "hex")
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = hexVal(digits[2*i])<<4 | hexVal(digits[2*i+1])
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Hex: true, Pos: start})
}

func (s *pdfScanner) keyword() (Token, error) {
	start := s.pos
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		s.pos++
	}
	kw := string(s.buf[start:s.pos])
	tok := Token{Type: TokenKeyword, Str: kw, Pos: start}
	switch kw {
	case "true", "false":
		tok.Type, tok.Bool = TokenBoolean, kw == "true"
	case "null":
		tok.Type = TokenNull
	case "stream":
		return s.stream(start)
	}
	return tok, nil
}

func (s *pdfScanner) numberOrRef() (Token, error) {
	start := s.pos
	text := s.numberText()
	if text == "" {
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: string(s.buf[start]), Pos: start})
	}
	if tok, ok := s.reference(start, text); ok {
		return tok, nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return s.emit(Token{Type: TokenNumber, Int: i, Float: float64(i), IsInt: true, Pos: start})
	}
	// Malformed numbers such as "--5" or "1.2.3" read as zero.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		f = 0
	}
	return s.emit(Token{Type: TokenNumber, Float: f, Int: int64(f), Pos: start})
}

// reference looks ahead for "gen R" after an object number, rewinding when
// the pattern does not match.
func (s *pdfScanner) reference(start int64, num string) (Token, bool) {
	if !isUnsigned(num) {
		return Token{}, false
	}
	save := s.pos
	if s.skipSpace() == nil {
		gen := s.numberText()
		if isUnsigned(gen) && s.skipSpace() == nil && s.buf[s.pos] == 'R' {
			if next, ok := s.at(s.pos + 1); !ok || isDelimiter(next) {
				s.pos++
				n, _ := strconv.ParseInt(num, 10, 64)
				g, _ := strconv.Atoi(gen)
				return Token{Type: TokenRef, Int: n, Gen: g, Pos: start}, true
			}
		}
	}
	s.pos = save
	return Token{}, false
}

// numberText consumes a run of number bytes containing at least one digit.
func (s *pdfScanner) numberText() string {
	start, digits := s.pos, false
	for {
		c, ok := s.at(s.pos)
		if !ok || !isNumberByte(c) {
			break
		}
		digits = digits || isDigit(c)
		s.pos++
	}
	if !digits {
		s.pos = start
		return ""
	}
	return string(s.buf[start:s.pos])
}
