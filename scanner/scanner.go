// Package scanner splits PDF bytes into tokens. Input is read lazily from an
// io.ReaderAt one window at a time, and malformed input is reported to a
// recovery strategy before the scanner gives up on it.
package scanner

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/pboffice01/PDFGeneral/recovery"
)

type TokenType int

const (
	TokenDict    TokenType = iota // <<
	TokenArray                    // [
	TokenName                     // /Name
	TokenString                   // literal or hex string
	TokenNumber                   // integer or real
	TokenBoolean                  // true or false
	TokenNull                     // null
	TokenRef                      // 5 0 R
	TokenStream                   // stream keyword plus its payload
	TokenKeyword                  // obj, endobj, xref, >>, ] and the rest
)

var tokenNames = [...]string{
	TokenDict:    "dict",
	TokenArray:   "array",
	TokenName:    "name",
	TokenString:  "string",
	TokenNumber:  "number",
	TokenBoolean: "boolean",
	TokenNull:    "null",
	TokenRef:     "ref",
	TokenStream:  "stream",
	TokenKeyword: "keyword",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "keyword"
}

// Token is one lexical unit. Only the fields matching Type are populated:
// Str for names and keywords, Bytes for strings and stream payloads,
// Int/Float/IsInt for numbers, Int/Gen for references and Bool for booleans.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int
	Hex   bool
	Pos   int64
}

// Scanner yields tokens in file order.
type Scanner interface {
	Next() (Token, error)
	Position() int64
	SeekTo(offset int64) error
	// SetNextStreamLength announces the /Length of the next stream payload.
	// A negative value means unknown.
	SetNextStreamLength(n int64)
}

// Config bounds what the scanner accepts. Zero disables a limit.
type Config struct {
	MaxStringLength int64
	MaxNameLength   int
	MaxStreamLength int64
	// MaxStreamScan bounds the search for endstream when no length is known.
	MaxStreamScan int64

	MaxArrayDepth int
	MaxDictDepth  int

	// WindowSize is how many bytes are read at a time; 64 KiB by default.
	WindowSize int64
	Recovery   recovery.Strategy
}

var (
	errSkip            = errors.New("skip token")
	errSeekRange       = errors.New("seek out of range")
	errUnclosedArray   = errors.New("unclosed array at end of input")
	errArrayDepth      = errors.New("array depth exceeded")
	errDictDepth       = errors.New("dict depth exceeded")
	errArrayUnderflow  = errors.New("array depth underflow")
	errDictUnderflow   = errors.New("dict depth underflow")
	errNameTooLong     = errors.New("name too long")
	errLiteralTooLong  = errors.New("literal string too long")
	errHexTooLong      = errors.New("hex string too long")
	errLiteralOpen     = errors.New("unterminated literal string")
	errHexOpen         = errors.New("unterminated hex string")
	errStreamEOL       = errors.New("stream missing EOL before data")
	errStreamTooLong   = errors.New("stream too long")
	errStreamTruncated = errors.New("stream ended before declared length")
	errScanLimit       = errors.New("endstream not found within scan limit")
	errNoEndstream     = errors.New("endstream not found")
)

type pdfScanner struct {
	r      io.ReaderAt
	cfg    Config
	window int64
	buf    []byte // everything read so far, starting at offset 0
	eof    bool
	pos    int64

	streamLen int64
	arrays    int
	dicts     int
	loc       recovery.Location
}

// New returns a scanner over r.
func New(r io.ReaderAt, cfg Config) Scanner {
	window := cfg.WindowSize
	if window <= 0 {
		window = 64 << 10
	}
	return &pdfScanner{r: r, cfg: cfg, window: window, streamLen: -1}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) SetNextStreamLength(n int64) { s.streamLen = n }

// SetRecoveryLocation names the object being scanned in recovery reports.
func (s *pdfScanner) SetRecoveryLocation(loc recovery.Location) { s.loc = loc }

// SeekTo moves to offset. Nesting depth is reset because nothing is known
// about what encloses an arbitrary offset.
func (s *pdfScanner) SeekTo(offset int64) error {
	if offset < 0 {
		return errSeekRange
	}
	if err := s.have(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.buf)) {
		return errSeekRange
	}
	s.pos = offset
	s.arrays, s.dicts = 0, 0
	return nil
}

func (s *pdfScanner) Next() (Token, error) {
	for {
		tok, err := s.next()
		if !errors.Is(err, errSkip) {
			return tok, err
		}
	}
}

func (s *pdfScanner) next() (Token, error) {
	if err := s.skipSpace(); err != nil {
		if errors.Is(err, io.EOF) {
			return s.atEOF()
		}
		return Token{}, err
	}
	start, c := s.pos, s.buf[s.pos]
	switch {
	case c == '<' && s.peek(1) == '<':
		s.pos += 2
		return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
	case c == '<':
		return s.hexString()
	case c == '>' && s.peek(1) == '>':
		s.pos += 2
		return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
	case c == '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case c == '(':
		return s.literalString()
	case c == '/':
		return s.name()
	case isNumberByte(c):
		return s.numberOrRef()
	case isAlpha(c):
		return s.keyword()
	}
	// ']', a lone '>' and stray delimiters are single-byte keywords.
	s.pos++
	return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
}

// atEOF closes arrays left open at end of input when recovery allows it.
func (s *pdfScanner) atEOF() (Token, error) {
	if s.arrays == 0 {
		return Token{}, io.EOF
	}
	if s.tolerate(errUnclosedArray, "array") == nil {
		s.arrays--
		return Token{Type: TokenKeyword, Str: "]", Pos: s.pos}, nil
	}
	s.arrays = 0
	return Token{}, io.EOF
}

func (s *pdfScanner) skipSpace() error {
	comment := false
	for ; ; s.pos++ {
		if err := s.have(s.pos); err != nil {
			return err
		}
		c := s.buf[s.pos]
		switch {
		case comment:
			comment = !isEOL(c)
		case c == '%':
			comment = true
		case !isSpace(c):
			return nil
		}
	}
}

// have makes buf[n] addressable. It returns io.EOF when the input ends
// first.
func (s *pdfScanner) have(n int64) error {
	for int64(len(s.buf)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.grow(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) grow() error {
	chunk := make([]byte, s.window)
	n, err := s.r.ReadAt(chunk, int64(len(s.buf)))
	s.buf = append(s.buf, chunk[:n]...)
	if errors.Is(err, io.EOF) || (err == nil && n == 0) {
		s.eof = true
		return nil
	}
	return err
}

func (s *pdfScanner) readAll() {
	for !s.eof {
		if s.grow() != nil {
			return
		}
	}
}

// at returns the byte at offset n, or false past the end of input.
func (s *pdfScanner) at(n int64) (byte, bool) {
	if s.have(n) != nil {
		return 0, false
	}
	return s.buf[n], true
}

func (s *pdfScanner) peek(n int64) byte {
	c, _ := s.at(s.pos + n)
	return c
}

// emit tracks array and dictionary nesting. Closers without an opener are
// dropped when recovery allows it.
func (s *pdfScanner) emit(tok Token) (Token, error) {
	switch {
	case tok.Type == TokenArray:
		if s.arrays++; s.cfg.MaxArrayDepth > 0 && s.arrays > s.cfg.MaxArrayDepth {
			return Token{}, s.tolerate(errArrayDepth, "array")
		}
	case tok.Type == TokenDict:
		if s.dicts++; s.cfg.MaxDictDepth > 0 && s.dicts > s.cfg.MaxDictDepth {
			return Token{}, s.tolerate(errDictDepth, "dict")
		}
	case tok.Type == TokenKeyword && tok.Str == "]":
		if s.arrays == 0 {
			return Token{}, s.dropCloser(errArrayUnderflow, "array")
		}
		s.arrays--
	case tok.Type == TokenKeyword && tok.Str == ">>":
		if s.dicts == 0 {
			return Token{}, s.dropCloser(errDictUnderflow, "dict")
		}
		s.dicts--
	}
	return tok, nil
}

func (s *pdfScanner) dropCloser(err error, what string) error {
	if err := s.tolerate(err, what); err != nil {
		return err
	}
	return errSkip
}

// tolerate asks the recovery strategy about err. A nil return means the
// caller continues with its best-effort result.
func (s *pdfScanner) tolerate(err error, what string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	loc := s.loc
	loc.ByteOffset = s.pos
	loc.Component = strings.TrimPrefix(loc.Component+"->scanner:"+what, "->")
	if recovery.Allows(s.cfg.Recovery.OnError(context.Background(), err, loc)) {
		return nil
	}
	return err
}
