package scanner

import "bytes"

var endstream = []byte("endstream")

// stream reads the payload after the stream keyword. A length announced
// through SetNextStreamLength is trusted when endstream follows it;
// otherwise the payload runs to the first endstream marker on its own.
func (s *pdfScanner) stream(start int64) (Token, error) {
	if !s.skipEOL() {
		return Token{}, s.tolerate(errStreamEOL, "stream")
	}
	from := s.pos
	if n := s.streamLen; n >= 0 {
		s.streamLen = -1
		if tok, done, err := s.streamWithLength(start, from, n); done || err != nil {
			return tok, err
		}
		s.pos = from
	}
	return s.streamByMarker(start, from)
}

// skipEOL consumes one end-of-line marker: CR, LF or CRLF.
func (s *pdfScanner) skipEOL() bool {
	c, ok := s.at(s.pos)
	if !ok || !isEOL(c) {
		return false
	}
	s.pos++
	if next, ok := s.at(s.pos); c == '\r' && ok && next == '\n' {
		s.pos++
	}
	return true
}

// streamWithLength reports done=false when the declared length does not
// land on endstream, so the caller can fall back to searching.
func (s *pdfScanner) streamWithLength(start, from, n int64) (tok Token, done bool, err error) {
	if limit := s.cfg.MaxStreamLength; limit > 0 && n > limit {
		return Token{}, true, s.tolerate(errStreamTooLong, "stream")
	}
	if n > 0 && s.have(from+n-1) != nil {
		if err := s.tolerate(errStreamTruncated, "stream"); err != nil {
			return Token{}, true, err
		}
		n = int64(len(s.buf)) - from
	}
	payload := bytes.Clone(s.buf[from : from+n])
	s.pos = from + n
	s.skipEOL()
	if !s.matchAt(s.pos, endstream) {
		return Token{}, false, nil
	}
	s.pos += int64(len(endstream))
	tok, err = s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	return tok, true, err
}

func (s *pdfScanner) streamByMarker(start, from int64) (Token, error) {
	for i := from; s.have(i+int64(len(endstream))-1) == nil; i++ {
		if limit := s.cfg.MaxStreamScan; limit > 0 && i-from > limit {
			if err := s.tolerate(errScanLimit, "stream"); err != nil {
				return Token{}, err
			}
			break
		}
		if s.buf[i] == 'e' && s.isEndMarker(i, from) {
			return s.finishStream(start, from, i)
		}
	}
	// No marker: the payload is the rest of the input.
	s.readAll()
	payload := bytes.Clone(s.buf[from:])
	reason := errNoEndstream
	if limit := s.cfg.MaxStreamScan; limit > 0 && int64(len(payload)) > limit {
		reason = errScanLimit
	}
	if err := s.tolerate(reason, "stream"); err != nil {
		return Token{}, err
	}
	s.pos = int64(len(s.buf))
	return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
}

// isEndMarker reports whether endstream at i stands on its own: preceded by
// whitespace or the start of data, and followed by a delimiter or the end of
// input.
func (s *pdfScanner) isEndMarker(i, from int64) bool {
	if !s.matchAt(i, endstream) {
		return false
	}
	if next, ok := s.at(i + int64(len(endstream))); ok && !isDelimiter(next) {
		return false
	}
	return i == from || isSpace(s.buf[i-1])
}

// finishStream cuts the payload before the marker, dropping the EOL that
// belongs to it.
func (s *pdfScanner) finishStream(start, from, marker int64) (Token, error) {
	end := marker
	if end > from && s.buf[end-1] == '\n' {
		end--
	}
	if end > from && s.buf[end-1] == '\r' {
		end--
	}
	payload := bytes.Clone(s.buf[from:end])
	if limit := s.cfg.MaxStreamLength; limit > 0 && int64(len(payload)) > limit {
		return Token{}, s.tolerate(errStreamTooLong, "stream")
	}
	s.pos = marker + int64(len(endstream))
	return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
}

func (s *pdfScanner) matchAt(i int64, word []byte) bool {
	end := i + int64(len(word))
	return s.have(end-1) == nil && bytes.Equal(s.buf[i:end], word)
}
