package resp

import (
	"bytes"
	"errors"
)

// Scanner decodes frames from a buffer that grows between calls, as a
// connection's read buffer does. It remembers how far the pending frame has
// been validated, so a frame arriving over many reads is walked once and
// decoded once, when its last byte is in.
//
// Each call must see the bytes passed to the previous call, possibly
// followed by more. After Next returns a frame, the caller drops the
// consumed prefix and the scanner starts over.
type Scanner struct {
	d        *Decoder
	requests bool

	off    int     // end of the validated prefix
	open   []int64 // elements still expected by each enclosing array
	inline bool
}

// NewScanner returns a scanner that decodes frames like d.Decode.
func NewScanner(d *Decoder) *Scanner {
	return &Scanner{d: d}
}

// NewRequestScanner returns a scanner that decodes frames like
// d.DecodeRequest.
func NewRequestScanner(d *Decoder) *Scanner {
	return &Scanner{d: d, requests: true}
}

// Next returns the frame at the start of buf and its length. It returns
// ErrIncomplete while the frame is still partial and a *ProtocolError for
// bad input.
func (s *Scanner) Next(buf []byte) (Frame, int, error) {
	end, err := s.scan(buf)
	if errors.Is(err, ErrIncomplete) {
		return Frame{}, 0, err
	}
	s.Reset()
	if err != nil {
		return Frame{}, 0, err
	}
	if s.requests {
		return s.d.DecodeRequest(buf[:end])
	}
	return s.d.Decode(buf[:end])
}

// Reset discards the progress made on the pending frame.
func (s *Scanner) Reset() {
	s.off = 0
	s.open = s.open[:0]
	s.inline = false
}

func (s *Scanner) scan(buf []byte) (int, error) {
	if s.off == 0 && len(s.open) == 0 {
		if len(buf) == 0 {
			return 0, ErrIncomplete
		}
		s.inline = s.requests && s.d.AllowInline && !isTypeByte(buf[0])
	}
	if s.inline {
		return s.scanInline(buf)
	}

	for {
		next, count, err := s.d.skip(buf, s.off, len(s.open))
		if err != nil {
			return 0, err
		}
		s.off = next
		if count > 0 {
			s.open = append(s.open, count)
			continue
		}

		// A complete element may also complete its enclosing arrays.
		for len(s.open) > 0 {
			top := len(s.open) - 1
			s.open[top]--
			if s.open[top] > 0 {
				break
			}
			s.open = s.open[:top]
		}
		if len(s.open) == 0 {
			return s.off, nil
		}
	}
}

func (s *Scanner) scanInline(buf []byte) (int, error) {
	idx := bytes.IndexByte(buf[s.off:], '\n')
	if idx < 0 {
		s.off = len(buf)
		if len(buf) > s.d.MaxLineLen+1 {
			return 0, limitError("inline command longer than %d bytes", s.d.MaxLineLen)
		}
		return 0, ErrIncomplete
	}
	return s.off + idx + 1, nil
}

// skip validates the element header at pos without decoding it. It returns
// the offset past the header, or past the payload for bulk strings, and the
// element count of a non-empty array. Checks match decode.
func (d *Decoder) skip(buf []byte, pos, depth int) (next int, count int64, err error) {
	if pos >= len(buf) {
		return 0, 0, ErrIncomplete
	}

	typ := buf[pos]
	if !isTypeByte(typ) {
		return 0, 0, malformed("unknown type byte %q", typ)
	}
	line, next, err := d.readLine(buf, pos+1)
	if err != nil {
		return 0, 0, err
	}

	switch typ {
	case ':':
		if _, ok := parseInteger(line); !ok {
			return 0, 0, malformed("invalid integer %q", line)
		}

	case '_':
		if len(line) != 0 {
			return 0, 0, malformed("unexpected payload after null")
		}

	case '$':
		n, ok := parseInteger(line)
		switch {
		case !ok:
			return 0, 0, malformed("invalid bulk length %q", line)
		case n == -1:
			return next, 0, nil
		case n < 0:
			return 0, 0, malformed("negative bulk length %d", n)
		case n > d.MaxBulkLen:
			return 0, 0, limitError("bulk length %d exceeds %d", n, d.MaxBulkLen)
		}
		end := next + int(n)
		if len(buf) < end+2 {
			return 0, 0, ErrIncomplete
		}
		if buf[end] != '\r' || buf[end+1] != '\n' {
			return 0, 0, malformed("bulk payload not terminated by CRLF")
		}
		return end + 2, 0, nil

	case '*':
		n, ok := parseInteger(line)
		switch {
		case !ok:
			return 0, 0, malformed("invalid array length %q", line)
		case n == -1:
			return next, 0, nil
		case n < 0:
			return 0, 0, malformed("negative array length %d", n)
		case n > d.MaxArrayLen:
			return 0, 0, limitError("array length %d exceeds %d", n, d.MaxArrayLen)
		case depth >= d.MaxDepth:
			return 0, 0, limitError("nesting deeper than %d", d.MaxDepth)
		}
		return next, n, nil
	}
	return next, 0, nil
}
