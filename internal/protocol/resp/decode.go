package resp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Decoding limits.
const (
	DefaultMaxBulkLen  = 512 * 1024 * 1024
	DefaultMaxArrayLen = 1024 * 1024
	DefaultMaxLineLen  = 64 * 1024
	DefaultMaxDepth    = 32
)

var (
	// ErrIncomplete reports that the buffer holds only a prefix of a frame.
	ErrIncomplete = errors.New("resp: incomplete frame")

	// ErrMalformed reports bytes that can never become a valid frame.
	ErrMalformed = errors.New("resp: malformed frame")

	// ErrLimitExceeded reports a frame larger than the decoder accepts.
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Decoder decodes frames from a byte buffer. The zero value is not usable;
// create one with NewDecoder.
type Decoder struct {
	MaxBulkLen  int64
	MaxArrayLen int64
	MaxLineLen  int
	MaxDepth    int

	// AllowInline enables inline commands in DecodeRequest.
	AllowInline bool
}

// NewDecoder returns a decoder with the default limits.
func NewDecoder() *Decoder {
	return &Decoder{
		MaxBulkLen:  DefaultMaxBulkLen,
		MaxArrayLen: DefaultMaxArrayLen,
		MaxLineLen:  DefaultMaxLineLen,
		MaxDepth:    DefaultMaxDepth,
	}
}

var defaultDecoder = NewDecoder()

// Decode decodes one frame from the start of buf using the default limits.
func Decode(buf []byte) (Frame, int, error) {
	return defaultDecoder.Decode(buf)
}

// Decode decodes one frame from the start of buf.
//
// On success it returns the frame and the number of bytes consumed. When buf
// holds only part of a frame it returns ErrIncomplete and consumes nothing.
// Malformed input yields an error wrapping ErrMalformed. Decoded payloads are
// copied, so buf may be reused once Decode returns.
func (d *Decoder) Decode(buf []byte) (Frame, int, error) {
	f, next, err := d.decode(buf, 0, 0)
	if err != nil {
		return Frame{}, 0, err
	}
	return f, next, nil
}

// DecodeRequest decodes a client request. It behaves like Decode, except that
// when AllowInline is set a line that does not start with a RESP type byte is
// split on whitespace into an array of bulk strings. A blank inline line
// decodes to an empty array.
func (d *Decoder) DecodeRequest(buf []byte) (Frame, int, error) {
	if d.AllowInline && len(buf) > 0 && !isTypeByte(buf[0]) {
		return d.decodeInline(buf)
	}
	return d.Decode(buf)
}

func isTypeByte(b byte) bool {
	switch b {
	case '+', '-', ':', '$', '*', '_':
		return true
	}
	return false
}

func (d *Decoder) decodeInline(buf []byte) (Frame, int, error) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		if len(buf) > d.MaxLineLen+1 {
			return Frame{}, 0, limitError("inline command longer than %d bytes", d.MaxLineLen)
		}
		return Frame{}, 0, ErrIncomplete
	}
	line := bytes.TrimSuffix(buf[:idx], []byte{'\r'})
	if len(line) > d.MaxLineLen {
		return Frame{}, 0, limitError("inline command longer than %d bytes", d.MaxLineLen)
	}
	fields := bytes.Fields(line)
	elems := make([]Frame, len(fields))
	for i, f := range fields {
		elems[i] = Bulk(bytes.Clone(f))
	}
	return Array(elems...), idx + 1, nil
}

func (d *Decoder) decode(buf []byte, pos, depth int) (Frame, int, error) {
	if pos >= len(buf) {
		return Frame{}, 0, ErrIncomplete
	}

	typ := buf[pos]
	if !isTypeByte(typ) {
		return Frame{}, 0, malformed("unknown type byte %q", typ)
	}
	line, next, err := d.readLine(buf, pos+1)
	if err != nil {
		return Frame{}, 0, err
	}

	switch typ {
	case '+':
		return SimpleString(string(line)), next, nil

	case '-':
		return Error(string(line)), next, nil

	case ':':
		n, ok := parseInteger(line)
		if !ok {
			return Frame{}, 0, malformed("invalid integer %q", line)
		}
		return Integer(n), next, nil

	case '_':
		if len(line) != 0 {
			return Frame{}, 0, malformed("unexpected payload after null")
		}
		return Null(), next, nil

	case '$':
		n, ok := parseInteger(line)
		if !ok {
			return Frame{}, 0, malformed("invalid bulk length %q", line)
		}
		if n == -1 {
			return NullBulk(), next, nil
		}
		if n < 0 {
			return Frame{}, 0, malformed("negative bulk length %d", n)
		}
		if n > d.MaxBulkLen {
			return Frame{}, 0, limitError("bulk length %d exceeds %d", n, d.MaxBulkLen)
		}
		end := next + int(n)
		if len(buf) < end+2 {
			return Frame{}, 0, ErrIncomplete
		}
		if buf[end] != '\r' || buf[end+1] != '\n' {
			return Frame{}, 0, malformed("bulk payload not terminated by CRLF")
		}
		return Bulk(bytes.Clone(buf[next:end])), end + 2, nil

	case '*':
		n, ok := parseInteger(line)
		if !ok {
			return Frame{}, 0, malformed("invalid array length %q", line)
		}
		if n == -1 {
			return NullArray(), next, nil
		}
		if n < 0 {
			return Frame{}, 0, malformed("negative array length %d", n)
		}
		if n > d.MaxArrayLen {
			return Frame{}, 0, limitError("array length %d exceeds %d", n, d.MaxArrayLen)
		}
		if depth >= d.MaxDepth {
			return Frame{}, 0, limitError("nesting deeper than %d", d.MaxDepth)
		}
		elems := make([]Frame, 0, min(int(n), 1024))
		for i := int64(0); i < n; i++ {
			var elem Frame
			elem, next, err = d.decode(buf, next, depth+1)
			if err != nil {
				return Frame{}, 0, err
			}
			elems = append(elems, elem)
		}
		return Array(elems...), next, nil
	}
	return Frame{}, 0, malformed("unknown type byte %q", typ)
}

// readLine returns the bytes between start and the next CRLF, and the offset
// just past the CRLF. MaxLineLen bounds the line without its CRLF.
func (d *Decoder) readLine(buf []byte, start int) ([]byte, int, error) {
	idx := bytes.IndexByte(buf[start:], '\n')
	if idx < 0 {
		if len(buf)-start > d.MaxLineLen+1 {
			return nil, 0, limitError("line longer than %d bytes", d.MaxLineLen)
		}
		return nil, 0, ErrIncomplete
	}
	end := start + idx
	if idx == 0 || buf[end-1] != '\r' {
		return nil, 0, malformed("line not terminated by CRLF")
	}
	if idx-1 > d.MaxLineLen {
		return nil, 0, limitError("line longer than %d bytes", d.MaxLineLen)
	}
	line := buf[start : end-1]
	if bytes.IndexByte(line, '\r') >= 0 {
		return nil, 0, malformed("stray CR in line")
	}
	return line, end + 1, nil
}

// parseInteger accepts an optional '-' followed by at least one digit.
func parseInteger(b []byte) (int64, bool) {
	digits := b
	if len(digits) > 0 && digits[0] == '-' {
		digits = digits[1:]
	}
	if len(digits) == 0 {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ProtocolError describes malformed input. It matches ErrMalformed, and
// ErrLimitExceeded when a decoder limit was hit.
type ProtocolError struct {
	Reason string
	Limit  bool
}

func (e *ProtocolError) Error() string {
	return "resp: malformed frame: " + e.Reason
}

// Is implements errors.Is support.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrMalformed || (e.Limit && target == ErrLimitExceeded)
}

func malformed(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

func limitError(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...), Limit: true}
}
