package resp

import (
	"io"
	"strconv"
	"strings"
)

var crlf = []byte{'\r', '\n'}

// Encode returns the wire form of f.
func Encode(f Frame) []byte {
	return AppendFrame(nil, f)
}

// Write encodes f to w.
func Write(w io.Writer, f Frame) error {
	_, err := w.Write(AppendFrame(nil, f))
	return err
}

// AppendFrame appends the wire form of f to dst and returns the extended
// slice. CR and LF inside simple strings and errors are replaced with spaces
// so the output always decodes back to a single frame.
func AppendFrame(dst []byte, f Frame) []byte {
	switch f.Kind {
	case KindNull:
		return append(dst, '_', '\r', '\n')

	case KindSimpleString:
		dst = append(dst, '+')
		dst = append(dst, sanitizeLine(f.Str)...)
		return append(dst, crlf...)

	case KindError:
		dst = append(dst, '-')
		dst = append(dst, sanitizeLine(f.Str)...)
		return append(dst, crlf...)

	case KindInteger:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, f.Int, 10)
		return append(dst, crlf...)

	case KindBulkString:
		if f.Nil {
			return append(dst, "$-1\r\n"...)
		}
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(f.Bulk)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, f.Bulk...)
		return append(dst, crlf...)

	case KindArray:
		if f.Nil {
			return append(dst, "*-1\r\n"...)
		}
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(f.Elems)), 10)
		dst = append(dst, crlf...)
		for _, e := range f.Elems {
			dst = AppendFrame(dst, e)
		}
		return dst
	}
	return dst
}

var lineReplacer = strings.NewReplacer("\r", " ", "\n", " ")

func sanitizeLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return lineReplacer.Replace(s)
}

// Command builds a request array of bulk strings from args.
func Command(args ...string) Frame {
	return BulkStrings(args...)
}
