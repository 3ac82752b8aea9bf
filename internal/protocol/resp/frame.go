package resp

import (
	"bytes"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Frame.
type Kind uint8

const (
	KindNull Kind = iota
	KindSimpleString
	KindError
	KindInteger
	KindBulkString
	KindArray
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindSimpleString:
		return "simple-string"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulkString:
		return "bulk-string"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Frame is one RESP value.
//
// Only the fields relevant to Kind are meaningful. Nil marks a null bulk
// string ($-1) or a null array (*-1); a non-null empty bulk string has Nil
// false and a zero-length Bulk.
type Frame struct {
	Kind  Kind
	Str   string
	Int   int64
	Bulk  []byte
	Elems []Frame
	Nil   bool
}

// Null returns the null frame ("_\r\n").
func Null() Frame {
	return Frame{Kind: KindNull}
}

// SimpleString returns a '+' frame.
func SimpleString(s string) Frame {
	return Frame{Kind: KindSimpleString, Str: s}
}

// Error returns a '-' frame.
func Error(msg string) Frame {
	return Frame{Kind: KindError, Str: msg}
}

// Integer returns a ':' frame.
func Integer(n int64) Frame {
	return Frame{Kind: KindInteger, Int: n}
}

// Bulk returns a non-null bulk string frame. A nil slice is treated as empty.
func Bulk(b []byte) Frame {
	if b == nil {
		b = []byte{}
	}
	return Frame{Kind: KindBulkString, Bulk: b}
}

// BulkString returns a bulk string frame holding s.
func BulkString(s string) Frame {
	return Frame{Kind: KindBulkString, Bulk: []byte(s)}
}

// NullBulk returns the null bulk string ("$-1\r\n").
func NullBulk() Frame {
	return Frame{Kind: KindBulkString, Nil: true}
}

// Array returns a non-null array frame.
func Array(elems ...Frame) Frame {
	if elems == nil {
		elems = []Frame{}
	}
	return Frame{Kind: KindArray, Elems: elems}
}

// NullArray returns the null array ("*-1\r\n").
func NullArray() Frame {
	return Frame{Kind: KindArray, Nil: true}
}

// BulkStrings returns an array of bulk strings.
func BulkStrings(items ...string) Frame {
	elems := make([]Frame, len(items))
	for i, s := range items {
		elems[i] = BulkString(s)
	}
	return Array(elems...)
}

// IsNull reports whether f is the null frame, a null bulk or a null array.
func (f Frame) IsNull() bool {
	return f.Kind == KindNull || f.Nil
}

// IsError reports whether f is an error frame.
func (f Frame) IsError() bool {
	return f.Kind == KindError
}

// Equal reports whether f and o encode to the same bytes.
func (f Frame) Equal(o Frame) bool {
	if f.Kind != o.Kind {
		return false
	}
	switch f.Kind {
	case KindNull:
		return true
	case KindSimpleString, KindError:
		return f.Str == o.Str
	case KindInteger:
		return f.Int == o.Int
	case KindBulkString:
		if f.Nil || o.Nil {
			return f.Nil == o.Nil
		}
		return bytes.Equal(f.Bulk, o.Bulk)
	case KindArray:
		if f.Nil || o.Nil {
			return f.Nil == o.Nil
		}
		if len(f.Elems) != len(o.Elems) {
			return false
		}
		for i := range f.Elems {
			if !f.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders f for logs and test failures.
func (f Frame) String() string {
	var sb strings.Builder
	f.format(&sb)
	return sb.String()
}

func (f Frame) format(sb *strings.Builder) {
	switch f.Kind {
	case KindNull:
		sb.WriteString("(null)")
	case KindSimpleString:
		sb.WriteString(f.Str)
	case KindError:
		sb.WriteString("(error) ")
		sb.WriteString(f.Str)
	case KindInteger:
		sb.WriteString("(integer) ")
		sb.WriteString(strconv.FormatInt(f.Int, 10))
	case KindBulkString:
		if f.Nil {
			sb.WriteString("(nil)")
			return
		}
		sb.WriteString(strconv.Quote(string(f.Bulk)))
	case KindArray:
		if f.Nil {
			sb.WriteString("(nil array)")
			return
		}
		sb.WriteByte('[')
		for i, e := range f.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteByte(']')
	}
}
