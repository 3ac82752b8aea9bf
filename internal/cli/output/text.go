package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// TextFormatter renders replies the way redis-cli does on a terminal.
type TextFormatter struct{}

// Format writes reply followed by a newline.
func (f *TextFormatter) Format(w io.Writer, reply resp.Frame) error {
	var sb strings.Builder
	writeText(&sb, reply, "")
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeText(sb *strings.Builder, f resp.Frame, indent string) {
	switch f.Kind {
	case resp.KindSimpleString:
		sb.WriteString(f.Str)
	case resp.KindError:
		sb.WriteString("(error) ")
		sb.WriteString(f.Str)
	case resp.KindInteger:
		sb.WriteString("(integer) ")
		sb.WriteString(strconv.FormatInt(f.Int, 10))
	case resp.KindBulkString:
		if f.Nil {
			sb.WriteString("(nil)")
			return
		}
		sb.WriteString(Quote(f.Bulk))
	case resp.KindNull:
		sb.WriteString("(nil)")
	case resp.KindArray:
		if f.Nil {
			sb.WriteString("(nil)")
			return
		}
		if len(f.Elems) == 0 {
			sb.WriteString("(empty array)")
			return
		}
		width := len(strconv.Itoa(len(f.Elems)))
		for i, el := range f.Elems {
			if i > 0 {
				sb.WriteByte('\n')
				sb.WriteString(indent)
			}
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			sb.WriteString(prefix)
			writeText(sb, el, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		sb.WriteString(f.String())
	}
}

// Quote renders b as a double-quoted string, escaping quotes, backslashes
// and non-printable bytes as redis-cli does.
func Quote(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range b {
		switch c {
		case '\\', '"':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\a':
			sb.WriteString(`\a`)
		case '\b':
			sb.WriteString(`\b`)
		default:
			if c < 0x20 || c > 0x7e {
				fmt.Fprintf(&sb, `\x%02x`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// RawFormatter prints bare values, one per line.
type RawFormatter struct{}

// Format writes reply without quoting or type prefixes.
func (f *RawFormatter) Format(w io.Writer, reply resp.Frame) error {
	var sb strings.Builder
	writeRaw(&sb, reply)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRaw(sb *strings.Builder, f resp.Frame) {
	switch f.Kind {
	case resp.KindSimpleString, resp.KindError:
		sb.WriteString(f.Str)
	case resp.KindInteger:
		sb.WriteString(strconv.FormatInt(f.Int, 10))
	case resp.KindBulkString:
		sb.Write(f.Bulk)
	case resp.KindArray:
		for _, el := range f.Elems {
			writeRaw(sb, el)
		}
		return
	}
	sb.WriteByte('\n')
}
