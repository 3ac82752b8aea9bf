package output

import (
	"fmt"
	"io"

	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// Format represents the output format.
type Format string

const (
	FormatText Format = "text"
	FormatRaw  Format = "raw"
	FormatJSON Format = "json"
)

// Formatter writes one reply.
type Formatter interface {
	Format(w io.Writer, reply resp.Frame) error
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatRaw, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, raw or json)", s)
	}
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatRaw:
		return &RawFormatter{}
	default:
		return &TextFormatter{}
	}
}
