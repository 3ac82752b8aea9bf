package output

import (
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// JSONFormatter formats replies as JSON. Strings become JSON strings,
// integers numbers, nulls null, arrays arrays, and errors an object with
// an "error" field. Bulk strings that are not valid UTF-8 are emitted as
// {"base64": "..."}.
type JSONFormatter struct{}

// Format writes reply as one line of JSON.
func (f *JSONFormatter) Format(w io.Writer, reply resp.Frame) error {
	return json.NewEncoder(w).Encode(toJSON(reply))
}

func toJSON(f resp.Frame) any {
	switch f.Kind {
	case resp.KindSimpleString:
		return f.Str
	case resp.KindError:
		return map[string]string{"error": f.Str}
	case resp.KindInteger:
		return f.Int
	case resp.KindBulkString:
		if f.Nil {
			return nil
		}
		if !utf8.Valid(f.Bulk) {
			return map[string][]byte{"base64": f.Bulk}
		}
		return string(f.Bulk)
	case resp.KindArray:
		if f.Nil {
			return nil
		}
		out := make([]any, len(f.Elems))
		for i, el := range f.Elems {
			out[i] = toJSON(el)
		}
		return out
	default:
		return nil
	}
}
