package output

import (
	"bytes"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// Table is a set of rows rendered as aligned columns.
type Table struct {
	Headers   []string
	Rows      [][]string
	NoHeaders bool
}

// PairsTable builds a two-column table from a flat name/value array such
// as a CONFIG GET reply. A trailing odd element is dropped.
func PairsTable(reply resp.Frame, headers ...string) *Table {
	t := &Table{Headers: headers}
	for i := 0; i+1 < len(reply.Elems); i += 2 {
		t.AddRow(cell(reply.Elems[i].Bulk), cell(reply.Elems[i+1].Bulk))
	}
	return t
}

// cell renders a value for a table column. Values containing tabs, line
// breaks or other control bytes are quoted so they cannot break the layout.
func cell(b []byte) string {
	if bytes.ContainsFunc(b, func(r rune) bool { return r < ' ' || r == 0x7f }) {
		return Quote(b)
	}
	return string(b)
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table to w, with two spaces between columns.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	lines := t.Rows
	if !t.NoHeaders && len(t.Headers) > 0 {
		lines = append([][]string{t.Headers}, t.Rows...)
	}
	for _, row := range lines {
		if _, err := io.WriteString(tw, strings.Join(row, "\t")+"\n"); err != nil {
			return err
		}
	}
	return tw.Flush()
}
