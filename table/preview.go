package table

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Preview renders up to n rows of t as a terminal table, followed by a row
// count line when rows were omitted. n <= 0 renders every row.
func Preview(w io.Writer, t *Table, n int) {
	consoleTable := tablewriter.NewWriter(w)
	consoleTable.SetHeader(t.Names())

	rows := t.Rows
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	for _, r := range rows {
		consoleTable.Append(r)
	}

	consoleTable.SetAutoFormatHeaders(false)
	consoleTable.SetAutoWrapText(false)
	consoleTable.Render()

	if len(rows) < t.Len() {
		fmt.Fprintf(w, "[%d rows x %d columns, %d shown]\n", t.Len(), len(t.Columns), len(rows))
	}
}
