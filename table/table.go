// Package table holds rows returned by the AERONET web service and writes them
// as CSV or GeoParquet.
//
// Rows are kept as text, each column carrying an inferred type: a column is
// Float when every non-empty cell parses as a number, String otherwise.
// AERONET encodes missing measurements as -999, which stays a number.
//
// Basic Usage:
//
//	t, err := table.ParseCSV(bytes.NewReader(body), table.ReadOptions{})
//	if err != nil {
//	    return err
//	}
//	err = table.WriteGeoParquet(f, t, table.GeoOptions{})
package table

import (
	"errors"
	"strconv"
	"strings"
)

// ColumnType is the inferred type of a column.
type ColumnType int

const (
	String ColumnType = iota
	Float
)

func (t ColumnType) String() string {
	if t == Float {
		return "float64"
	}
	return "string"
}

// Column describes one table column.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a parsed result set. Every row has len(Columns) cells.
type Table struct {
	Columns []Column
	Rows    [][]string
}

var (
	// ErrNoHeader is returned when the input holds no header line after the preamble.
	ErrNoHeader = errors.New("no header line in response")

	// ErrMissingCoordinates is returned when a geometry cannot be built because
	// a coordinate column is absent.
	ErrMissingCoordinates = errors.New("missing coordinate columns")
)

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Float returns cell (row, col) as a number. ok is false for empty or
// non-numeric cells.
func (t *Table) Float(row, col int) (v float64, ok bool) {
	return parseFloat(t.Rows[row][col])
}

// Value returns cell (row, col) of the named column, or "" if absent.
func (t *Table) Value(row int, name string) string {
	i := t.Index(name)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// inferTypes assigns Float to columns whose non-empty cells are all numeric
// and which have at least one non-empty cell.
func inferTypes(t *Table) {
	for c := range t.Columns {
		numeric, seen := true, false
		for _, row := range t.Rows {
			cell := strings.TrimSpace(row[c])
			if cell == "" {
				continue
			}
			seen = true
			if _, ok := parseFloat(cell); !ok {
				numeric = false
				break
			}
		}
		if numeric && seen {
			t.Columns[c].Type = Float
		} else {
			t.Columns[c].Type = String
		}
	}
}
