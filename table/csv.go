package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	// DefaultSkipLines is the preamble length of print_web_data_v3 responses.
	DefaultSkipLines = 5

	// StationsSkipLines is the preamble length of the site inventory.
	StationsSkipLines = 1
)

// ReadOptions configures ParseCSV.
type ReadOptions struct {
	// SkipLines preamble lines to drop before the header.
	// OPTIONAL: defaults to DefaultSkipLines. Use a negative value for none.
	SkipLines int
}

// ParseCSV reads an AERONET CSV response. HTML wrapper lines are removed
// before the preamble is skipped, so responses fetched with or without
// if_no_html parse the same.
func ParseCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	skip := opts.SkipLines
	if skip == 0 {
		skip = DefaultSkipLines
	}
	if skip < 0 {
		skip = 0
	}

	body, err := stripHTML(r)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(body))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) <= skip {
		return nil, ErrNoHeader
	}
	records = records[skip:]

	header := records[0]
	t := &Table{Columns: make([]Column, len(header))}
	for i, name := range header {
		t.Columns[i] = Column{Name: strings.TrimSpace(name)}
	}

	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}

	inferTypes(t)
	return t, nil
}

// ParseStations reads the extended site inventory.
func ParseStations(r io.Reader) (*Table, error) {
	return ParseCSV(r, ReadOptions{SkipLines: StationsSkipLines})
}

// WriteCSV writes the header and every row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

var htmlTag = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)

// stripHTML removes markup and drops lines that held nothing else.
func stripHTML(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.Contains(line, "<") {
			stripped := htmlTag.ReplaceAllString(line, "")
			if strings.TrimSpace(stripped) == "" {
				continue
			}
			line = stripped
		}
		trimmed := strings.TrimSpace(line)
		// blank lines are dropped by encoding/csv, which would shift the preamble
		if trimmed == "" {
			line = " "
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return out.Bytes(), nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
