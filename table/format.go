package table

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Format is an output encoding.
type Format string

const (
	GeoParquet Format = "geoparquet"
	CSV        Format = "csv"
)

// Formats lists the supported formats, default first.
var Formats = []Format{GeoParquet, CSV}

// ErrUnsupportedFormat is returned for unknown format names.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case GeoParquet, CSV:
		return f, nil
	case "parquet":
		return GeoParquet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	if f == CSV {
		return ".csv"
	}
	return ".parquet"
}

// MediaType returns the IANA media type.
func (f Format) MediaType() string {
	if f == CSV {
		return "text/csv"
	}
	return "application/vnd.apache.parquet"
}

// Description is a human-readable asset description.
func (f Format) Description() string {
	if f == CSV {
		return "AERONET data in CSV format"
	}
	return "AERONET data in GeoParquet format"
}

// MaterializationError reports a failure to write one output.
type MaterializationError struct {
	Format Format
	Path   string
	Err    error
}

func (e *MaterializationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("write %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("write %s to %s: %v", e.Format, e.Path, e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}

// Write encodes t in format f.
func Write(w io.Writer, t *Table, f Format, opts GeoOptions) error {
	var err error
	switch f {
	case GeoParquet:
		err = WriteGeoParquet(w, t, opts)
	case CSV:
		err = WriteCSV(w, t)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return &MaterializationError{Format: f, Err: err}
	}
	return nil
}

// Output is a written file.
type Output struct {
	Format Format
	Path   string
}

// WriteFile writes t to path. The file is created next to path and renamed
// into place once complete.
func WriteFile(path string, t *Table, f Format, opts GeoOptions) (err error) {
	fail := func(err error) error {
		return &MaterializationError{Format: f, Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := Write(tmp, t, f, opts); err != nil {
		tmp.Close()
		var me *MaterializationError
		if errors.As(err, &me) {
			me.Path = path
		}
		return err
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	return nil
}

// WriteFiles writes t once per format into dir as <base><ext>, concurrently.
// Outputs are returned in the order of formats.
func WriteFiles(ctx context.Context, dir, base string, t *Table, formats []Format, opts GeoOptions) ([]Output, error) {
	seen := make(map[Format]bool, len(formats))
	for _, f := range formats {
		if seen[f] {
			return nil, fmt.Errorf("format %q requested twice", f)
		}
		seen[f] = true
	}

	outputs := make([]Output, len(formats))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		path := filepath.Join(dir, base+f.Extension())
		outputs[i] = Output{Format: f, Path: path}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return WriteFile(path, t, f, opts)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
