package aeronet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/terradue/aeronet-go/catalog"
	"github.com/terradue/aeronet-go/client"
	"github.com/terradue/aeronet-go/filter"
	"github.com/terradue/aeronet-go/internal/recovery"
	"github.com/terradue/aeronet-go/stac"
	"github.com/terradue/aeronet-go/table"
)

// DefaultBaseName is the file name, without extension, of search outputs
// written to a directory.
const DefaultBaseName = "aeronet"

// stationItems is replaced in tests.
var stationItems = stac.StationItems

// Searcher compiles filters, runs them against the web service and
// materializes the results. Safe for concurrent use.
type Searcher struct {
	compiler *filter.Compiler
	registry catalog.Registry
	client   *client.Client
	geo      table.GeoOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewSearcher validates config and creates a Searcher.
// Returns error wrapping ErrInvalidConfig if config is inconsistent.
func NewSearcher(config Config) (*Searcher, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	reg, err := config.registry()
	if err != nil {
		return nil, err
	}

	logger := config.logger()

	c, err := client.New(client.Options{
		BaseURL:    config.BaseURL,
		HTTPClient: config.HTTPClient,
		Logger:     logger,
		Trace:      config.Trace,
		RateLimit:  config.RateLimit,
		Retry:      config.Retry,
		CacheDir:   config.CacheDir,
		CacheTTL:   config.CacheTTL,
	})
	if err != nil {
		return nil, err
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Searcher{
		compiler: filter.NewCompiler(reg),
		registry: reg,
		client:   c,
		geo:      table.GeoOptions{Allocator: config.Allocator},
		logger:   logger,
		now:      now,
	}, nil
}

// Registry returns the queryable registry filters are compiled against.
func (s *Searcher) Registry() catalog.Registry { return s.registry }

// BaseURL returns the web service root.
func (s *Searcher) BaseURL() string { return s.client.BaseURL() }

// Close releases the response cache.
func (s *Searcher) Close() error { return s.client.Close() }

// Compile parses input in the named filter language (cql2-json when empty)
// and compiles it into query parameters.
//
// Errors are *filter.SyntaxError for malformed input and *filter.CompileError
// when the filter falls outside what the web service can express.
func (s *Searcher) Compile(lang, input string) (*filter.Query, error) {
	expr, err := filter.ParseLang(lang, input)
	if err != nil {
		return nil, err
	}
	return s.compiler.Compile(expr)
}

// DryRun compiles the filter and returns the request URL a search would
// issue. No network I/O is performed.
func (s *Searcher) DryRun(lang, input string) (string, error) {
	q, err := s.Compile(lang, input)
	if err != nil {
		return "", err
	}
	return s.client.SearchURL(q), nil
}

// SearchRequest describes one search.
type SearchRequest struct {
	// Filter is the CQL2 filter.
	// REQUIRED.
	Filter string

	// FilterLang is filter.LangCQL2JSON or filter.LangCQL2Text.
	// OPTIONAL: defaults to cql2-json.
	FilterLang string

	// Formats to write.
	// OPTIONAL: defaults to GeoParquet when an output is requested.
	Formats []table.Format

	// OutputFile writes a single format to this path.
	// OPTIONAL: MUST NOT be combined with OutputDir. The format is taken
	// from the extension when Formats is empty.
	OutputFile string

	// OutputDir writes every format into this directory as aeronet.<ext>.
	// OPTIONAL: MUST NOT be combined with OutputFile.
	OutputDir string

	// STAC builds a catalog item describing the result, written next to the
	// outputs with a .json extension when any are requested.
	STAC bool

	// SkipLines overrides the number of preamble lines before the CSV header.
	// OPTIONAL: If 0, uses table.DefaultSkipLines.
	SkipLines int
}

// SearchResult is the outcome of a successful search.
type SearchResult struct {
	// URL is the request issued to the web service.
	URL string

	// Query is the compiled filter.
	Query *filter.Query

	// Table holds the returned rows.
	Table *table.Table

	// Files lists the written outputs, in format order.
	Files []table.Output

	// Item is the catalog item, when requested.
	Item *stac.Item

	// ItemPath is where Item was written, if anywhere.
	ItemPath string
}

// Search compiles the filter, fetches the matching rows and writes the
// requested outputs. Nothing reaches the network when compilation fails.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	formats, err := requestFormats(req)
	if err != nil {
		return nil, err
	}

	q, err := s.Compile(req.FilterLang, req.Filter)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{URL: s.client.SearchURL(q), Query: q}
	s.logger.Debug("Compiled filter", "url", res.URL, "params", q.Len())

	body, err := s.client.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	res.Table, err = table.ParseCSV(bytes.NewReader(body), table.ReadOptions{SkipLines: req.SkipLines})
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	s.logger.Info("Search completed", "rows", res.Table.Len(), "columns", len(res.Table.Columns))

	switch {
	case req.OutputFile != "":
		if err := table.WriteFile(req.OutputFile, res.Table, formats[0], s.geo); err != nil {
			return nil, err
		}
		res.Files = []table.Output{{Format: formats[0], Path: req.OutputFile}}
	case req.OutputDir != "":
		res.Files, err = table.WriteFiles(ctx, req.OutputDir, DefaultBaseName, res.Table, formats, s.geo)
		if err != nil {
			return nil, err
		}
	}
	for _, f := range res.Files {
		s.logger.Info("Wrote output", "format", f.Format, "path", f.Path)
	}

	if !req.STAC {
		return res, nil
	}

	res.Item, err = stac.NewSearchItem(stac.SearchItemOptions{
		RequestURL: res.URL,
		Table:      res.Table,
		Outputs:    res.Files,
		Now:        s.now(),
	})
	if err != nil {
		return nil, err
	}

	if len(res.Files) > 0 {
		res.ItemPath = itemPath(req)
		if err := writeAtomic(res.ItemPath, res.Item.Encode); err != nil {
			return nil, fmt.Errorf("write catalog item: %w", err)
		}
		s.logger.Info("Wrote catalog item", "path", res.ItemPath)
	}

	return res, nil
}

// Stations fetches the site inventory and returns one validated catalog
// item per station.
func (s *Searcher) Stations(ctx context.Context) ([]*stac.Item, error) {
	body, err := s.client.Stations(ctx)
	if err != nil {
		return nil, err
	}

	t, err := table.ParseStations(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse stations: %w", err)
	}

	items, err := recovery.RecoverToValue(s.logger, "StationItems", func() ([]*stac.Item, error) {
		return stationItems(t, s.client.BaseURL(), s.now())
	})
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := stac.Validate(it); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// DumpStations writes the station catalog items to path as stac-geoparquet
// and returns the number of stations written.
func (s *Searcher) DumpStations(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: output file is required", ErrInvalidRequest)
	}

	items, err := s.Stations(ctx)
	if err != nil {
		return 0, err
	}

	err = writeAtomic(path, func(w io.Writer) error {
		return stac.WriteGeoParquet(w, items, s.geo)
	})
	if err != nil {
		return 0, &table.MaterializationError{Format: table.GeoParquet, Path: path, Err: err}
	}

	s.logger.Info("Wrote stations", "count", len(items), "path", path)
	return len(items), nil
}

// requestFormats validates the output options of req and resolves its formats.
func requestFormats(req SearchRequest) ([]table.Format, error) {
	if req.Filter == "" {
		return nil, fmt.Errorf("%w: filter is required", ErrInvalidRequest)
	}
	if req.OutputFile != "" && req.OutputDir != "" {
		return nil, fmt.Errorf("%w: output file and output directory are mutually exclusive", ErrInvalidRequest)
	}

	formats := req.Formats
	if len(formats) == 0 {
		formats = []table.Format{table.GeoParquet}
		if req.OutputFile != "" {
			if f, ok := formatForPath(req.OutputFile); ok {
				formats = []table.Format{f}
			}
		}
	}
	if req.OutputFile != "" && len(formats) > 1 {
		return nil, fmt.Errorf("%w: %d formats requested for a single output file", ErrInvalidRequest, len(formats))
	}
	return formats, nil
}

func formatForPath(path string) (table.Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range table.Formats {
		if f.Extension() == ext {
			return f, true
		}
	}
	return "", false
}

// itemPath places the catalog item next to the outputs of req.
func itemPath(req SearchRequest) string {
	if req.OutputFile != "" {
		return strings.TrimSuffix(req.OutputFile, filepath.Ext(req.OutputFile)) + ".json"
	}
	return filepath.Join(req.OutputDir, DefaultBaseName+".json")
}

// writeAtomic writes through a temporary file renamed into place on success.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
