package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terradue/aeronet-go"
	"github.com/terradue/aeronet-go/filter"
	"github.com/terradue/aeronet-go/internal/recovery"
	"github.com/terradue/aeronet-go/table"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Filter     string
	FilterLang string
	DryRun     bool
	Formats    []string
	OutputFile string
	OutputDir  string
	STAC       bool
	Preview    int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search [url]",
		Short: "Search AERONET data with a CQL2 filter",
		Long: `Compile a CQL2 filter into AERONET web service parameters and download the
matching rows.

The filter accepts equality on site, data_type, format and data_format, and a
T_AFTER/T_BEFORE pair on time, joined with AND. Other constructs are rejected
before any request is sent.

Without --output-file or --output-dir the rows are written to stdout as CSV,
or previewed as a table with --preview.`,
		Example: `  aeronet search --filter-lang cql2-text --dry-run \
    --filter "site = 'Cart_Site' AND data_type = 'AOD20' AND T_AFTER(time, TIMESTAMP('2000-06-01T00:00:00Z')) AND T_BEFORE(time, TIMESTAMP('2000-06-14T00:00:00Z'))"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(opts.viper, cmd.Flags(), keyCacheDir, keyHourly); err != nil {
				return err
			}
			return recovery.Track(opts.Logger(), "search", func() error {
				return runSearch(opts, cmd, args)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "CQL2 filter (required)")
	cmd.Flags().StringVar(&opts.FilterLang, "filter-lang", filter.LangCQL2JSON, "filter language (cql2-json|cql2-text)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the request URL without sending it")
	cmd.Flags().StringSliceVar(&opts.Formats, "format", nil, "output format (geoparquet|csv), repeatable")
	cmd.Flags().StringVarP(&opts.OutputFile, "output-file", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "output directory, one file per format")
	cmd.Flags().BoolVar(&opts.STAC, "stac", false, "write a STAC item describing the output")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "print the first N rows as a table")
	cmd.Flags().String(keyCacheDir, "", "cache responses in this directory")
	cmd.Flags().Bool(keyHourly, false, "emit hour parameters for time ranges")
	_ = cmd.MarkFlagRequired("filter")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command, args []string) error {
	s, err := aeronet.NewSearcher(opts.searcherConfig(args))
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.DryRun {
		url, err := s.DryRun(opts.FilterLang, opts.Filter)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	}

	formats := make([]table.Format, 0, len(opts.Formats))
	for _, name := range opts.Formats {
		f, err := table.ParseFormat(name)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	toStdout := opts.OutputFile == "" && opts.OutputDir == ""
	if toStdout && opts.STAC {
		return usageError(fmt.Errorf("--stac requires --output-file or --output-dir"))
	}
	if toStdout && len(formats) > 0 && (len(formats) > 1 || formats[0] != table.CSV) {
		return usageError(fmt.Errorf("only csv can be written to stdout"))
	}

	res, err := s.Search(cmd.Context(), aeronet.SearchRequest{
		Filter:     opts.Filter,
		FilterLang: opts.FilterLang,
		Formats:    formats,
		OutputFile: opts.OutputFile,
		OutputDir:  opts.OutputDir,
		STAC:       opts.STAC,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.Preview > 0:
		table.Preview(out, res.Table, opts.Preview)
	case toStdout:
		return table.WriteCSV(out, res.Table)
	}
	return nil
}
