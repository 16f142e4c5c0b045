package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terradue/aeronet-go"
	"github.com/terradue/aeronet-go/internal/recovery"
)

// DumpStationsOptions holds flags for the dump-stations command.
type DumpStationsOptions struct {
	*RootOptions
	OutputFile string
}

// NewDumpStationsCommand creates the dump-stations command.
func NewDumpStationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpStationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump-stations [url]",
		Short: "Write the AERONET station inventory as stac-geoparquet",
		Long: `Download the AERONET site inventory and write one STAC item per station,
carrying the aeronet: extension properties, as stac-geoparquet.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(opts.viper, cmd.Flags(), keyCacheDir); err != nil {
				return err
			}
			return recovery.Track(opts.Logger(), "dump-stations", func() error {
				return runDumpStations(opts, cmd, args)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFile, "output-file", "o", "", "output file path (required)")
	cmd.Flags().String(keyCacheDir, "", "cache responses in this directory")
	_ = cmd.MarkFlagRequired("output-file")

	return cmd
}

func runDumpStations(opts *DumpStationsOptions, cmd *cobra.Command, args []string) error {
	s, err := aeronet.NewSearcher(opts.searcherConfig(args))
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.DumpStations(cmd.Context(), opts.OutputFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d stations written to %s\n", n, opts.OutputFile)
	return nil
}
