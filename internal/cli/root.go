// Package cli implements the aeronet command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	LogFormat string // "text" | "json"
	Config    string // config file path

	viper  *viper.Viper
	logger *slog.Logger
}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the aeronet CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: viper.New()}

	cmd := &cobra.Command{
		Use:   "aeronet",
		Short: "Query the AERONET web service with CQL2 filters",
		Long: `Query the AERONET (Aerosol Robotic Network) v3 web service with CQL2 filters.

Filters are compiled into web service query parameters, the matching rows are
downloaded and written as GeoParquet or CSV, optionally described by a STAC item.

Environment variables:
  AERONET_API_BASE_URL=https://aeronet.gsfc.nasa.gov
  AERONET_CACHE_DIR=
  AERONET_CACHE_TTL=24h
  AERONET_RATE_LIMIT=2
  AERONET_HOURLY=false

Settings are also read from $HOME/.aeronet.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidLogFormat(opts.LogFormat) {
				return usageError(fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, ValidLogFormats))
			}
			if err := initConfig(opts.viper, opts.Config); err != nil {
				return err
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.LogFormat, opts.Verbose)
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging and HTTP request tracing")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default $HOME/.aeronet.yaml)")

	// Add subcommands
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewDumpStationsCommand(opts))
	cmd.AddCommand(NewQueryablesCommand(opts))

	return cmd
}

// isValidLogFormat checks if the format is one of the allowed values.
func isValidLogFormat(format string) bool {
	for _, f := range ValidLogFormats {
		if f == format {
			return true
		}
	}
	return false
}
