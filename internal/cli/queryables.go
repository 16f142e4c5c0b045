package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/terradue/aeronet-go"
)

// NewQueryablesCommand creates the queryables command.
func NewQueryablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queryables",
		Short: "Print the filterable properties as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(rootOpts.viper, cmd.Flags(), keyHourly); err != nil {
				return err
			}

			s, err := aeronet.NewSearcher(rootOpts.searcherConfig(nil))
			if err != nil {
				return err
			}
			defer s.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s.Registry().Queryables())
		},
	}

	cmd.Flags().Bool(keyHourly, false, "include hour parameters")

	return cmd
}
