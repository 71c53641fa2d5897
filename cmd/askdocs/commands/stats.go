// ABOUTME: CLI command to describe the persisted index
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Show the embedding model, vector dimension and chunk count of the persisted index.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			stats := a.Service.Stats()
			if outputFormat == "json" {
				return printJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Location:  %s\n", a.Store.Location())
			fmt.Fprintf(out, "Model:     %s\n", stats.Model)
			fmt.Fprintf(out, "Dimension: %d\n", stats.Dimension)
			fmt.Fprintf(out, "Chunks:    %d\n", stats.Chunks)
			return nil
		},
	}
}
