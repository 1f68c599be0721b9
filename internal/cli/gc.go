package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Prune checkpoints per the retention policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := controllerForCwd(cmd)
			if err != nil {
				return err
			}
			deleted, err := c.Gc()
			if err != nil {
				return err
			}
			if len(deleted) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d checkpoint(s):\n", len(deleted))
			for _, name := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			return nil
		},
	}
}
