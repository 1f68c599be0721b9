package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/redact"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := controllerForCwd(cmd)
			if err != nil {
				return err
			}

			listed, err := c.ListCheckpoints()
			if err != nil {
				return err
			}
			if len(listed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTIMESTAMP\tFILES\tCHAT\tDESCRIPTION")
			for _, lc := range listed {
				chat := "-"
				if lc.Manifest.Transcript != nil {
					chat = lc.Manifest.Transcript.Agent
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					lc.Manifest.Name, lc.Manifest.Timestamp, lc.Manifest.FileCount, chat, redact.String(lc.Manifest.Description))
			}
			return w.Flush()
		},
	}
}
