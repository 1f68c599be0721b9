package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rewindhq/rewind/internal/versioncheck"
	"github.com/rewindhq/rewind/redact"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the current project's Rewind setup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			interactive := term.IsTerminal(int(os.Stdout.Fd()))
			fmt.Fprintf(out, "interactive terminal: %v\n", interactive)

			c, err := controllerForCwd(cmd)
			if err != nil {
				fmt.Fprintf(out, "project root: error: %s\n", redact.String(err.Error()))
				return nil //nolint:nilerr // doctor reports problems, it doesn't fail on them
			}
			fmt.Fprintf(out, "project root: %s\n", c.ProjectRoot)
			fmt.Fprintf(out, "storage root: %s\n", c.StorageRoot)
			fmt.Fprintf(out, "storage mode: %s\n", c.Config.StorageMode)
			fmt.Fprintf(out, "retention: max_count=%d max_age_days=%d\n", c.Config.Retention.MaxCount, c.Config.Retention.MaxAgeDays)

			compat := versioncheck.Check(c.Config.SchemaVersion, Version)
			switch compat {
			case versioncheck.Same:
				fmt.Fprintln(out, "storage schema: up to date")
			case versioncheck.StorageNewer:
				fmt.Fprintln(out, "storage schema: newer than this binary; upgrade rewind")
			case versioncheck.StorageOlder:
				fmt.Fprintln(out, "storage schema: older than this binary; will be used as-is")
			}
			return nil
		},
	}
}
