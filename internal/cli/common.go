package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/controller"
)

// controllerForCwd resolves a Controller rooted at the process's current
// working directory. Every command shares this resolution so the project
// root, storage root, and configuration are found the same way everywhere.
func controllerForCwd(_ *cobra.Command) (*controller.Controller, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return controller.New(cwd)
}

// agentKindFlag reads a previously-registered --agent flag, if the command
// defines one; otherwise returns "".
func agentKindFlag(cmd *cobra.Command) string {
	f := cmd.Flags().Lookup("agent")
	if f == nil {
		return ""
	}
	return f.Value.String()
}
