// Package cli assembles Rewind's command-line surface: cobra commands that
// translate flags and stdin payloads into calls on internal/controller.
// Grounded on the teacher's cmd/entire/cli/root.go (cobra root command,
// SilentError sentinel so main.go doesn't double-print, PersistentPostRun
// telemetry hook) and main.go (signal-driven context cancellation).
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/telemetry"
)

// Version and Commit are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// SilentError wraps an error already reported to the user (e.g. printed as
// part of a command's own output), so main need not print it again.
type SilentError struct{ Err error }

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// NewRootCmd builds the "rewind" root command and registers every
// subcommand.
func NewRootCmd() *cobra.Command {
	var outcome string

	cmd := &cobra.Command{
		Use:           "rewind",
		Short:         "Automatic checkpointing for AI coding agents",
		Long:          "Rewind captures and restores code and conversation state together, so an agent session can be rewound without losing either domain.",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(*cobra.Command, []string) {
			outcome = "ok"
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			cfg, agentKind := loadTelemetryPreference(cmd)
			client := telemetry.NewClient(Version, cfg)
			defer client.Close()
			client.TrackCommand(cmd, outcome, agentKind)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCheckpointCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newUndoCmd())
	cmd.AddCommand(newUndoRestoreCmd())
	cmd.AddCommand(newRewindBackCmd())
	cmd.AddCommand(newGcCmd())
	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadTelemetryPreference reads the project's telemetry opt-in without
// failing the command if it can't; failure to resolve a project defaults
// telemetry to disabled (NewClient(nil, ...) -> NoOpClient).
func loadTelemetryPreference(cmd *cobra.Command) (enabled *bool, agentKind string) {
	c, err := controllerForCwd(cmd)
	if err != nil {
		return nil, ""
	}
	return c.Config.Telemetry, agentKindFlag(cmd)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rewind %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
