package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/controller"
)

func newRestoreCmd() *cobra.Command {
	var (
		mode       string
		skipBackup bool
		dryRun     bool
		inPlace    bool
		agentKind  string
	)

	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Restore code and/or conversation to a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := controllerForCwd(cmd)
			if err != nil {
				return err
			}

			result, err := c.Restore(controller.RestoreOptions{
				NameOrSelector: args[0],
				Mode:           controller.RestoreMode(mode),
				SkipBackup:     skipBackup,
				DryRun:         dryRun,
				InPlace:        inPlace,
				AgentKind:      agentKind,
			})
			if err != nil {
				return err
			}
			printRestoreResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "fork", "restore mode: code, context, both, or fork")
	cmd.Flags().BoolVar(&skipBackup, "skip-backup", false, "skip taking a safety checkpoint first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview the restore without mutating anything")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "for mode=both, rewrite the transcript in place instead of restoring from snapshot")
	cmd.Flags().StringVar(&agentKind, "agent", "generic", "agent kind (selects the agent schema)")

	return cmd
}

func newUndoCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Restore the newest checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := controllerForCwd(cmd)
			if err != nil {
				return err
			}
			result, err := c.UndoLastCheckpoint(controller.RestoreMode(mode))
			if err != nil {
				return err
			}
			printRestoreResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "code", "restore mode: code, context, both, or fork")
	return cmd
}

func newUndoRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo-restore",
		Short: "Undo the most recent restore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := controllerForCwd(cmd)
			if err != nil {
				return err
			}
			result, err := c.UndoRestore()
			if err != nil {
				return err
			}
			printRestoreResult(cmd, result)
			return nil
		},
	}
}

func newRewindBackCmd() *cobra.Command {
	var (
		both       bool
		inPlace    bool
		agentKind  string
		transcript string
	)

	cmd := &cobra.Command{
		Use:   "rewind-back <n>",
		Short: "Rewind the conversation n user prompts back (and code, with --both)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parsePositiveInt(args[0])
			if err != nil {
				return err
			}
			c, err := controllerForCwd(cmd)
			if err != nil {
				return err
			}
			result, err := c.RewindBack(transcript, n, controller.RewindBackOptions{Both: both, InPlace: inPlace}, agentKind)
			if err != nil {
				return err
			}
			printRestoreResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&both, "both", false, "also restore the matching code checkpoint")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "rewrite the transcript in place instead of forking")
	cmd.Flags().StringVar(&agentKind, "agent", "generic", "agent kind (selects the agent schema)")
	cmd.Flags().StringVar(&transcript, "transcript-path", "", "path to the agent's JSONL transcript")
	_ = cmd.MarkFlagRequired("transcript-path")

	return cmd
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("expected a positive integer, got %q", s)
	}
	return n, nil
}

func printRestoreResult(cmd *cobra.Command, result *controller.RestoreResult) {
	out := cmd.OutOrStdout()
	if !result.OK {
		fmt.Fprintf(out, "Restore failed (rollback: %s).\n", result.RollbackOutcome)
		return
	}
	if result.DiffSummary != "" {
		fmt.Fprintln(out, result.DiffSummary)
		return
	}
	fmt.Fprintf(out, "Restored %q.\n", result.RestoredName)
	if result.SafetyBackupName != "" {
		fmt.Fprintf(out, "Safety backup: %s\n", result.SafetyBackupName)
	}
	if result.ForkPath != "" {
		fmt.Fprintf(out, "Fork: %s\n", result.ForkPath)
	}
	if result.ActionRequired != "" {
		fmt.Fprintln(out, result.ActionRequired)
	}
}
