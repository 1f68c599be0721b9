package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/controller"
)

func newCheckpointCmd() *cobra.Command {
	var (
		name           string
		force          bool
		transcriptPath string
		agentKind      string
		sessionID      string
	)

	cmd := &cobra.Command{
		Use:   "checkpoint [description]",
		Short: "Capture the current working tree (and conversation, if given) as a checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			description := ""
			if len(args) > 0 {
				description = args[0]
			}

			c, err := controllerForCwd(cmd)
			if err != nil {
				return err
			}

			result, err := c.CreateCheckpoint(controller.CreateCheckpointOptions{
				Description:    description,
				Name:           name,
				Force:          force,
				TranscriptPath: transcriptPath,
				AgentKind:      agentKind,
				SessionID:      sessionID,
			})
			if err != nil {
				return err
			}

			if result.NoChanges {
				fmt.Fprintf(cmd.OutOrStdout(), "No changes to checkpoint (%s).\n", result.Reason)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %q created (%d files, %d bytes)", result.Name, result.FileCount, result.TotalBytes)
			if result.HasTranscript {
				fmt.Fprint(cmd.OutOrStdout(), ", with conversation snapshot")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "checkpoint name hint")
	cmd.Flags().BoolVar(&force, "force", false, "checkpoint even if nothing changed")
	cmd.Flags().StringVar(&transcriptPath, "transcript-path", "", "path to the agent's JSONL transcript")
	cmd.Flags().StringVar(&agentKind, "agent", "generic", "agent kind (selects the agent schema)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "agent session id")

	return cmd
}
