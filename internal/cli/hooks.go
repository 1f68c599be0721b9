package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/controller"
	"github.com/rewindhq/rewind/internal/hookpolicy"
)

// hookPayload is the normalised event shape an agent-specific hook adapter
// is expected to emit on stdin (spec.md §4.5). Parsing an agent's own raw
// hook JSON into this shape is an adapter's job, outside the core's budget
// (spec.md §2); this command is the seam an adapter script calls into.
type hookPayload struct {
	Kind           string `json:"kind"`
	ToolName       string `json:"tool_name"`
	TranscriptPath string `json:"transcript_path"`
	SessionID      string `json:"session_id"`
	Cwd            string `json:"cwd"`
	ChangeSizeHint int    `json:"change_size_hint"`
}

func newHooksCmd() *cobra.Command {
	var agentKind string

	cmd := &cobra.Command{
		Use:    "hooks",
		Short:  "Internal: translate a normalised hook event (on stdin) into a checkpoint decision",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHook(cmd, cmd.InOrStdin(), agentKind)
		},
	}

	cmd.Flags().StringVar(&agentKind, "agent", "generic", "agent kind (selects the agent schema)")
	return cmd
}

func runHook(cmd *cobra.Command, stdin io.Reader, agentKind string) error {
	var payload hookPayload
	if err := json.NewDecoder(stdin).Decode(&payload); err != nil {
		return fmt.Errorf("parsing hook payload: %w", err)
	}

	c, err := controllerForCwd(cmd)
	if err != nil {
		return err
	}

	state, err := hookpolicy.LoadState(c.StorageRoot)
	if err != nil {
		return err
	}

	last, haveLast := state[payload.SessionID]
	event := hookpolicy.Event{
		Kind:           hookpolicy.EventKind(payload.Kind),
		ToolName:       payload.ToolName,
		TranscriptPath: payload.TranscriptPath,
		SessionID:      payload.SessionID,
		Cwd:            payload.Cwd,
		ChangeSizeHint: payload.ChangeSizeHint,
	}

	hasMatch := func(transcriptPath string) bool {
		listed, err := c.ListCheckpoints()
		if err != nil {
			return false
		}
		for _, lc := range listed {
			if lc.Manifest.Transcript != nil && lc.Manifest.Transcript.OriginalPath == transcriptPath {
				return true
			}
		}
		return false
	}

	decision := hookpolicy.Evaluate(event, last, haveLast, c.Config.TierRuntime.AntiSpamSeconds, hookpolicy.Now(), hasMatch)

	if decision.CreateCheckpoint && hookpolicy.SuppressForSignificance(payload.ChangeSizeHint, c.Config.TierRuntime.MinChangeSize) {
		decision.CreateCheckpoint = false
	}

	if decision.CreateCheckpoint {
		_, err := c.CreateCheckpoint(controller.CreateCheckpointOptions{
			Description:    decision.Description,
			Force:          decision.Force,
			TranscriptPath: payload.TranscriptPath,
			AgentKind:      agentKind,
			SessionID:      payload.SessionID,
		})
		if err != nil {
			return err
		}
	}

	if decision.UpdateAntiSpam {
		state[payload.SessionID] = hookpolicy.Now()
		if err := hookpolicy.SaveState(c.StorageRoot, state); err != nil {
			return err
		}
	}

	for _, w := range decision.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), w)
	}
	return nil
}
