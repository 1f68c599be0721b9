// Package hookpolicy implements the Hook Policy (spec.md §4.5): it applies
// per-event rules (anti-spam, significance, structural-always-save) and
// emits a checkpoint decision to the Controller. Grounded on the teacher's
// hooks_cmd.go / hook_registry.go dispatch-by-subcommand shape and the tool
// name constants in agent/claudecode/types.go, minus all
// git/settings-installation logic (out of scope, spec.md §1).
package hookpolicy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/jsonutil"
	"github.com/rewindhq/rewind/internal/paths"
)

// EventKind enumerates the normalised hook events the core accepts
// (spec.md §4.5).
type EventKind string

const (
	SessionStart     EventKind = "session_start"
	PreToolUse       EventKind = "pre_tool_use"
	PostToolUse      EventKind = "post_tool_use"
	Stop             EventKind = "stop"
	SubagentStart    EventKind = "subagent_start"
	SubagentStop     EventKind = "subagent_stop"
	UserPromptSubmit EventKind = "user_prompt_submit"
	SessionResume    EventKind = "session_resume"
	SessionClear     EventKind = "session_clear"
	SessionCompact   EventKind = "session_compact"
)

// fileModifyingTools lists PreToolUse tool names that count as volumetric
// (grounded on claudecode.FileModificationTools).
var fileModifyingTools = map[string]bool{
	"Write":           true,
	"Edit":            true,
	"NotebookEdit":    true,
	"mcp__acp__Write": true,
	"mcp__acp__Edit":  true,
}

// shellTools lists PostToolUse tool names that count as volumetric.
var shellTools = map[string]bool{
	"Bash": true,
}

var structuralKinds = map[EventKind]bool{
	SessionStart:  true,
	Stop:          true,
	SubagentStart: true,
	SubagentStop:  true,
}

var resumeKinds = map[EventKind]bool{
	SessionResume:  true,
	SessionClear:   true,
	SessionCompact: true,
}

// Event is the normalised hook event the policy evaluates (spec.md §4.5).
type Event struct {
	Kind           EventKind
	ToolName       string
	TranscriptPath string
	SessionID      string
	Cwd            string
	// ChangeSizeHint is an optional, opaquely-forwarded byte count inferred
	// by the hook adapter from the tool input (spec.md §9 "significance
	// detection"). Zero means no hint was provided.
	ChangeSizeHint int
}

// Decision is the policy's verdict for one event (spec.md §4.5).
type Decision struct {
	CreateCheckpoint bool
	Description      string
	Force            bool
	UpdateAntiSpam   bool
	Warnings         []string
}

func (e Event) isVolumetric() bool {
	switch e.Kind {
	case PreToolUse:
		return fileModifyingTools[e.ToolName]
	case PostToolUse:
		return shellTools[e.ToolName]
	default:
		return false
	}
}

// HasTranscriptMatch reports whether any known checkpoint already carries
// transcript metadata pointing at transcriptPath; resume-class events use
// this to avoid proposing a redundant baseline checkpoint.
type HasTranscriptMatch func(transcriptPath string) bool

// Evaluate applies the rules of spec.md §4.5 given the current anti-spam
// state (lastCheckpointUnix, ok) for e.SessionID.
func Evaluate(e Event, lastCheckpointUnix int64, haveLast bool, antiSpamSeconds int, nowUnix int64, hasMatch HasTranscriptMatch) Decision {
	if structuralKinds[e.Kind] {
		return Decision{CreateCheckpoint: true, Description: string(e.Kind), Force: true}
	}

	if resumeKinds[e.Kind] {
		if hasMatch != nil && hasMatch(e.TranscriptPath) {
			return Decision{CreateCheckpoint: false, Description: string(e.Kind), UpdateAntiSpam: true}
		}
		return Decision{CreateCheckpoint: true, Description: string(e.Kind), Force: true, UpdateAntiSpam: true}
	}

	if e.isVolumetric() {
		if haveLast && nowUnix-lastCheckpointUnix < int64(antiSpamSeconds) {
			return Decision{CreateCheckpoint: false, Description: string(e.Kind)}
		}
		return Decision{CreateCheckpoint: true, Description: fmt.Sprintf("%s: %s", e.Kind, e.ToolName), UpdateAntiSpam: true}
	}

	return Decision{CreateCheckpoint: false, Description: string(e.Kind)}
}

// SuppressForSignificance reports whether a volumetric checkpoint proposal
// should be suppressed because the hint change size is below threshold.
// Threshold 0 disables significance detection (spec.md §9: reserved slot,
// no required signal).
func SuppressForSignificance(hintBytes, minChangeSize int) bool {
	if minChangeSize <= 0 {
		return false
	}
	return hintBytes > 0 && hintBytes < minChangeSize
}

// State is the persisted anti-spam map {session_id: last_checkpoint_unix}
// (spec.md §6.1 hook_state.json).
type State map[string]int64

// LoadState reads storageRoot/hook_state.json, returning an empty map if
// absent.
func LoadState(storageRoot string) (State, error) {
	s := State{}
	path := filepath.Join(storageRoot, paths.HookStateFileName)
	if err := jsonutil.ReadJSON(path, &s); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading hook state: %w", err)
	}
	return s, nil
}

// SaveState atomically persists s.
func SaveState(storageRoot string, s State) error {
	return jsonutil.WriteAtomic(filepath.Join(storageRoot, paths.HookStateFileName), s)
}

// Now is a seam for tests; production code calls time.Now().Unix().
func Now() int64 { return time.Now().Unix() }
