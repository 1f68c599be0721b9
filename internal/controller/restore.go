package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/rewindhq/rewind/internal/paths"
	"github.com/rewindhq/rewind/internal/store"
	"github.com/rewindhq/rewind/internal/transcript"
)

// RestoreMode selects which domain(s) a restore affects (spec.md §4.4).
type RestoreMode string

const (
	ModeCode    RestoreMode = "code"
	ModeContext RestoreMode = "context"
	ModeBoth    RestoreMode = "both"
	ModeFork    RestoreMode = "fork"
)

// RollbackOutcome reports what happened after a restore failure (spec.md §7).
type RollbackOutcome string

const (
	RollbackNotAttempted RollbackOutcome = "not_attempted"
	RollbackSucceeded    RollbackOutcome = "succeeded"
	RollbackFailed       RollbackOutcome = "failed"
)

// RestoreOptions are the inputs to Restore (spec.md §4.4).
type RestoreOptions struct {
	NameOrSelector string
	Mode           RestoreMode
	SkipBackup     bool
	DryRun         bool
	InPlace        bool // for mode == both: prefer rewrite_in_place over restore_transcript_from_snapshot
	AgentKind      string
}

// RestoreResult is the outcome of Restore (spec.md §4.4).
type RestoreResult struct {
	OK               bool
	RestoredName     string
	SafetyBackupName string
	ForkPath         string
	ActionRequired   string
	RollbackOutcome  RollbackOutcome
	DiffSummary      string

	// transcriptBackupPath is recorded internally when mutate() backs up
	// the pre-restore transcript, so Restore can fill in the restore
	// history entry. Not part of the public contract (spec.md §4.4 names
	// only {ok, restored_name, safety_backup_name, fork_path, action_required}).
	transcriptBackupPath string
}

// Restore implements the code/context/both/fork restore state machine
// (spec.md §4.4: Planning -> SafetyBackup -> Mutating -> Verifying -> Done,
// with RolledBack/Failed terminals).
func (c *Controller) Restore(opts RestoreOptions) (*RestoreResult, error) {
	target, err := store.ReadManifest(paths.SnapshotDir(c.StorageRoot, opts.NameOrSelector))
	if err != nil {
		return nil, fmt.Errorf("resolving checkpoint %q: %w", opts.NameOrSelector, err)
	}

	if opts.DryRun {
		return c.planRestore(target, opts)
	}

	result := &RestoreResult{RestoredName: target.Name, RollbackOutcome: RollbackNotAttempted}

	var safetyName string
	if !opts.SkipBackup {
		safety, serr := c.CreateCheckpoint(CreateCheckpointOptions{
			Name:           "emergency_backup",
			Force:          true,
			TranscriptPath: opts.transcriptPathForSafety(c),
			AgentKind:      opts.AgentKind,
		})
		if serr != nil {
			return nil, fmt.Errorf("taking safety backup: %w", serr)
		}
		safetyName = safety.Name
		result.SafetyBackupName = safetyName
	}

	if err := c.mutate(target, opts, result); err != nil {
		if safetyName == "" {
			result.OK = false
			return result, nil
		}
		outcome := c.rollback(safetyName)
		result.OK = false
		result.RollbackOutcome = outcome
		return result, nil
	}

	entry := RestoreHistoryEntry{
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		Checkpoint:           target.Name,
		BackupCheckpointName: safetyName,
	}
	if opts.Mode == ModeContext || opts.Mode == ModeBoth {
		entry.TranscriptBackupPath = result.transcriptBackupPath
	}
	if safetyName != "" {
		history, herr := loadRestoreHistory(c.StorageRoot)
		if herr == nil {
			history = append(history, entry)
			_ = saveRestoreHistory(c.StorageRoot, history)
		}
	}

	if opts.Mode == ModeCode || opts.Mode == ModeBoth {
		_ = store.SetHeadSignature(c.StorageRoot, target.Signature)
	}

	if opts.Mode == ModeContext || opts.Mode == ModeBoth {
		result.ActionRequired = "Reload the agent session for transcript changes to take effect."
	}

	result.OK = true
	return result, nil
}

func (opts RestoreOptions) transcriptPathForSafety(c *Controller) string {
	meta, err := loadConversationMetadata(c.StorageRoot)
	if err != nil {
		return ""
	}
	if rec, ok := meta[opts.NameOrSelector]; ok {
		return rec.TranscriptPath
	}
	return ""
}

// mutate performs steps 3-4 of restore (spec.md §4.4).
func (c *Controller) mutate(target *store.Manifest, opts RestoreOptions, result *RestoreResult) error {
	if opts.Mode == ModeCode || opts.Mode == ModeBoth {
		current, err := store.ScanWorkingTree(c.ProjectRoot, c.Matcher)
		if err != nil {
			return fmt.Errorf("scanning current working tree: %w", err)
		}
		targetSet := make(map[string]bool, len(target.Files))
		for _, f := range target.Files {
			targetSet[f] = true
		}
		for _, f := range current {
			if !targetSet[f] {
				if err := os.Remove(filepath.Join(c.ProjectRoot, f)); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing file absent from target: %w", err)
				}
			}
		}

		archivePath := filepath.Join(paths.SnapshotDir(c.StorageRoot, target.Name), paths.FilesArchiveName)
		if err := store.ExtractArchive(archivePath, c.ProjectRoot); err != nil {
			return fmt.Errorf("extracting archive: %w", err)
		}
	}

	if (opts.Mode == ModeContext || opts.Mode == ModeBoth || opts.Mode == ModeFork) && target.Transcript != nil {
		snapshotPath := filepath.Join(paths.SnapshotDir(c.StorageRoot, target.Name), paths.TranscriptSnapshotFileName)

		switch opts.Mode {
		case ModeFork:
			forksDir := filepath.Dir(target.Transcript.OriginalPath)
			schema := c.agentSchema(target.Transcript.Agent)
			forkPath, _, err := transcript.Fork(target.Transcript.OriginalPath, snapshotPath, forksDir, target.Transcript.Cursor, schema)
			if err != nil {
				return fmt.Errorf("forking transcript: %w", err)
			}
			result.ForkPath = forkPath

		case ModeContext:
			backupPath, err := c.backupTranscript(target.Transcript.OriginalPath)
			if err != nil {
				return fmt.Errorf("backing up transcript: %w", err)
			}
			result.transcriptBackupPath = backupPath
			if err := transcript.RewriteInPlace(target.Transcript.OriginalPath, target.Transcript.Cursor); err != nil {
				return fmt.Errorf("rewriting transcript in place: %w", err)
			}

		case ModeBoth:
			backupPath, err := c.backupTranscript(target.Transcript.OriginalPath)
			if err != nil {
				return fmt.Errorf("backing up transcript: %w", err)
			}
			result.transcriptBackupPath = backupPath

			if opts.InPlace {
				if err := transcript.RewriteInPlace(target.Transcript.OriginalPath, target.Transcript.Cursor); err != nil {
					return fmt.Errorf("rewriting transcript in place: %w", err)
				}
			} else {
				if err := transcript.RestoreTranscriptFromSnapshot(snapshotPath, target.Transcript.OriginalPath); err != nil {
					return fmt.Errorf("restoring transcript from snapshot: %w", err)
				}
			}
		}
	}

	return nil
}

// backupTranscript copies transcriptPath's current bytes into the storage
// root's transcript-backup directory before an in-place or snapshot-based
// overwrite, so undo_restore can recover the pre-restore transcript
// (spec.md §4.2 restore_transcript_from_snapshot's backup_dir parameter,
// spec.md §6.1 transcript-backup/).
func (c *Controller) backupTranscript(transcriptPath string) (string, error) {
	data, err := os.ReadFile(transcriptPath) //nolint:gosec // path supplied by manifest
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	backupPath := paths.TranscriptBackupPath(c.StorageRoot, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", err
	}
	return backupPath, nil
}

// rollback restores the safety checkpoint's code (and, best-effort,
// transcript) domain after a mid-restore failure (spec.md §4.4 step 7).
func (c *Controller) rollback(safetyName string) RollbackOutcome {
	safety, err := store.ReadManifest(paths.SnapshotDir(c.StorageRoot, safetyName))
	if err != nil {
		return RollbackFailed
	}

	current, err := store.ScanWorkingTree(c.ProjectRoot, c.Matcher)
	if err != nil {
		return RollbackFailed
	}
	safetySet := make(map[string]bool, len(safety.Files))
	for _, f := range safety.Files {
		safetySet[f] = true
	}
	for _, f := range current {
		if !safetySet[f] {
			if err := os.Remove(filepath.Join(c.ProjectRoot, f)); err != nil && !os.IsNotExist(err) {
				return RollbackFailed
			}
		}
	}

	archivePath := filepath.Join(paths.SnapshotDir(c.StorageRoot, safety.Name), paths.FilesArchiveName)
	if err := store.ExtractArchive(archivePath, c.ProjectRoot); err != nil {
		return RollbackFailed
	}
	if safety.Transcript != nil {
		snapshotPath := filepath.Join(paths.SnapshotDir(c.StorageRoot, safety.Name), paths.TranscriptSnapshotFileName)
		_ = transcript.RestoreTranscriptFromSnapshot(snapshotPath, safety.Transcript.OriginalPath)
	}
	return RollbackSucceeded
}

// planRestore produces a dry-run result with a human-readable diff summary,
// without mutating anything (spec.md §9 supplement: restore previews).
func (c *Controller) planRestore(target *store.Manifest, opts RestoreOptions) (*RestoreResult, error) {
	result := &RestoreResult{RestoredName: target.Name}

	if opts.Mode == ModeCode || opts.Mode == ModeBoth {
		current, err := store.ScanWorkingTree(c.ProjectRoot, c.Matcher)
		if err != nil {
			return nil, fmt.Errorf("scanning current working tree: %w", err)
		}
		result.DiffSummary = summarizeFileChanges(current, target.Files)
	}

	result.OK = true
	return result, nil
}

// summarizeFileChanges reports added/removed file counts using
// diffmatchpatch's line-diff machinery over the two path lists, favoring
// the teacher's existing diff tooling over a hand-rolled set comparison.
func summarizeFileChanges(current, target []string) string {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(joinLines(current), joinLines(target))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var added, removed int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added++
		case diffmatchpatch.DiffDelete:
			removed++
		}
	}
	return fmt.Sprintf("%d file(s) would be removed, %d file(s) would be added/overwritten", added, removed)
}

func joinLines(paths []string) string {
	out := ""
	for _, p := range paths {
		out += p + "\n"
	}
	return out
}

// UndoLastCheckpoint restores the newest non-safety-backup checkpoint
// (spec.md §4.4).
func (c *Controller) UndoLastCheckpoint(mode RestoreMode) (*RestoreResult, error) {
	newest, err := c.newestNonSafetyCheckpoint()
	if err != nil {
		return nil, err
	}
	return c.Restore(RestoreOptions{NameOrSelector: newest.Name, Mode: mode})
}

// UndoRestore reads the most recent restore history entry and restores its
// backup_checkpoint_name (code) and, if present, transcript_backup_path
// (context), then consumes that entry (spec.md §4.4, §8 idempotence).
func (c *Controller) UndoRestore() (*RestoreResult, error) {
	history, err := loadRestoreHistory(c.StorageRoot)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return &RestoreResult{OK: false}, ErrNoRestoreHistory
	}

	last := history[len(history)-1]
	mode := ModeCode
	if last.TranscriptBackupPath != "" {
		mode = ModeBoth
	}

	result, err := c.Restore(RestoreOptions{
		NameOrSelector: last.BackupCheckpointName,
		Mode:           mode,
		SkipBackup:     true,
	})
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return result, nil
	}

	history = history[:len(history)-1]
	if err := saveRestoreHistory(c.StorageRoot, history); err != nil {
		return nil, fmt.Errorf("consuming restore history entry: %w", err)
	}
	return result, nil
}

// RewindBackOptions selects how rewind_back restores the conversation
// domain (spec.md §4.4).
type RewindBackOptions struct {
	Both    bool
	InPlace bool
}

// RewindBack finds the boundary n user prompts back in transcriptPath and
// restores the conversation domain (and, if Both, the matching code
// checkpoint) to that boundary (spec.md §4.4).
func (c *Controller) RewindBack(transcriptPath string, n int, opts RewindBackOptions, agentKind string) (*RestoreResult, error) {
	schema := c.agentSchema(agentKind)
	boundary, err := transcript.FindBoundaryByUserPrompts(transcriptPath, n, schema)
	if err != nil {
		return nil, fmt.Errorf("finding prompt boundary: %w", err)
	}

	result := &RestoreResult{}

	if opts.Both {
		manifests, err := store.List(c.StorageRoot)
		if err != nil {
			return nil, err
		}
		var match *store.Manifest
		for _, m := range manifests {
			if m.Transcript == nil || m.Transcript.OriginalPath != transcriptPath {
				continue
			}
			if m.Transcript.Cursor.ByteOffsetEnd <= boundary.ByteOffsetEnd {
				match = m
				break
			}
		}
		if match == nil {
			return nil, fmt.Errorf("no code checkpoint found at or before the requested prompt boundary")
		}
		return c.Restore(RestoreOptions{
			NameOrSelector: match.Name,
			Mode:           ModeBoth,
			InPlace:        opts.InPlace,
			AgentKind:      agentKind,
		})
	}

	if opts.InPlace {
		if err := transcript.RewriteInPlace(transcriptPath, boundary); err != nil {
			return nil, fmt.Errorf("rewriting transcript in place: %w", err)
		}
		result.OK = true
		result.ActionRequired = "Reload the agent session for transcript changes to take effect."
		return result, nil
	}

	tmpSnapshot := filepath.Join(os.TempDir(), "rewind-boundary-"+target64(transcriptPath)+".jsonl.gz")
	if err := transcript.Snapshot(transcriptPath, tmpSnapshot, boundary); err != nil {
		return nil, fmt.Errorf("snapshotting boundary: %w", err)
	}
	defer os.Remove(tmpSnapshot)

	forkPath, _, err := transcript.Fork(transcriptPath, tmpSnapshot, filepath.Dir(transcriptPath), boundary, schema)
	if err != nil {
		return nil, fmt.Errorf("forking at boundary: %w", err)
	}
	result.OK = true
	result.ForkPath = forkPath
	return result, nil
}

func target64(s string) string {
	h := fmt.Sprintf("%x", []byte(s))
	if len(h) > 12 {
		h = h[:12]
	}
	return h
}
