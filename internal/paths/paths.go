// Package paths resolves the project root and storage root for a Rewind
// project, and defines the stable on-disk layout under the storage root
// (spec.md §6.1).
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// StorageMode selects where a project's Rewind data lives.
type StorageMode string

const (
	// ModeProject stores data at <project_root>/.agent/rewind/.
	ModeProject StorageMode = "project"
	// ModeGlobal stores data at <home>/.rewind/storage/<basename>_<hash>/.
	ModeGlobal StorageMode = "global"
)

// Directory and file names within a storage root, stable across versions
// (spec.md §6.1).
const (
	ConfigFileName               = "config.json"
	HeadSignatureFileName        = "head_signature"
	HookStateFileName            = "hook_state.json"
	RestoreHistoryFileName       = "restore_history.json"
	ConversationMetadataFileName = "conversation_metadata.json"
	ChangelogFileName            = "changelog.json"
	SnapshotsDirName             = "snapshots"
	TranscriptBackupDirName      = "transcript-backup"

	ManifestFileName           = "manifest.json"
	FilesArchiveName           = "files.tar.gz"
	TranscriptSnapshotFileName = "transcript.jsonl.gz"
)

// ErrProjectRootInvalid is returned when the project root does not exist or
// equals the user's home directory (spec.md §4.1, §7).
var ErrProjectRootInvalid = errors.New("project root invalid")

// ResolveProjectRoot validates and returns the absolute project root.
// Refuses a root that doesn't exist or that equals $HOME — scanning the
// entire home directory as "the project" is never intentional.
func ResolveProjectRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProjectRootInvalid, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s does not exist", ErrProjectRootInvalid, abs)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		homeAbs, _ := filepath.Abs(home)
		if homeAbs == abs {
			return "", fmt.Errorf("%w: project root must not be the home directory", ErrProjectRootInvalid)
		}
	}
	return abs, nil
}

// StorageRoot derives the storage root for a project under the given mode.
func StorageRoot(projectRoot string, mode StorageMode) (string, error) {
	switch mode {
	case ModeProject, "":
		return filepath.Join(projectRoot, ".agent", "rewind"), nil
	case ModeGlobal:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory for global storage: %w", err)
		}
		sum := sha256.Sum256([]byte(projectRoot))
		key := fmt.Sprintf("%s_%s", filepath.Base(projectRoot), hex.EncodeToString(sum[:])[:12])
		return filepath.Join(home, ".rewind", "storage", key), nil
	default:
		return "", fmt.Errorf("unknown storage mode %q", mode)
	}
}

// SnapshotDir returns the directory holding a single checkpoint's manifest
// and archive.
func SnapshotDir(storageRoot, name string) string {
	return filepath.Join(storageRoot, SnapshotsDirName, name)
}

// TranscriptBackupPath returns the path used to back up a transcript before
// an in-place rewrite, keyed by a caller-supplied timestamp string
// (spec.md §4.2 rewrite_in_place).
func TranscriptBackupPath(storageRoot, timestamp string) string {
	return filepath.Join(storageRoot, TranscriptBackupDirName, timestamp+".jsonl")
}
