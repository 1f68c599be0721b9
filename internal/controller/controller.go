// Package controller implements the Controller (spec.md §4.4): the single
// public entry point composing the Checkpoint Store, Transcript Manager,
// and Change Detector into atomic, reversible operations. Grounded on the
// orchestration shape of the teacher's cmd/entire/cli/rewind.go /
// resume.go (safety-backup-then-mutate-then-verify sequencing).
package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/detect"
	"github.com/rewindhq/rewind/internal/ignore"
	"github.com/rewindhq/rewind/internal/paths"
	"github.com/rewindhq/rewind/internal/randid"
	"github.com/rewindhq/rewind/internal/store"
	"github.com/rewindhq/rewind/internal/transcript"
)

// ErrProjectRootInvalid is returned by NewController for an invalid root
// (spec.md §7).
var ErrProjectRootInvalid = paths.ErrProjectRootInvalid

// ErrNoRestoreHistory is returned by UndoRestore when there is nothing to
// undo (spec.md §8 idempotence scenario).
var ErrNoRestoreHistory = errors.New("no restore history entry")

func isNotExist(err error) bool { return err != nil && os.IsNotExist(err) }

// Controller is the single entry point for a given project's checkpoint
// lifecycle.
type Controller struct {
	ProjectRoot string
	StorageRoot string
	Config      *config.Config
	Matcher     *ignore.Matcher
}

// New resolves projectRoot, loads configuration, and derives the storage
// root (project-local or global, per the loaded config).
func New(projectRoot string) (*Controller, error) {
	root, err := paths.ResolveProjectRoot(projectRoot)
	if err != nil {
		return nil, err
	}

	// Storage mode is read from whichever root applies first; project
	// mode is checked before config is loaded since config itself lives
	// under the storage root.
	storageRoot, err := paths.StorageRoot(root, paths.ModeProject)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(storageRoot)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.StorageMode == paths.ModeGlobal {
		storageRoot, err = paths.StorageRoot(root, paths.ModeGlobal)
		if err != nil {
			return nil, err
		}
	}

	return &Controller{
		ProjectRoot: root,
		StorageRoot: storageRoot,
		Config:      cfg,
		Matcher:     ignore.New(root, cfg.Ignore),
	}, nil
}

// CreateCheckpointOptions are the inputs to CreateCheckpoint (spec.md §4.4).
type CreateCheckpointOptions struct {
	Description    string
	Name           string
	Force          bool
	TranscriptPath string
	AgentKind      string
	SessionID      string
	UserPrompt     string
}

// CreateCheckpointResult is the outcome of CreateCheckpoint (spec.md §4.4).
type CreateCheckpointResult struct {
	OK            bool
	NoChanges     bool
	Reason        string
	Name          string
	Signature     string
	FileCount     int
	TotalBytes    int64
	HasTranscript bool
}

// CreateCheckpoint performs steps 1-11 of spec.md §4.4.
func (c *Controller) CreateCheckpoint(opts CreateCheckpointOptions) (*CreateCheckpointResult, error) {
	files, err := store.ScanWorkingTree(c.ProjectRoot, c.Matcher)
	if err != nil {
		return nil, fmt.Errorf("scanning working tree: %w", err)
	}
	if len(files) == 0 {
		return &CreateCheckpointResult{NoChanges: true, Reason: "empty"}, nil
	}

	stats := store.StatFiles(c.ProjectRoot, files)
	signature := store.ComputeSignature(stats)

	if !opts.Force {
		headSig, ok, err := store.HeadSignature(c.StorageRoot)
		if err != nil {
			return nil, fmt.Errorf("reading head signature: %w", err)
		}
		if detect.Compare(signature, headSig, ok) == detect.Unchanged {
			return &CreateCheckpointResult{NoChanges: true, Reason: "unchanged"}, nil
		}
	}

	name, err := c.mintName(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("minting checkpoint name: %w", err)
	}

	dir := paths.SnapshotDir(c.StorageRoot, name)
	manifest := &store.Manifest{
		Name:         name,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Description:  opts.Description,
		Files:        files,
		FileCount:    len(files),
		TotalSize:    store.TotalSize(stats),
		Signature:    signature,
		FileMetadata: stats,
	}

	if err := store.CreateArchive(c.ProjectRoot, files, filepath.Join(dir, paths.FilesArchiveName)); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	var lastEventID string
	if opts.TranscriptPath != "" {
		schema := c.agentSchema(opts.AgentKind)
		cur, cerr := transcript.ComputeCursor(opts.TranscriptPath, schema)
		if cerr == nil {
			snapshotPath := filepath.Join(dir, paths.TranscriptSnapshotFileName)
			if serr := transcript.Snapshot(opts.TranscriptPath, snapshotPath, cur); serr == nil {
				manifest.Transcript = &store.TranscriptRef{
					Agent:        opts.AgentKind,
					OriginalPath: opts.TranscriptPath,
					Snapshot:     paths.TranscriptSnapshotFileName,
					Cursor:       cur,
				}
				lastEventID = cur.LastEventID
			}
		}
		// Failure to compute/snapshot the transcript is non-fatal; the
		// checkpoint proceeds as code-only (spec.md §4.2 TranscriptUnavailable).
	}

	if err := store.WriteManifest(dir, manifest); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	if manifest.Transcript != nil {
		meta, merr := loadConversationMetadata(c.StorageRoot)
		if merr == nil {
			meta[name] = ConversationMetadataRecord{
				AgentKind:      opts.AgentKind,
				SessionID:      opts.SessionID,
				TranscriptPath: opts.TranscriptPath,
				LastEventID:    lastEventID,
				UserPrompt:     opts.UserPrompt,
			}
			_ = saveConversationMetadata(c.StorageRoot, meta) // best-effort, spec.md §4.4 step 8
		}
	}

	if err := store.SetHeadSignature(c.StorageRoot, signature); err != nil {
		return nil, fmt.Errorf("updating head signature: %w", err)
	}

	_, _ = store.Prune(c.StorageRoot, c.Config.Retention) // best-effort per spec.md §7 propagation policy

	return &CreateCheckpointResult{
		OK:            true,
		Name:          name,
		Signature:     signature,
		FileCount:     len(files),
		TotalBytes:    manifest.TotalSize,
		HasTranscript: manifest.Transcript != nil,
	}, nil
}

// mintName slugifies hint (or uses "checkpoint"), suffixes an ISO-8601
// basic UTC timestamp, and retries with a disambiguator if the name
// collides on disk (spec.md §3 invariant 1, §4.4 step 5).
func (c *Controller) mintName(hint string) (string, error) {
	slug := slugify(hint)
	if slug == "" {
		slug = "checkpoint"
	}
	ts := time.Now().UTC().Format("2006-01-02T15-04-05")
	name := fmt.Sprintf("%s_%s", slug, ts)

	for i := 0; i < 10; i++ {
		if _, err := os.Stat(paths.SnapshotDir(c.StorageRoot, name)); os.IsNotExist(err) {
			return name, nil
		}
		name = fmt.Sprintf("%s_%s-%s", slug, ts, randid.Disambiguator())
	}
	return "", fmt.Errorf("could not mint a unique checkpoint name after retries")
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func (c *Controller) agentSchema(agentKind string) config.AgentSchema {
	if s, ok := c.Config.AgentSchemas[agentKind]; ok {
		return s
	}
	return c.Config.AgentSchemas["generic"]
}

// ListedCheckpoint pairs a manifest with its conversation metadata, if any
// (spec.md §4.4 list_checkpoints).
type ListedCheckpoint struct {
	Manifest *store.Manifest
	Metadata *ConversationMetadataRecord
}

// ListCheckpoints returns every checkpoint, newest first, joined with
// conversation metadata.
func (c *Controller) ListCheckpoints() ([]ListedCheckpoint, error) {
	manifests, err := store.List(c.StorageRoot)
	if err != nil {
		return nil, err
	}
	meta, err := loadConversationMetadata(c.StorageRoot)
	if err != nil {
		return nil, err
	}

	out := make([]ListedCheckpoint, len(manifests))
	for i, m := range manifests {
		lc := ListedCheckpoint{Manifest: m}
		if rec, ok := meta[m.Name]; ok {
			recCopy := rec
			lc.Metadata = &recCopy
		}
		out[i] = lc
	}
	return out, nil
}

// Gc delegates to the Store's prune.
func (c *Controller) Gc() ([]string, error) {
	return store.Prune(c.StorageRoot, c.Config.Retention)
}

// newestNonSafetyCheckpoint returns the newest checkpoint whose name does
// not carry the safety-backup prefix (spec.md §4.4 undo_last_checkpoint).
func (c *Controller) newestNonSafetyCheckpoint() (*store.Manifest, error) {
	manifests, err := store.List(c.StorageRoot)
	if err != nil {
		return nil, err
	}
	for _, m := range manifests {
		if !strings.HasPrefix(m.Name, safetyBackupPrefix) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no checkpoints exist")
}

const safetyBackupPrefix = "emergency_backup_"
