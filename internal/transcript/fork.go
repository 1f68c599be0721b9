package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/randid"
)

// forkTitleMarker prefixes a fork's title field, when the agent schema
// enables it, so the agent's own session list visibly distinguishes a
// rewound timeline from the original (spec.md §1, §9).
const forkTitleMarker = "[Fork] "

// Snapshot copies the first cursor.ByteOffsetEnd bytes of transcriptPath
// into a gzip-compressed file at snapshotPath, atomically (spec.md §4.2).
func Snapshot(transcriptPath, snapshotPath string, cursor Cursor) error {
	src, err := os.Open(transcriptPath) //nolint:gosec // path supplied by hook adapter / manifest
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTranscriptUnavailable, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(snapshotPath), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(snapshotPath), ".tmp-transcript-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	gz := gzip.NewWriter(tmp)
	if _, err := io.Copy(gz, io.NewSectionReader(src, 0, cursor.ByteOffsetEnd)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing transcript snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("closing gzip writer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("setting snapshot permissions: %w", err)
	}
	if err := os.Rename(tmpPath, snapshotPath); err != nil {
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// Fork materialises a new, independently-extendable transcript file
// containing exactly the bytes covered by cursor, and returns its path
// plus the fork id used to name it. It tries the fast "copy-truncate" path
// first (verify the live transcript's prefix still matches cursor, then
// copy the covered bytes directly); if the live transcript has moved on so
// far that cursor no longer describes a valid prefix of it, it falls back
// to materialising from snapshotPath (spec.md §4.2).
func Fork(transcriptPath, snapshotPath, forksDir string, cursor Cursor, schema config.AgentSchema) (forkPath string, forkID string, err error) {
	forkID = randid.ForkID()
	forkPath = filepath.Join(forksDir, forkID+".jsonl")

	if err := os.MkdirAll(forksDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating forks dir: %w", err)
	}

	materialised := false
	if ok, verr := VerifyPrefix(transcriptPath, cursor); verr == nil && ok {
		if err := copyRange(transcriptPath, forkPath, cursor.ByteOffsetEnd); err == nil {
			materialised = true
		}
	}
	if !materialised {
		if err := materialiseFromSnapshot(snapshotPath, forkPath); err != nil {
			return "", "", fmt.Errorf("materialising fork from snapshot: %w", err)
		}
	}

	if schema.TitlePrefixPolicy {
		// Best-effort only: failure to rewrite the title never invalidates
		// the fork (spec.md §4.2).
		_ = rewriteForkTitle(forkPath)
	}

	return forkPath, forkID, nil
}

// rewriteForkTitle parses only the first line of forkPath and, if it
// carries a string-valued "title" field, prefixes forkTitleMarker onto it.
func rewriteForkTitle(forkPath string) error {
	data, err := os.ReadFile(forkPath) //nolint:gosec // path minted by this package
	if err != nil {
		return err
	}

	nl := bytes.IndexByte(data, '\n')
	firstLine := data
	rest := []byte(nil)
	if nl >= 0 {
		firstLine = data[:nl]
		rest = data[nl:]
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(firstLine, &fields); err != nil {
		return err
	}
	raw, ok := fields["title"]
	if !ok {
		return nil
	}
	var title string
	if err := json.Unmarshal(raw, &title); err != nil || title == "" {
		return nil
	}
	if bytes.HasPrefix([]byte(title), []byte(forkTitleMarker)) {
		return nil
	}
	newTitle, err := json.Marshal(forkTitleMarker + title)
	if err != nil {
		return err
	}
	fields["title"] = newTitle

	newFirstLine, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Write(newFirstLine)
	buf.Write(rest)

	tmp, err := os.CreateTemp(filepath.Dir(forkPath), ".tmp-fork-title-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, forkPath)
}

// copyRange atomically writes the first n bytes of srcPath to dstPath.
func copyRange(srcPath, dstPath string, n int64) error {
	src, err := os.Open(srcPath) //nolint:gosec // path supplied by hook adapter / manifest
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".tmp-fork-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, io.NewSectionReader(src, 0, n)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, dstPath)
}

// materialiseFromSnapshot decompresses snapshotPath into dstPath.
func materialiseFromSnapshot(snapshotPath, dstPath string) error {
	src, err := os.Open(snapshotPath) //nolint:gosec // path supplied by controller
	if err != nil {
		return fmt.Errorf("opening transcript snapshot: %w", err)
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("opening gzip reader: %w", err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".tmp-fork-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, gz); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, dstPath)
}

// RewriteInPlace truncates transcriptPath to cursor's prefix, in place.
// Used by the "both" and "context" restore modes when the agent supports
// resuming from a truncated transcript directly rather than forking
// (spec.md §4.4).
func RewriteInPlace(transcriptPath string, cursor Cursor) error {
	ok, err := VerifyPrefix(transcriptPath, cursor)
	if err != nil {
		return fmt.Errorf("verifying transcript prefix: %w", err)
	}
	if !ok {
		return fmt.Errorf("transcript prefix no longer matches cursor, refusing in-place rewrite")
	}

	tmpPath := transcriptPath + ".tmp-rewrite"
	if err := copyRange(transcriptPath, tmpPath, cursor.ByteOffsetEnd); err != nil {
		return fmt.Errorf("copying truncated transcript: %w", err)
	}
	return os.Rename(tmpPath, transcriptPath)
}

// RestoreTranscriptFromSnapshot restores transcriptPath entirely from
// snapshotPath, used by undo_restore and rewind_back when a prior in-place
// rewrite needs reverting (spec.md §4.4).
func RestoreTranscriptFromSnapshot(snapshotPath, transcriptPath string) error {
	return materialiseFromSnapshot(snapshotPath, transcriptPath)
}
