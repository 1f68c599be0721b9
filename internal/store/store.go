// Package store implements the Checkpoint Store (spec.md §4.1): it scans a
// project's working tree, computes change signatures, and persists code
// snapshots as compressed archives plus JSON manifests under a storage
// root. Grounded on the teacher's checkpoint/temporary.go write/list/prune
// shape, rebuilt around archive files instead of git commits.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rewindhq/rewind/internal/ignore"
	"github.com/rewindhq/rewind/internal/transcript"
)

// ErrScan is returned when the project root itself cannot be walked.
// Per-entry errors during the walk are logged by the caller and skipped.
var ErrScan = errors.New("scanning working tree failed")

// FileStat is one entry of a manifest's file_metadata (spec.md §6.2).
type FileStat struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	MtimeMS int64  `json:"mtime_ms"`
}

// TranscriptRef is the manifest's optional transcript block (spec.md §6.2).
type TranscriptRef struct {
	Agent        string            `json:"agent"`
	OriginalPath string            `json:"original_path"`
	Snapshot     string            `json:"snapshot"`
	Cursor       transcript.Cursor `json:"cursor"`
}

// Manifest is the JSON record persisted per checkpoint (spec.md §6.2).
type Manifest struct {
	Name         string         `json:"name"`
	Timestamp    string         `json:"timestamp"`
	Description  string         `json:"description"`
	Files        []string       `json:"files"`
	FileCount    int            `json:"file_count"`
	TotalSize    int64          `json:"total_size"`
	Signature    string         `json:"signature"`
	FileMetadata []FileStat     `json:"file_metadata"`
	Transcript   *TranscriptRef `json:"transcript,omitempty"`
}

// ScanWorkingTree walks projectRoot depth-first, applying matcher at both
// directory and file level, and returns the surviving paths sorted so
// downstream signatures are stable (spec.md §4.1).
func ScanWorkingTree(projectRoot string, matcher *ignore.Matcher) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
		if path == projectRoot {
			if err != nil {
				return fmt.Errorf("%w: %w", ErrScan, err)
			}
			return nil
		}
		rel, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			return fmt.Errorf("%w: %w", ErrScan, relErr)
		}
		if err != nil {
			// Per-entry error: skip this entry, keep walking siblings.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// StatFiles stats each project-relative path under projectRoot. Missing
// files contribute {0,0} rather than aborting the whole call, so a
// concurrently-writing agent can't fail an in-flight scan (spec.md §4.1).
func StatFiles(projectRoot string, relPaths []string) []FileStat {
	stats := make([]FileStat, len(relPaths))
	for i, rel := range relPaths {
		stats[i] = FileStat{Path: rel}
		info, err := os.Stat(filepath.Join(projectRoot, rel))
		if err != nil {
			continue
		}
		stats[i].Size = info.Size()
		stats[i].MtimeMS = info.ModTime().UnixMilli()
	}
	return stats
}

// ComputeSignature hashes the concatenation of each stat's path, decimal
// size, and decimal mtime, in the given order, with no separator bytes
// (spec.md §4.1 — collision resistance comes from the hash, not framing).
func ComputeSignature(stats []FileStat) string {
	h := sha256.New()
	for _, s := range stats {
		h.Write([]byte(s.Path))
		h.Write([]byte(strconv.FormatInt(s.Size, 10)))
		h.Write([]byte(strconv.FormatInt(s.MtimeMS, 10)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TotalSize sums a file_metadata list's sizes.
func TotalSize(stats []FileStat) int64 {
	var total int64
	for _, s := range stats {
		total += s.Size
	}
	return total
}
