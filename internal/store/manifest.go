package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/jsonutil"
	"github.com/rewindhq/rewind/internal/paths"
)

// WriteManifest writes manifest.json into dir atomically (spec.md §4.1).
func WriteManifest(dir string, m *Manifest) error {
	return jsonutil.WriteAtomic(filepath.Join(dir, paths.ManifestFileName), m)
}

// ReadManifest reads dir/manifest.json. A parse failure is surfaced to the
// caller; list() is responsible for treating that as "absent" instead of
// fatal (spec.md §7 ManifestCorrupt).
func ReadManifest(dir string) (*Manifest, error) {
	var m Manifest
	if err := jsonutil.ReadJSON(filepath.Join(dir, paths.ManifestFileName), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns every parseable manifest under storageRoot/snapshots in
// reverse lexicographic order by name (spec.md §4.1). Directories with
// missing or unparseable manifests are skipped, not fatal.
func List(storageRoot string) ([]*Manifest, error) {
	snapshotsDir := filepath.Join(storageRoot, paths.SnapshotsDirName)
	entries, err := os.ReadDir(snapshotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var manifests []*Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := ReadManifest(filepath.Join(snapshotsDir, e.Name()))
		if err != nil {
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Name > manifests[j].Name
	})
	return manifests, nil
}

// safetyBackupPrefix names the emergency checkpoints the Controller takes
// before a restore (spec.md §4.4); they're exempt from count-based pruning.
const safetyBackupPrefix = "emergency_backup_"

// Prune deletes snapshots per policy and returns the deleted names
// (spec.md §4.1). Age-based pruning runs first and applies to every
// snapshot including safety backups; count-based pruning runs second and
// exempts safety backups.
func Prune(storageRoot string, policy config.Retention) ([]string, error) {
	manifests, err := List(storageRoot)
	if err != nil {
		return nil, err
	}

	var deleted []string
	remaining := manifests[:0:0]
	remaining = append(remaining, manifests...)

	if policy.MaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -policy.MaxAgeDays)
		var kept []*Manifest
		for _, m := range remaining {
			ts, err := time.Parse(time.RFC3339, m.Timestamp)
			if err == nil && ts.Before(cutoff) {
				if err := deleteSnapshot(storageRoot, m.Name); err != nil {
					return deleted, err
				}
				deleted = append(deleted, m.Name)
				continue
			}
			kept = append(kept, m)
		}
		remaining = kept
	}

	if policy.MaxCount > 0 {
		var prunable []*Manifest
		for _, m := range remaining {
			if !strings.HasPrefix(m.Name, safetyBackupPrefix) {
				prunable = append(prunable, m)
			}
		}
		// remaining is reverse-lexicographic (newest first); anything past
		// MaxCount non-safety entries is excess and oldest-named.
		if len(prunable) > policy.MaxCount {
			excess := prunable[policy.MaxCount:]
			for _, m := range excess {
				if err := deleteSnapshot(storageRoot, m.Name); err != nil {
					return deleted, err
				}
				deleted = append(deleted, m.Name)
			}
		}
	}

	return deleted, nil
}

func deleteSnapshot(storageRoot, name string) error {
	return os.RemoveAll(paths.SnapshotDir(storageRoot, name))
}

// HeadSignature reads storageRoot's persisted head signature. ok is false
// if none has been set yet.
func HeadSignature(storageRoot string) (sig string, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(storageRoot, paths.HeadSignatureFileName)) //nolint:gosec // path built from storage root
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// SetHeadSignature atomically overwrites storageRoot's head signature.
func SetHeadSignature(storageRoot, sig string) error {
	return jsonutil.WriteAtomicBytes(filepath.Join(storageRoot, paths.HeadSignatureFileName), []byte(sig))
}
