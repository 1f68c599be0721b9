package store

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/rewindhq/rewind/internal/validation"
)

// CreateArchive writes a gzip-compressed tar of exactly files (project-root
// relative), staged in a temp file in outPath's directory and renamed into
// place atomically against concurrent readers (spec.md §4.1).
func CreateArchive(projectRoot string, files []string, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".tmp-archive-*")
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeArchive(tmp, projectRoot, files); err != nil {
		tmp.Close()
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp archive: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("setting archive permissions: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("renaming archive into place: %w", err)
	}
	return nil
}

func writeArchive(w io.Writer, projectRoot string, files []string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, rel := range files {
		fullPath := filepath.Join(projectRoot, rel)
		info, err := os.Lstat(fullPath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("building tar header for %q: %w", rel, err)
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing tar header for %q: %w", rel, err)
		}

		f, err := os.Open(fullPath) //nolint:gosec // path built from a scanned, ignore-filtered project tree
		if err != nil {
			return fmt.Errorf("opening %q: %w", rel, err)
		}
		_, copyErr := io.Copy(tw, f)
		f.Close()
		if copyErr != nil {
			return fmt.Errorf("copying %q into archive: %w", rel, copyErr)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	return gz.Close()
}

// ExtractArchive extracts archivePath's contents into projectRoot,
// overwriting existing files. Any entry whose path would escape
// projectRoot (absolute path, or a ".." component) is refused and aborts
// the whole extraction before any file is written (spec.md §4.1, §7
// ArchiveError / path-escape is fatal).
func ExtractArchive(archivePath, projectRoot string) error {
	f, err := os.Open(archivePath) //nolint:gosec // path built from storage root
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	type pending struct {
		hdr  *tar.Header
		data []byte
	}
	var entries []pending

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := validation.ValidateRelPath(hdr.Name); err != nil {
			return fmt.Errorf("refusing archive entry %q: %w", hdr.Name, err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("reading archive entry %q: %w", hdr.Name, err)
		}
		entries = append(entries, pending{hdr: hdr, data: data})
	}

	// Validated entirely before any write, so a bad archive never leaves a
	// partially-extracted working tree.
	for _, e := range entries {
		destPath := filepath.Join(projectRoot, filepath.FromSlash(e.hdr.Name))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("creating extraction dir: %w", err)
		}
		mode := e.hdr.FileInfo().Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(destPath, e.data, mode); err != nil {
			return fmt.Errorf("writing extracted file %q: %w", e.hdr.Name, err)
		}
	}
	return nil
}
