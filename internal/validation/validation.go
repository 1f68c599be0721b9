// Package validation provides input validation for strings used to build
// on-disk paths. This package has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// pathSafeRegex matches alphanumeric characters, underscores, hyphens, and
// dots only. Used to validate tokens that will become path components.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// checkpointNameRegex validates the shape spec.md §3 mandates for
// checkpoint names: <slug>_<ISO-8601-basic>, e.g.
// "auto_before_edit_2025-11-16T14-23-45".
var checkpointNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateSessionID validates that a session ID doesn't contain path
// separators, preventing path traversal when it's used to build file paths
// (hook_state.json keys, conversation metadata records).
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid session ID %q: contains path separators", id)
	}
	return nil
}

// ValidateCheckpointName validates that a checkpoint name is safe to use as
// a directory name under snapshots/.
func ValidateCheckpointName(name string) error {
	if name == "" {
		return errors.New("checkpoint name cannot be empty")
	}
	if !checkpointNameRegex.MatchString(name) {
		return fmt.Errorf("invalid checkpoint name %q: must be alphanumeric with underscores/hyphens/dots only", name)
	}
	return nil
}

// ValidateForkID validates a random fork identifier used as a transcript
// filename component.
func ValidateForkID(id string) error {
	if id == "" {
		return errors.New("fork ID cannot be empty")
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid fork ID %q: must be alphanumeric with underscores/hyphens/dots only", id)
	}
	return nil
}

// ValidateRelPath rejects a project-relative path that escapes the project
// root (absolute paths, ".." components). Used before extracting an archive
// entry or deleting a working-tree file named by a manifest.
func ValidateRelPath(path string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("invalid path %q: absolute paths are not allowed", path)
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("invalid path %q: must not contain \"..\" components", path)
		}
	}
	return nil
}
