// Package ignore resolves the ignore-matcher the Checkpoint Store's
// scan_working_tree consumes (spec.md §4.1). It reuses go-git's gitignore
// pattern package as a standalone library — no git repository is required,
// matching this engine's view of the working tree as plain files rather
// than a git worktree.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/rewindhq/rewind/internal/config"
)

// Matcher decides whether a project-relative path should be skipped during
// a scan.
type Matcher struct {
	patterns     []gitignore.Pattern
	forceInclude map[string]bool
}

// New builds a Matcher from the resolved ignore configuration. If
// cfg.HonorGitignore is set, patterns from projectRoot/.gitignore are loaded
// in addition to cfg.Patterns and cfg.Additional.
func New(projectRoot string, cfg config.Ignore) *Matcher {
	m := &Matcher{forceInclude: map[string]bool{}}

	addLines := func(lines []string) {
		for _, line := range lines {
			if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}
			m.patterns = append(m.patterns, gitignore.ParsePattern(line, nil))
		}
	}

	addLines(cfg.Patterns)
	addLines(cfg.Additional)

	if cfg.HonorGitignore {
		if lines, err := readLines(filepath.Join(projectRoot, ".gitignore")); err == nil {
			addLines(lines)
		}
	}

	for _, p := range cfg.ForceInclude {
		m.forceInclude[filepath.ToSlash(p)] = true
	}

	return m
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path built from project root
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Match reports whether relPath (project-relative, slash-separated) should
// be skipped. isDir indicates whether relPath names a directory, matching
// gitignore's directory-only pattern semantics.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if m.forceInclude[relPath] {
		return false
	}
	parts := strings.Split(relPath, "/")
	matcher := gitignore.NewMatcher(m.patterns)
	return matcher.Match(parts, isDir)
}
