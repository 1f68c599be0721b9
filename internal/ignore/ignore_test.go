package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewindhq/rewind/internal/config"
)

func TestMatchExplicitPatterns(t *testing.T) {
	m := New(t.TempDir(), config.Ignore{Patterns: []string{".git/", "node_modules/"}})
	assert.True(t, m.Match(".git", true))
	assert.True(t, m.Match("node_modules", true))
	assert.False(t, m.Match("src/main.go", false))
}

func TestMatchHonorsProjectGitignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\nbuild/\n"), 0o600))

	m := New(dir, config.Ignore{HonorGitignore: true})
	assert.True(t, m.Match("debug.log", false))
	assert.True(t, m.Match("build", true))
	assert.False(t, m.Match("main.go", false))
}

func TestForceIncludeOverridesIgnore(t *testing.T) {
	m := New(t.TempDir(), config.Ignore{
		Patterns:     []string{"*.log"},
		ForceInclude: []string{"keep.log"},
	})
	assert.True(t, m.Match("other.log", false))
	assert.False(t, m.Match("keep.log", false))
}
