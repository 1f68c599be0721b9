package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCheckpointThenListEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	out, err := runCmd(t, "checkpoint", "first save")
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	out, err = runCmd(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "first save")
}

func TestCheckpointOnEmptyTreeReportsNoChanges(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := runCmd(t, "checkpoint")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes")
}

func TestRestoreRoundTripViaCLI(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0o644))
	_, err := runCmd(t, "checkpoint", "--name", "a")
	require.NoError(t, err)

	c, err := controllerForCwd(nil)
	require.NoError(t, err)
	listed, err := c.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	name := listed[0].Manifest.Name

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v2"), 0o644))

	out, err := runCmd(t, "restore", name, "--mode", "code", "--skip-backup")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))
}

func TestVersionCommandPrintsVersion(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rewind")
}
