package controller

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewindhq/rewind/internal/store"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	root := t.TempDir()
	c, err := New(root)
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestCreateCheckpointNoChangesOnEmptyTree(t *testing.T) {
	c := newTestController(t)
	result, err := c.CreateCheckpoint(CreateCheckpointOptions{})
	require.NoError(t, err)
	assert.True(t, result.NoChanges)
	assert.Equal(t, "empty", result.Reason)
}

func TestCreateCheckpointWritesManifestAndHeadSignature(t *testing.T) {
	c := newTestController(t)
	writeFile(t, c.ProjectRoot, "main.go", "package main\n")

	result, err := c.CreateCheckpoint(CreateCheckpointOptions{Description: "first pass"})
	require.NoError(t, err)
	require.True(t, result.OK)
	assert.Equal(t, 1, result.FileCount)
	assert.False(t, result.HasTranscript)

	sig, ok, err := store.HeadSignature(c.StorageRoot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, result.Signature, sig)
}

func TestCreateCheckpointUnchangedWithoutForceIsNoOp(t *testing.T) {
	c := newTestController(t)
	writeFile(t, c.ProjectRoot, "main.go", "package main\n")

	first, err := c.CreateCheckpoint(CreateCheckpointOptions{})
	require.NoError(t, err)
	require.True(t, first.OK)

	second, err := c.CreateCheckpoint(CreateCheckpointOptions{})
	require.NoError(t, err)
	assert.True(t, second.NoChanges)
	assert.Equal(t, "unchanged", second.Reason)
}

func TestCreateCheckpointForceBypassesDetector(t *testing.T) {
	c := newTestController(t)
	writeFile(t, c.ProjectRoot, "main.go", "package main\n")

	_, err := c.CreateCheckpoint(CreateCheckpointOptions{})
	require.NoError(t, err)

	second, err := c.CreateCheckpoint(CreateCheckpointOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, second.OK)
}

func TestCreateCheckpointWithTranscriptAttachesBlockAndMetadata(t *testing.T) {
	c := newTestController(t)
	writeFile(t, c.ProjectRoot, "main.go", "package main\n")

	transcriptPath := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(transcriptPath, []byte(
		`{"uuid":"e1","role":"user"}`+"\n"+`{"uuid":"e2","role":"assistant"}`+"\n",
	), 0o644))

	result, err := c.CreateCheckpoint(CreateCheckpointOptions{
		TranscriptPath: transcriptPath,
		AgentKind:      "claude-code",
		SessionID:      "sess-1",
	})
	require.NoError(t, err)
	require.True(t, result.OK)
	assert.True(t, result.HasTranscript)

	meta, err := loadConversationMetadata(c.StorageRoot)
	require.NoError(t, err)
	rec, ok := meta[result.Name]
	require.True(t, ok)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "e2", rec.LastEventID)
}

func TestListCheckpointsReverseLexicographicJoinsMetadata(t *testing.T) {
	c := newTestController(t)
	writeFile(t, c.ProjectRoot, "a.txt", "one")
	_, err := c.CreateCheckpoint(CreateCheckpointOptions{Name: "alpha"})
	require.NoError(t, err)

	writeFile(t, c.ProjectRoot, "a.txt", "two")
	_, err = c.CreateCheckpoint(CreateCheckpointOptions{Name: "beta"})
	require.NoError(t, err)

	listed, err := c.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.True(t, listed[0].Manifest.Name > listed[1].Manifest.Name)
}

func TestMintNameDisambiguatesCollision(t *testing.T) {
	c := newTestController(t)
	writeFile(t, c.ProjectRoot, "a.txt", "one")
	first, err := c.CreateCheckpoint(CreateCheckpointOptions{Name: "save"})
	require.NoError(t, err)

	writeFile(t, c.ProjectRoot, "a.txt", "two")
	second, err := c.CreateCheckpoint(CreateCheckpointOptions{Name: "save", Force: true})
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
}
