package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewindhq/rewind/internal/config"
)

var claudeSchema = config.AgentSchema{EventIDField: []string{"uuid", "id"}, TitlePrefixPolicy: true}

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestComputeCursorLastLine(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"user","uuid":"u1","message":"hi"}`,
		`{"type":"assistant","uuid":"a1","message":"hello"}`,
	)

	cur, err := ComputeCursor(path, claudeSchema)
	require.NoError(t, err)
	assert.Equal(t, "a1", cur.LastEventID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), cur.ByteOffsetEnd)
}

func TestComputeCursorEmptyTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := ComputeCursor(path, claudeSchema)
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestComputeCursorMissingFile(t *testing.T) {
	_, err := ComputeCursor(filepath.Join(t.TempDir(), "nope.jsonl"), claudeSchema)
	assert.ErrorIs(t, err, ErrTranscriptUnavailable)
}

func TestFindBoundaryByUserPrompts(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"user","uuid":"u1"}`,
		`{"type":"assistant","uuid":"a1"}`,
		`{"type":"user","uuid":"u2"}`,
		`{"type":"assistant","uuid":"a2"}`,
	)

	cur, err := FindBoundaryByUserPrompts(path, 1, claudeSchema)
	require.NoError(t, err)
	assert.Equal(t, "u2", cur.LastEventID)

	cur2, err := FindBoundaryByUserPrompts(path, 2, claudeSchema)
	require.NoError(t, err)
	assert.Equal(t, "u1", cur2.LastEventID)
	assert.Less(t, cur2.ByteOffsetEnd, cur.ByteOffsetEnd)
}

func TestFindBoundaryByUserPromptsInsufficient(t *testing.T) {
	path := writeTranscript(t, `{"type":"user","uuid":"u1"}`)
	_, err := FindBoundaryByUserPrompts(path, 5, claudeSchema)
	assert.ErrorIs(t, err, ErrInsufficientPrompts)
}

func TestVerifyPrefixDetectsDivergence(t *testing.T) {
	path := writeTranscript(t, `{"type":"user","uuid":"u1"}`)
	cur, err := ComputeCursor(path, claudeSchema)
	require.NoError(t, err)

	ok, err := VerifyPrefix(path, cur)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`{"type":"user","uuid":"different"}`+"\n"), 0o600))
	ok, err = VerifyPrefix(path, cur)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPrefixMissingFile(t *testing.T) {
	ok, err := VerifyPrefix(filepath.Join(t.TempDir(), "nope.jsonl"), Cursor{ByteOffsetEnd: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}
