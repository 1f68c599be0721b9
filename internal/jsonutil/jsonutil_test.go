package jsonutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalIndentWithNewline(t *testing.T) {
	data, err := MarshalIndentWithNewline(map[string]string{"a": "b"}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func TestWriteAtomicAndReadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "manifest.json")

	type payload struct {
		Name string `json:"name"`
	}

	require.NoError(t, WriteAtomic(path, payload{Name: "auto_before_edit"}))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "auto_before_edit", got.Name)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp file should not survive a successful write")
	}
}

func TestReadJSONMissing(t *testing.T) {
	var v map[string]any
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &v)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
