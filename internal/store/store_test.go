package store

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/ignore"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
}

func TestScanWorkingTreeSortedAndIgnoreAware(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "node_modules/pkg/index.js", "ignored")

	m := ignore.New(root, config.Ignore{Patterns: []string{"node_modules/"}})
	files, err := ScanWorkingTree(root, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, files)
}

func TestComputeSignatureDeterministic(t *testing.T) {
	stats := []FileStat{{Path: "a.txt", Size: 3, MtimeMS: 1000}}
	sig1 := ComputeSignature(stats)
	sig2 := ComputeSignature(stats)
	assert.Equal(t, sig1, sig2)

	stats[0].Size = 4
	assert.NotEqual(t, sig1, ComputeSignature(stats))
}

func TestStatFilesMissingFileIsZeroed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "present.txt", "hi\n")

	stats := StatFiles(root, []string{"present.txt", "missing.txt"})
	require.Len(t, stats, 2)
	assert.Equal(t, int64(3), stats[0].Size)
	assert.Equal(t, int64(0), stats[1].Size)
	assert.Equal(t, int64(0), stats[1].MtimeMS)
}

func TestCreateAndExtractArchiveRoundTrips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/b.txt", "world")

	archivePath := filepath.Join(t.TempDir(), "files.tar.gz")
	require.NoError(t, CreateArchive(root, []string{"a.txt", "sub/b.txt"}, archivePath))

	dest := t.TempDir()
	require.NoError(t, ExtractArchive(archivePath, dest))

	a, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(a))

	b, err := os.ReadFile(filepath.Join(dest, "sub/b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(b))
}

func writeMaliciousArchive(t *testing.T, entryName string) string {
	t.Helper()
	archivePath := filepath.Join(t.TempDir(), "malicious.tar.gz")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: entryName,
		Mode: 0o600,
		Size: int64(len("pwned")),
	}))
	_, err = tw.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return archivePath
}

func TestExtractArchiveRefusesPathEscape(t *testing.T) {
	for _, entryName := range []string{"../escaped.txt", "/absolute.txt", "a/../../escaped.txt"} {
		archivePath := writeMaliciousArchive(t, entryName)
		dest := t.TempDir()
		err := ExtractArchive(archivePath, dest)
		assert.Error(t, err, "entry %q should be refused", entryName)
	}
}

func TestCreateArchiveOfValidFilesExtractsCleanly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	archivePath := filepath.Join(t.TempDir(), "files.tar.gz")
	require.NoError(t, CreateArchive(root, []string{"a.txt"}, archivePath))

	dest := t.TempDir()
	assert.NoError(t, ExtractArchive(archivePath, dest))
}

func TestWriteReadManifestRoundTrips(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Name: "checkpoint_1", Timestamp: time.Now().UTC().Format(time.RFC3339), Files: []string{"a.txt"}}
	require.NoError(t, WriteManifest(dir, m))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, m.Name, got.Name)
	assert.Equal(t, m.Files, got.Files)
}

func TestListReturnsReverseLexicographicSkippingCorrupt(t *testing.T) {
	storageRoot := t.TempDir()
	for _, name := range []string{"checkpoint_a", "checkpoint_b", "checkpoint_c"} {
		dir := filepath.Join(storageRoot, "snapshots", name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, WriteManifest(dir, &Manifest{Name: name, Timestamp: time.Now().UTC().Format(time.RFC3339)}))
	}
	corruptDir := filepath.Join(storageRoot, "snapshots", "checkpoint_corrupt")
	require.NoError(t, os.MkdirAll(corruptDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(corruptDir, "manifest.json"), []byte("not json"), 0o600))

	manifests, err := List(storageRoot)
	require.NoError(t, err)
	require.Len(t, manifests, 3)
	assert.Equal(t, "checkpoint_c", manifests[0].Name)
	assert.Equal(t, "checkpoint_b", manifests[1].Name)
	assert.Equal(t, "checkpoint_a", manifests[2].Name)
}

func TestPruneByCountExemptsSafetyBackups(t *testing.T) {
	storageRoot := t.TempDir()
	names := []string{"checkpoint_a", "checkpoint_b", "checkpoint_c", "emergency_backup_old"}
	for _, name := range names {
		dir := filepath.Join(storageRoot, "snapshots", name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, WriteManifest(dir, &Manifest{Name: name, Timestamp: time.Now().UTC().Format(time.RFC3339)}))
	}

	deleted, err := Prune(storageRoot, config.Retention{MaxCount: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"checkpoint_a", "checkpoint_b"}, deleted)

	remaining, err := List(storageRoot)
	require.NoError(t, err)
	var remainingNames []string
	for _, m := range remaining {
		remainingNames = append(remainingNames, m.Name)
	}
	assert.ElementsMatch(t, []string{"checkpoint_c", "emergency_backup_old"}, remainingNames)
}

func TestPruneByAgeAppliesToSafetyBackupsToo(t *testing.T) {
	storageRoot := t.TempDir()
	old := time.Now().AddDate(0, 0, -60).UTC().Format(time.RFC3339)
	dir := filepath.Join(storageRoot, "snapshots", "emergency_backup_old")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, WriteManifest(dir, &Manifest{Name: "emergency_backup_old", Timestamp: old}))

	deleted, err := Prune(storageRoot, config.Retention{MaxAgeDays: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"emergency_backup_old"}, deleted)
}

func TestHeadSignatureRoundTrips(t *testing.T) {
	storageRoot := t.TempDir()
	_, ok, err := HeadSignature(storageRoot)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetHeadSignature(storageRoot, "abc123"))
	sig, ok, err := HeadSignature(storageRoot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", sig)
}
