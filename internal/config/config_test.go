package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Retention.MaxCount)
	assert.True(t, cfg.Ignore.HonorGitignore)
	assert.Equal(t, 30, cfg.TierRuntime.AntiSpamSeconds)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Retention.MaxCount = 5
	require.NoError(t, Save(dir, cfg))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Retention.MaxCount)
}

func TestLocalOverrideMergesPartially(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, Default()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, localFileName),
		[]byte(`{"retention": {"max_count": 7, "max_age_days": 1}}`), 0o600))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Retention.MaxCount)
	assert.Equal(t, 1, got.Retention.MaxAgeDays)
	// Untouched by override, still default.
	assert.True(t, got.Ignore.HonorGitignore)
}

func TestLocalOverrideSetsTelemetry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, Default()))
	assert.Nil(t, Default().Telemetry)

	require.NoError(t, os.WriteFile(filepath.Join(dir, localFileName),
		[]byte(`{"telemetry": true}`), 0o600))

	got, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, got.Telemetry)
	assert.True(t, *got.Telemetry)
}
