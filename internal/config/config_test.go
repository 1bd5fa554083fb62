package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "plots", cfg.OutputDir)
	assert.Equal(t, 150, cfg.DPI)
	assert.Equal(t, 1, cfg.Workers)
	assert.False(t, cfg.SkipFitting)
	assert.False(t, cfg.Force)
	assert.Empty(t, cfg.Catalog)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "output_dir: out\ndpi: 300\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 300, cfg.DPI)
	// Unset keys keep their defaults.
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `data_dir: lightcurves
output_dir: artifacts
dpi: 200
workers: 4
skip_fitting: true
force: true
catalog: catalog.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Config{
		DataDir:     "lightcurves",
		OutputDir:   "artifacts",
		DPI:         200,
		Workers:     4,
		SkipFitting: true,
		Force:       true,
		Catalog:     "catalog.db",
	}, cfg)
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "plot_dir: out\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plot_dir")
	assert.Contains(t, err.Error(), "not allowed")
}

func TestLoadRejectsWrongType(t *testing.T) {
	path := writeConfig(t, "dpi: high\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dpi")
}

func TestLoadRejectsNonPositiveWorkers(t *testing.T) {
	path := writeConfig(t, "workers: 0\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDiscoverWithoutFileGivesDefaults(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDiscoverReadsFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("workers: 8\n"), 0o644)
	require.NoError(t, err)

	cfg, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
}

func TestDiscoverSurfacesInvalidFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("dpi: -10\n"), 0o644)
	require.NoError(t, err)

	_, err = Discover(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dpi")
}
