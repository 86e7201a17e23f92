package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, SourceLocal, cfg.Source)
	assert.Equal(t, 100, cfg.Fetch.Concurrency)
	assert.Equal(t, 30, cfg.Crawl.Depth)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, validateConfig(cfg))
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	text := "source: remote\nfetch:\n  concurrency: 8\ncrawl:\n  depth: 5\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lodestar.yml"), []byte(text), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, cfg.Source)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Equal(t, 5, cfg.Crawl.Depth)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lodestar.yml"), []byte("log:\n  level: warn\n"), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, cfg.Source)
	assert.Equal(t, 100, cfg.Fetch.Concurrency)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad source", "source: ftp\n"},
		{"negative concurrency", "fetch:\n  concurrency: -1\n"},
		{"negative depth", "crawl:\n  depth: -2\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "lodestar.yml"), []byte(tt.yaml), 0o644))
			chdir(t, dir)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LODESTAR_SOURCE", "remote")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, cfg.Source)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
