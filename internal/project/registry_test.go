package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMarkerFile(t *testing.T) {
	assert.True(t, IsMarkerFile("/tsconfig.json"))
	assert.True(t, IsMarkerFile("/proj/tsconfig.json"))
	assert.True(t, IsMarkerFile("/proj/jsconfig.json"))
	assert.False(t, IsMarkerFile("/proj/package.json"))
	assert.False(t, IsMarkerFile("/proj/node_modules/lib/tsconfig.json"))
	assert.False(t, IsMarkerFile("/proj/src/a.ts"))
}

func newRegistryHarness(t *testing.T, files map[string]string) (*Registry, *harness) {
	t.Helper()
	h := newHarness(t, files)
	return NewRegistry(h.fs, h.fc, h.host, nil), h
}

func TestRegistryDiscoverCreatesConfigPerMarker(t *testing.T) {
	reg, _ := newRegistryHarness(t, map[string]string{
		"/proj/tsconfig.json":     `{}`,
		"/proj/src/a.ts":          "",
		"/lib/jsconfig.json":      `{}`,
		"/lib/b.js":               "",
		"/proj/node_modules/x.ts": "",
	})

	require.NoError(t, reg.Discover(context.Background()))
	configs := reg.Configs()
	require.Len(t, configs, 2)

	roots := []string{configs[0].Root(), configs[1].Root()}
	assert.ElementsMatch(t, []string{"/proj", "/lib"}, roots)
}

func TestRegistryDiscoverFallsBackToCatchAll(t *testing.T) {
	reg, _ := newRegistryHarness(t, map[string]string{
		"/src/a.ts": "",
	})

	require.NoError(t, reg.Discover(context.Background()))
	configs := reg.Configs()
	require.Len(t, configs, 1)
	assert.Equal(t, "/", configs[0].Root())

	require.NoError(t, configs[0].EnsureInit(context.Background()))
	assert.Equal(t, []string{"/src/a.ts"}, configs[0].ExpectedFiles())
}

func TestRegistryDiscoverIsAdditiveAndIdempotent(t *testing.T) {
	reg, h := newRegistryHarness(t, map[string]string{
		"/proj/tsconfig.json": `{}`,
		"/proj/a.ts":          "",
	})

	require.NoError(t, reg.Discover(context.Background()))
	first, err := reg.Resolve("/proj/a.ts")
	require.NoError(t, err)

	// Rediscovering the same root keeps the existing configuration.
	require.NoError(t, reg.Discover(context.Background()))
	again, err := reg.Resolve("/proj/a.ts")
	require.NoError(t, err)
	assert.Same(t, first, again)

	// A new marker adds a configuration without touching the old one.
	h.fs.Add("/other/tsconfig.json")
	require.NoError(t, reg.Discover(context.Background()))
	assert.Len(t, reg.Configs(), 2)
}

func TestRegistryResolveWalksAncestors(t *testing.T) {
	reg, _ := newRegistryHarness(t, map[string]string{
		"/proj/tsconfig.json":        `{}`,
		"/proj/nested/tsconfig.json": `{}`,
		"/proj/nested/deep/a.ts":     "",
		"/proj/b.ts":                 "",
	})
	require.NoError(t, reg.Discover(context.Background()))

	cfg, err := reg.Resolve("/proj/nested/deep/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "/proj/nested", cfg.Root())

	cfg, err = reg.Resolve("/proj/b.ts")
	require.NoError(t, err)
	assert.Equal(t, "/proj", cfg.Root())
}

func TestRegistryResolveNoProject(t *testing.T) {
	reg, _ := newRegistryHarness(t, map[string]string{
		"/proj/tsconfig.json": `{}`,
	})
	require.NoError(t, reg.Discover(context.Background()))

	_, err := reg.Resolve("/outside/a.ts")
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestRegistryInvalidateSubtree(t *testing.T) {
	reg, _ := newRegistryHarness(t, map[string]string{
		"/proj/tsconfig.json":  `{}`,
		"/proj/a.ts":           "",
		"/other/tsconfig.json": `{}`,
		"/other/b.ts":          "",
	})
	require.NoError(t, reg.Discover(context.Background()))

	proj, err := reg.Resolve("/proj/a.ts")
	require.NoError(t, err)
	other, err := reg.Resolve("/other/b.ts")
	require.NoError(t, err)
	require.NoError(t, proj.EnsureInit(context.Background()))
	require.NoError(t, other.EnsureInit(context.Background()))

	// Invalidating inside one project's subtree resets only that project.
	reg.InvalidateSubtree("/proj/src")
	assert.Equal(t, Uninitialized, proj.State())
	assert.Equal(t, Initialized, other.State())

	// Invalidating an ancestor resets everything beneath it.
	require.NoError(t, proj.EnsureInit(context.Background()))
	reg.InvalidateSubtree("/")
	assert.Equal(t, Uninitialized, proj.State())
	assert.Equal(t, Uninitialized, other.State())
}
