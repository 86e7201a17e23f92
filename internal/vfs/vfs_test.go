package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndContent(t *testing.T) {
	fs := New(nil)

	fs.Add("/src/app.ts")
	assert.True(t, fs.Exists("/src/app.ts"))

	_, err := fs.Content("/src/app.ts")
	assert.ErrorIs(t, err, ErrNotFetched)

	_, err = fs.Content("/missing.ts")
	assert.ErrorIs(t, err, ErrNotFound)

	fs.AddContent("/src/lib.ts", "export const x = 1")
	text, err := fs.Content("/src/lib.ts")
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1", text)
}

func TestAddDoesNotClobberExistingRecord(t *testing.T) {
	fs := New(nil)
	fs.AddContent("/a.ts", "content")

	fs.Add("/a.ts")

	text, err := fs.Content("/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "content", text)
}

func TestNormalizedPathsCompareEqual(t *testing.T) {
	fs := New(nil)
	fs.AddContent("src/app.ts", "x")

	text, err := fs.Content("/src/app.ts")
	require.NoError(t, err)
	assert.Equal(t, "x", text)
}

func TestEditBumpsVersion(t *testing.T) {
	fs := New(nil)
	fs.Add("/a.ts")
	assert.Equal(t, int64(0), fs.Version("/a.ts"))

	fs.Edit("/a.ts", "v1")
	assert.Equal(t, int64(1), fs.Version("/a.ts"))
	assert.True(t, fs.IsOpen("/a.ts"))

	fs.Edit("/a.ts", "v2")
	assert.Equal(t, int64(2), fs.Version("/a.ts"))

	text, err := fs.Content("/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
}

func TestCommitFetchRespectsLocalEdit(t *testing.T) {
	fs := New(nil)
	fs.Add("/a.ts")

	// Fetch starts, observing version 0.
	start := fs.Version("/a.ts")

	// A local edit lands while the fetch is in flight.
	fs.Edit("/a.ts", "edited")

	// The stale fetch result must be discarded.
	assert.False(t, fs.CommitFetch("/a.ts", "remote", start))

	text, err := fs.Content("/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "edited", text)
}

func TestCommitFetchWithoutConcurrentEdit(t *testing.T) {
	fs := New(nil)
	fs.Add("/a.ts")

	assert.True(t, fs.CommitFetch("/a.ts", "remote", 0))
	text, err := fs.Content("/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "remote", text)

	// Versions never move on fetch commits.
	assert.Equal(t, int64(0), fs.Version("/a.ts"))
}

func TestCloseKeepsContent(t *testing.T) {
	fs := New(nil)
	fs.Edit("/a.ts", "text")

	fs.Close("/a.ts")

	assert.False(t, fs.IsOpen("/a.ts"))
	text, err := fs.Content("/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "text", text)
}

func TestPaths(t *testing.T) {
	fs := New(nil)
	fs.Add("/a.ts")
	fs.Add("/src/b.ts")

	assert.ElementsMatch(t, []string{"/a.ts", "/src/b.ts"}, fs.Paths())
}

func TestReadDir(t *testing.T) {
	fs := New(nil)
	fs.Add("/a.ts")
	fs.Add("/src/b.ts")
	fs.Add("/src/deep/c.ts")
	fs.Add("/other/d.ts")

	assert.Equal(t, []string{"a.ts", "other/", "src/"}, fs.ReadDir("/"))
	assert.Equal(t, []string{"b.ts", "deep/"}, fs.ReadDir("/src"))
	assert.Empty(t, fs.ReadDir("/nope"))
}
