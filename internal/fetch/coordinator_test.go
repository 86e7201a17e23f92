package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-ls/lodestar/internal/source"
	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// fakeSource counts calls and can block or fail on demand.
type fakeSource struct {
	mu        sync.Mutex
	files     map[string]string
	calls     map[string]int
	listCalls int
	failList  error
	failGet   map[string]error
	gate      chan struct{} // when non-nil, GetContent blocks until closed
}

func newFakeSource(files map[string]string) *fakeSource {
	return &fakeSource{
		files:   files,
		calls:   make(map[string]int),
		failGet: make(map[string]error),
	}
}

func (f *fakeSource) ListFiles(ctx context.Context, base string) ([]string, error) {
	f.mu.Lock()
	f.listCalls++
	err := f.failList
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (f *fakeSource) GetContent(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.calls[path]++
	gate := f.gate
	err := f.failGet[path]
	text, ok := f.files[path]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", source.ErrNotFound
	}
	return text, nil
}

func (f *fakeSource) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func TestEnsureContentCoalescesConcurrentCalls(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "content"})
	src.gate = make(chan struct{})
	fs := vfs.New(nil)
	c := New(fs, src, 0, nil)
	defer c.Close()

	const callers = 20
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			results <- c.EnsureContent(context.Background(), "/a.ts")
		}()
	}

	// Let all callers join the in-flight entry, then release the fetch.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)

	for i := 0; i < callers; i++ {
		assert.NoError(t, <-results)
	}
	assert.Equal(t, 1, src.callCount("/a.ts"), "source must be hit at most once")

	text, err := fs.Content("/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "content", text)
}

func TestEnsureContentMemoizesSuccess(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "content"})
	c := New(vfs.New(nil), src, 0, nil)
	defer c.Close()

	require.NoError(t, c.EnsureContent(context.Background(), "/a.ts"))
	require.NoError(t, c.EnsureContent(context.Background(), "/a.ts"))
	assert.Equal(t, 1, src.callCount("/a.ts"))
}

func TestInvalidateForcesRefetch(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "content"})
	c := New(vfs.New(nil), src, 0, nil)
	defer c.Close()

	require.NoError(t, c.EnsureContent(context.Background(), "/a.ts"))
	c.Invalidate("/a.ts")
	require.NoError(t, c.EnsureContent(context.Background(), "/a.ts"))
	assert.Equal(t, 2, src.callCount("/a.ts"))
}

func TestTransientFailureIsRetried(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "content"})
	src.failGet["/a.ts"] = source.ErrSourceUnavailable
	c := New(vfs.New(nil), src, 0, nil)
	defer c.Close()

	err := c.EnsureContent(context.Background(), "/a.ts")
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)

	// The entry must be gone: a later call hits the source again.
	src.mu.Lock()
	delete(src.failGet, "/a.ts")
	src.mu.Unlock()

	require.NoError(t, c.EnsureContent(context.Background(), "/a.ts"))
	assert.Equal(t, 2, src.callCount("/a.ts"))
}

func TestNotFoundIsCachedUntilInvalidate(t *testing.T) {
	src := newFakeSource(map[string]string{})
	c := New(vfs.New(nil), src, 0, nil)
	defer c.Close()

	assert.ErrorIs(t, c.EnsureContent(context.Background(), "/gone.ts"), source.ErrNotFound)
	assert.ErrorIs(t, c.EnsureContent(context.Background(), "/gone.ts"), source.ErrNotFound)
	assert.Equal(t, 1, src.callCount("/gone.ts"))

	c.Invalidate("/gone.ts")
	assert.ErrorIs(t, c.EnsureContent(context.Background(), "/gone.ts"), source.ErrNotFound)
	assert.Equal(t, 2, src.callCount("/gone.ts"))
}

func TestLocalEditWinsOverSlowFetch(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "remote"})
	src.gate = make(chan struct{})
	fs := vfs.New(nil)
	c := New(fs, src, 0, nil)
	defer c.Close()

	fs.Add("/a.ts")

	done := make(chan error, 1)
	go func() {
		done <- c.EnsureContent(context.Background(), "/a.ts")
	}()

	// The edit lands while the fetch is stuck in flight.
	time.Sleep(50 * time.Millisecond)
	fs.Edit("/a.ts", "edited")
	close(src.gate)

	require.NoError(t, <-done)
	text, err := fs.Content("/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "edited", text, "in-flight fetch must not clobber a newer local edit")
}

func TestCallerCancellationDoesNotPoisonEntry(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "content"})
	src.gate = make(chan struct{})
	fs := vfs.New(nil)
	c := New(fs, src, 0, nil)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.EnsureContent(ctx, "/a.ts")
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	// The shared fetch keeps running; an uncancelled caller still succeeds
	// without a second source call.
	close(src.gate)
	require.NoError(t, c.EnsureContent(context.Background(), "/a.ts"))
	assert.Equal(t, 1, src.callCount("/a.ts"))
}

func TestEnsureStructureSingleFlight(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "x", "/src/b.ts": "y"})
	fs := vfs.New(nil)
	c := New(fs, src, 0, nil)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.EnsureStructure(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, src.listCalls)
	assert.True(t, fs.Exists("/a.ts"))
	assert.True(t, fs.Exists("/src/b.ts"))

	// Placeholders only: content is fetched lazily.
	_, err := fs.Content("/a.ts")
	assert.ErrorIs(t, err, vfs.ErrNotFetched)
}

func TestStructureFailureClearsSnapshot(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "x"})
	src.failList = source.ErrSourceUnavailable
	c := New(vfs.New(nil), src, 0, nil)
	defer c.Close()

	assert.ErrorIs(t, c.EnsureStructure(context.Background()), source.ErrSourceUnavailable)

	src.mu.Lock()
	src.failList = nil
	src.mu.Unlock()

	require.NoError(t, c.EnsureStructure(context.Background()))
	assert.Equal(t, 2, src.listCalls)
}

func TestInvalidateStructureForcesRelist(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "x"})
	fs := vfs.New(nil)
	c := New(fs, src, 0, nil)
	defer c.Close()

	require.NoError(t, c.EnsureStructure(context.Background()))

	// A file appears upstream; it stays invisible until invalidation.
	src.mu.Lock()
	src.files["/new.ts"] = "n"
	src.mu.Unlock()
	require.NoError(t, c.EnsureStructure(context.Background()))
	assert.False(t, fs.Exists("/new.ts"))

	c.InvalidateStructure()
	require.NoError(t, c.EnsureStructure(context.Background()))
	assert.True(t, fs.Exists("/new.ts"))
}

func TestCloseAbortsInFlightFetches(t *testing.T) {
	src := newFakeSource(map[string]string{"/a.ts": "content"})
	src.gate = make(chan struct{})
	c := New(vfs.New(nil), src, 0, nil)

	done := make(chan error, 1)
	go func() {
		done <- c.EnsureContent(context.Background(), "/a.ts")
	}()
	time.Sleep(20 * time.Millisecond)
	c.Close()

	err := <-done
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "shutdown surfaces as cancellation")
}
