// Package fetch coordinates content retrieval from a Source into the virtual
// file system. It guarantees at most one in-flight fetch per path (concurrent
// callers share the outcome), bounds fetch parallelism globally, and keeps a
// single-flight cell for the one workspace-wide structure listing.
package fetch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lodestar-ls/lodestar/internal/source"
	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// DefaultConcurrency bounds simultaneous content fetches. The structure
// listing is not counted against it.
const DefaultConcurrency = 100

// entry is the shared outcome of one fetch. err is written exactly once,
// before done is closed.
type entry struct {
	done chan struct{}
	err  error
}

// Coordinator deduplicates and bounds fetches from a Source.
type Coordinator struct {
	fs     *vfs.FileSystem
	src    source.Source
	sem    *semaphore.Weighted
	logger *zap.Logger

	// lifetime detaches in-flight fetches from individual callers: a caller
	// cancelling its wait must not abort a fetch other callers share.
	lifetime context.Context
	stop     context.CancelFunc

	mu        sync.Mutex
	entries   map[string]*entry
	structure *entry
}

// New creates a Coordinator writing into fs. concurrency <= 0 selects
// DefaultConcurrency.
func New(fs *vfs.FileSystem, src source.Source, concurrency int, logger *zap.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	lifetime, stop := context.WithCancel(context.Background())
	return &Coordinator{
		fs:       fs,
		src:      src,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		logger:   logger,
		lifetime: lifetime,
		stop:     stop,
		entries:  make(map[string]*entry),
	}
}

// Close aborts all in-flight fetches. Used at server shutdown.
func (c *Coordinator) Close() {
	c.stop()
}

// EnsureContent fetches the content of path into the file system, or joins
// the fetch already in flight or completed for it. Successful and not-found
// outcomes stay cached until Invalidate; all other failures evict the entry
// so the next call retries. Cancellation of ctx abandons the wait without
// touching the shared fetch.
func (c *Coordinator) EnsureContent(ctx context.Context, path string) error {
	path = vfs.Normalize(path)

	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		e = &entry{done: make(chan struct{})}
		c.entries[path] = e
		go c.fetch(path, e)
	}
	c.mu.Unlock()

	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch performs the single network round-trip for path and publishes the
// outcome on e.
func (c *Coordinator) fetch(path string, e *entry) {
	err := c.doFetch(path)
	e.err = err

	// Not-found is a stable fact about the workspace and stays cached until
	// invalidated. Everything else (source unavailable, decode failures,
	// shutdown) is evicted so an uncancelled retry starts clean.
	if err != nil && !errors.Is(err, source.ErrNotFound) {
		c.mu.Lock()
		if c.entries[path] == e {
			delete(c.entries, path)
		}
		c.mu.Unlock()
	}
	close(e.done)

	if err != nil {
		c.logger.Debug("fetch failed", zap.String("path", path), zap.Error(err))
	}
}

func (c *Coordinator) doFetch(path string) error {
	if err := c.sem.Acquire(c.lifetime, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	startVersion := c.fs.Version(path)
	text, err := c.src.GetContent(c.lifetime, path)
	if err != nil {
		return err
	}
	if !c.fs.CommitFetch(path, text, startVersion) {
		// A local edit landed while the fetch was in flight; the edit wins
		// and the fetch still counts as satisfied.
		c.logger.Debug("fetch superseded by local edit", zap.String("path", path))
	}
	return nil
}

// Invalidate drops the cached fetch entry for path, forcing the next
// EnsureContent to hit the source again. An in-flight fetch keeps running for
// its current waiters but is no longer joinable.
func (c *Coordinator) Invalidate(path string) {
	path = vfs.Normalize(path)
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// EnsureStructure performs the one workspace-wide file listing, inserting a
// placeholder record for every discovered path. At most one listing is in
// flight; completed listings stay cached until InvalidateStructure. Failure
// clears the cell so the next call retries.
func (c *Coordinator) EnsureStructure(ctx context.Context) error {
	c.mu.Lock()
	e := c.structure
	if e == nil {
		e = &entry{done: make(chan struct{})}
		c.structure = e
		go c.fetchStructure(e)
	}
	c.mu.Unlock()

	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) fetchStructure(e *entry) {
	paths, err := c.src.ListFiles(c.lifetime, "")
	if err == nil {
		for _, p := range paths {
			c.fs.Add(p)
		}
		c.logger.Info("workspace structure fetched", zap.Int("files", len(paths)))
	}
	e.err = err

	if err != nil {
		c.mu.Lock()
		if c.structure == e {
			c.structure = nil
		}
		c.mu.Unlock()
		c.logger.Warn("structure fetch failed", zap.Error(err))
	}
	close(e.done)
}

// InvalidateStructure clears the cached structure listing. Files added
// upstream after the previous listing become visible on the next
// EnsureStructure.
func (c *Coordinator) InvalidateStructure() {
	c.mu.Lock()
	c.structure = nil
	c.mu.Unlock()
}
