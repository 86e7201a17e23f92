// Package workspace ties the synchronization core together behind the two
// ensure-operations the request layer needs: make one file and its
// dependencies available (point operations like hover and definition), or
// make every project's full file set available (workspace-wide operations
// like references and symbol search).
package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lodestar-ls/lodestar/internal/analysis"
	"github.com/lodestar-ls/lodestar/internal/crawl"
	"github.com/lodestar-ls/lodestar/internal/fetch"
	"github.com/lodestar-ls/lodestar/internal/project"
	"github.com/lodestar-ls/lodestar/internal/source"
	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// Options configures a Manager.
type Options struct {
	// FetchConcurrency bounds simultaneous content fetches; zero selects
	// fetch.DefaultConcurrency.
	FetchConcurrency int

	// CrawlDepth bounds transitive dependency traversal; zero selects
	// crawl.DefaultDepth.
	CrawlDepth int
}

// Manager owns the core's moving parts and exposes the operations the LSP
// layer drives.
type Manager struct {
	fs       *vfs.FileSystem
	fetch    *fetch.Coordinator
	host     analysis.Host
	registry *project.Registry
	crawler  *crawl.Crawler
	depth    int
	logger   *zap.Logger
}

// optionSource adapts the registry to the crawler's option lookup. Files that
// resolve to no project crawl with zero options, which still permits
// relative-path resolution.
type optionSource struct {
	registry *project.Registry
}

func (o optionSource) OptionsFor(path string) analysis.CompilerOptions {
	cfg, err := o.registry.Resolve(path)
	if err != nil {
		return analysis.CompilerOptions{}
	}
	return cfg.Options()
}

// NewManager assembles a core around the given content source and analysis
// host.
func NewManager(src source.Source, host analysis.Host, fs *vfs.FileSystem, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fs == nil {
		fs = vfs.New(logger)
	}
	depth := opts.CrawlDepth
	if depth <= 0 {
		depth = crawl.DefaultDepth
	}
	fc := fetch.New(fs, src, opts.FetchConcurrency, logger)
	registry := project.NewRegistry(fs, fc, host, logger)
	crawler := crawl.New(fc, fs, host, optionSource{registry: registry}, logger)
	return &Manager{
		fs:       fs,
		fetch:    fc,
		host:     host,
		registry: registry,
		crawler:  crawler,
		depth:    depth,
		logger:   logger,
	}
}

// Close aborts in-flight fetches. Used at server shutdown.
func (m *Manager) Close() {
	m.fetch.Close()
}

// FileSystem returns the shared virtual file system.
func (m *Manager) FileSystem() *vfs.FileSystem { return m.fs }

// Registry returns the project registry.
func (m *Manager) Registry() *project.Registry { return m.registry }

// EnsureForPointOperation makes path and everything a point operation on it
// can touch available: the workspace structure, the owning project's
// declaration files, and path's transitive dependencies to the standard
// depth.
func (m *Manager) EnsureForPointOperation(ctx context.Context, path string) error {
	path = vfs.Normalize(path)
	log := m.logger.With(zap.String("op", uuid.NewString()), zap.String("path", path))
	started := time.Now()

	if err := m.fetch.EnsureStructure(ctx); err != nil {
		return err
	}
	if err := m.registry.Discover(ctx); err != nil {
		return err
	}
	cfg, err := m.registry.Resolve(path)
	if err != nil {
		return err
	}
	if err := cfg.EnsureBasicFiles(ctx); err != nil {
		return err
	}
	if err := m.crawler.EnsureTransitive(ctx, path, m.depth, nil); err != nil {
		return err
	}

	log.Debug("point operation ready",
		zap.String("project", cfg.Root()),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// EnsureForWorkspaceWideOperation brings every discovered project, except any
// rooted inside the dependency directory, to AllFilesReady. Individual
// project failures are collected rather than aborting the remaining projects;
// the combined error is returned so callers know the result may be partial.
func (m *Manager) EnsureForWorkspaceWideOperation(ctx context.Context) error {
	log := m.logger.With(zap.String("op", uuid.NewString()))
	started := time.Now()

	if err := m.fetch.EnsureStructure(ctx); err != nil {
		return err
	}
	if err := m.registry.Discover(ctx); err != nil {
		return err
	}

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		joined error
	)
	for _, cfg := range m.registry.Configs() {
		cfg := cfg
		if strings.Contains(cfg.Root()+"/", "/node_modules/") {
			continue
		}
		g.Go(func() error {
			if err := cfg.EnsureAllFiles(ctx); err != nil {
				errMu.Lock()
				joined = multierr.Append(joined, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	err := joined

	log.Debug("workspace-wide operation ready",
		zap.Duration("elapsed", time.Since(started)), zap.Error(err))
	return err
}

// ResolveProjectFor returns the configuration owning path.
func (m *Manager) ResolveProjectFor(path string) (*project.Config, error) {
	return m.registry.Resolve(path)
}

// DidOpen records a file opened in the editor with the given text.
func (m *Manager) DidOpen(path, text string) {
	m.edit(path, text)
}

// DidChange records an edit to an open file.
func (m *Manager) DidChange(path, text string) {
	m.edit(path, text)
}

func (m *Manager) edit(path, text string) {
	path = vfs.Normalize(path)
	m.fs.Edit(path, text)
	if cfg, err := m.registry.Resolve(path); err == nil {
		cfg.SyncOpenFile(path)
	}
}

// DidClose records a file no longer open in the editor. Content is kept; the
// owning project decides what to do on its next invalidation.
func (m *Manager) DidClose(path string) {
	m.fs.Close(path)
}

// DidSave records a save of an open file.
func (m *Manager) DidSave(path string) {
	m.fs.Save(path)
}

// InvalidateStructure clears the cached workspace listing; the next ensure
// operation re-lists.
func (m *Manager) InvalidateStructure() {
	m.fetch.InvalidateStructure()
}

// InvalidatePath reacts to an external change notification for path: the
// cached fetch is dropped and every project whose subtree contains the path
// is reset. Marker file changes additionally invalidate the structure, since
// project shapes may have moved.
func (m *Manager) InvalidatePath(path string) {
	path = vfs.Normalize(path)
	m.fetch.Invalidate(path)
	m.registry.InvalidateSubtree(vfs.Dir(path))
	if project.IsMarkerFile(path) {
		m.fetch.InvalidateStructure()
	}
}
