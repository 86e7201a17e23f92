// Package crawl walks a file's transitive import and reference graph,
// fetching every reachable file so analysis can run against a complete set.
// The graph's shape is unknown and may be cyclic; traversal is depth-bounded
// and cycle-safe, and every edge is best-effort: a missing dependency
// degrades analysis quality but never fails the operation that asked for it.
package crawl

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lodestar-ls/lodestar/internal/analysis"
	"github.com/lodestar-ls/lodestar/internal/fetch"
	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// DefaultDepth is the standard bound on transitive dependency depth.
const DefaultDepth = 30

// OptionSource supplies the compiler options module resolution should use for
// a given file, normally the file's owning project configuration.
type OptionSource interface {
	OptionsFor(path string) analysis.CompilerOptions
}

// Seen is the set of paths visited by one crawl invocation. It is scoped to
// that invocation only and never shared across requests.
type Seen struct {
	mu sync.Mutex
	m  map[string]struct{}
}

// NewSeen returns an empty visited set.
func NewSeen() *Seen {
	return &Seen{m: make(map[string]struct{})}
}

// Add inserts path, reporting whether it was newly added.
func (s *Seen) Add(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[path]; ok {
		return false
	}
	s.m[path] = struct{}{}
	return true
}

// Paths returns the visited paths. Order is unspecified.
func (s *Seen) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}
	return out
}

// Crawler expands dependency graphs through the fetch coordinator.
type Crawler struct {
	fetch   *fetch.Coordinator
	fs      *vfs.FileSystem
	host    analysis.Host
	options OptionSource
	logger  *zap.Logger
}

// New creates a Crawler.
func New(fc *fetch.Coordinator, fs *vfs.FileSystem, host analysis.Host, options OptionSource, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetch: fc, fs: fs, host: host, options: options, logger: logger}
}

// EnsureTransitive fetches path and, transitively, everything it imports or
// references, to at most maxDepth hops. seen may be nil for a fresh crawl;
// passing an existing set lets one operation issue several crawls without
// revisiting files. A failure on path itself propagates; failures deeper in
// the graph are logged and swallowed.
func (c *Crawler) EnsureTransitive(ctx context.Context, path string, maxDepth int, seen *Seen) error {
	if seen == nil {
		seen = NewSeen()
	}
	path = vfs.Normalize(path)
	seen.Add(path)
	return c.crawl(ctx, path, maxDepth, seen)
}

func (c *Crawler) crawl(ctx context.Context, path string, depth int, seen *Seen) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.fetch.EnsureContent(ctx, path); err != nil {
		return err
	}
	c.materialize(path)
	if depth <= 0 {
		return nil
	}

	text, err := c.fs.Content(path)
	if err != nil {
		return err
	}
	deps := c.host.ExtractDependencies(text)
	if len(deps.Imports) == 0 && len(deps.References) == 0 {
		return nil
	}

	opts := c.options.OptionsFor(path)
	var next []string
	for _, spec := range deps.Imports {
		resolved, ok := c.host.ResolveModule(spec, path, opts)
		if !ok {
			// Possibly an ambient module satisfied by a global declaration
			// file; those are materialized by the basic-files stage.
			continue
		}
		next = append(next, resolved)
	}
	for _, ref := range deps.References {
		// Reference directives always resolve relative to the referencing
		// file, never through module resolution.
		next = append(next, vfs.Join(vfs.Dir(path), ref))
	}

	var (
		branchMu   sync.Mutex
		branchErrs error
	)
	g := new(errgroup.Group)
	for _, dep := range next {
		dep := dep
		if !seen.Add(dep) {
			continue
		}
		if ctx.Err() != nil {
			// Cancelled: stop scheduling new branches; fetches already in
			// flight are shared state and run to completion on their own.
			break
		}
		g.Go(func() error {
			if err := c.crawl(ctx, dep, depth-1, seen); err != nil {
				branchMu.Lock()
				branchErrs = multierr.Append(branchErrs, err)
				branchMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if branchErrs != nil {
		c.logger.Debug("dependency branches unavailable",
			zap.String("path", path), zap.Error(branchErrs))
	}
	return ctx.Err()
}

// materialize adds path to the analysis file set once its content is known.
func (c *Crawler) materialize(path string) {
	if !c.host.Compiled(path) {
		c.host.Materialize(path)
	}
}
