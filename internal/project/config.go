// Package project discovers project roots from marker files (tsconfig.json,
// jsconfig.json), maps workspace paths to their owning configuration, and
// drives each configuration through its readiness state machine.
package project

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lodestar-ls/lodestar/internal/analysis"
	"github.com/lodestar-ls/lodestar/internal/fetch"
	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// State is a configuration's readiness stage. Transitions only move forward;
// Reset returns to Uninitialized from anywhere.
type State int

const (
	// Uninitialized: configuration source not parsed yet.
	Uninitialized State = iota
	// Initialized: compiler options and expected file list computed.
	Initialized
	// BasicFilesReady: global and ambient declaration files materialized.
	// Enough for hover and go-to-definition.
	BasicFilesReady
	// AllFilesReady: every expected file materialized. Needed for
	// references and workspace symbols.
	AllFilesReady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case BasicFilesReady:
		return "basic-files-ready"
	case AllFilesReady:
		return "all-files-ready"
	default:
		return "unknown"
	}
}

// flight is one single-flight transition attempt. err is written before ch
// closes.
type flight struct {
	ch  chan struct{}
	err error
}

func await(ctx context.Context, f *flight) error {
	select {
	case <-f.ch:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config is one project's lazily-initialized configuration and file set.
type Config struct {
	root       string // workspace directory owning the project
	configPath string // marker file path, "" for an inline configuration
	inline     *rawConfig

	fs     *vfs.FileSystem
	fetch  *fetch.Coordinator
	host   analysis.Host
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	gen      int // bumped by Reset; stale transitions abandon their commit
	options  analysis.CompilerOptions
	expected []string
	complete bool // EnsureAllFiles already ran to completion once

	initFlight  *flight
	basicFlight *flight
	allFlight   *flight
}

// NewConfig creates a configuration rooted at root, parsed from the marker
// file at configPath.
func NewConfig(root, configPath string, fs *vfs.FileSystem, fc *fetch.Coordinator, host analysis.Host, logger *zap.Logger) *Config {
	return newConfig(root, configPath, nil, fs, fc, host, logger)
}

// NewCatchAll creates the fallback root configuration used when the workspace
// has no marker files: a permissive inline configuration accepting every
// recognized source file.
func NewCatchAll(root string, fs *vfs.FileSystem, fc *fetch.Coordinator, host analysis.Host, logger *zap.Logger) *Config {
	raw := catchAllConfig()
	return newConfig(root, "", &raw, fs, fc, host, logger)
}

func newConfig(root, configPath string, inline *rawConfig, fs *vfs.FileSystem, fc *fetch.Coordinator, host analysis.Host, logger *zap.Logger) *Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Config{
		root:       vfs.Normalize(root),
		configPath: configPath,
		inline:     inline,
		fs:         fs,
		fetch:      fc,
		host:       host,
		logger:     logger.With(zap.String("project", vfs.Normalize(root))),
	}
}

// Root returns the project's workspace root directory.
func (c *Config) Root() string { return c.root }

// State returns the current readiness stage.
func (c *Config) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Options returns the compiler options. Zero until Initialized.
func (c *Config) Options() analysis.CompilerOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options
}

// ExpectedFiles returns the computed expected-file list. Empty until
// Initialized.
func (c *Config) ExpectedFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.expected))
	copy(out, c.expected)
	return out
}

// Reset returns the configuration to Uninitialized. The next transition
// re-parses the configuration source from scratch.
func (c *Config) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Uninitialized
	c.gen++
	c.options = analysis.CompilerOptions{}
	c.expected = nil
	c.complete = false
	c.initFlight = nil
	c.basicFlight = nil
	c.allFlight = nil
	c.logger.Debug("configuration reset")
}

// EnsureInit parses the configuration source and computes the expected-file
// list. Concurrent callers share one attempt; success is memoized until
// Reset. A malformed source yields ErrConfigParse and the configuration stays
// Uninitialized.
func (c *Config) EnsureInit(ctx context.Context) error {
	c.mu.Lock()
	f := c.initFlight
	if f == nil {
		f = &flight{ch: make(chan struct{})}
		c.initFlight = f
		gen := c.gen
		go c.finish(f, &c.initFlight, c.initialize(gen))
	}
	c.mu.Unlock()
	return await(ctx, f)
}

// EnsureBasicFiles materializes only declaration files: ambient declarations
// under node_modules plus any non-dependency declaration files. This is the
// cheap readiness level point operations need.
func (c *Config) EnsureBasicFiles(ctx context.Context) error {
	c.mu.Lock()
	f := c.basicFlight
	if f == nil {
		f = &flight{ch: make(chan struct{})}
		c.basicFlight = f
		gen := c.gen
		go c.finish(f, &c.basicFlight, c.materializeFiles(gen, BasicFilesReady, analysis.IsDeclarationFile))
	}
	c.mu.Unlock()
	return await(ctx, f)
}

// EnsureAllFiles materializes every expected file. The work happens once; a
// completion flag makes later calls no-ops until Reset.
func (c *Config) EnsureAllFiles(ctx context.Context) error {
	c.mu.Lock()
	f := c.allFlight
	if f == nil {
		f = &flight{ch: make(chan struct{})}
		c.allFlight = f
		gen := c.gen
		go c.finish(f, &c.allFlight, c.materializeFiles(gen, AllFilesReady, func(string) bool { return true }))
	}
	c.mu.Unlock()
	return await(ctx, f)
}

// finish runs work, publishes its outcome on f and clears the flight slot on
// failure so the next caller retries from a clean slate.
func (c *Config) finish(f *flight, slot **flight, work func() error) {
	err := work()
	f.err = err
	c.mu.Lock()
	if err != nil && *slot == f {
		*slot = nil
	}
	c.mu.Unlock()
	close(f.ch)
}

// initialize returns the Uninitialized → Initialized transition body.
func (c *Config) initialize(gen int) func() error {
	return func() error {
		raw, err := c.loadRaw()
		if err != nil {
			return err
		}
		expected := c.computeExpected(raw)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			// Reset raced this attempt; drop the stale result.
			return nil
		}
		c.options = raw.Options
		c.expected = expected
		if c.state < Initialized {
			c.state = Initialized
		}
		c.logger.Debug("project initialized", zap.Int("expected_files", len(expected)))
		return nil
	}
}

// loadRaw parses the configuration source: the marker file's content, fetched
// on demand, or the inline configuration.
func (c *Config) loadRaw() (rawConfig, error) {
	if c.configPath == "" {
		if c.inline == nil {
			return rawConfig{}, fmt.Errorf("%w: no configuration source", ErrConfigParse)
		}
		return *c.inline, nil
	}
	if err := c.fetch.EnsureContent(context.Background(), c.configPath); err != nil {
		return rawConfig{}, fmt.Errorf("load %s: %w", c.configPath, err)
	}
	text, err := c.fs.Content(c.configPath)
	if err != nil {
		return rawConfig{}, fmt.Errorf("load %s: %w", c.configPath, err)
	}
	raw, err := parseTSConfig(text)
	if err != nil {
		return rawConfig{}, fmt.Errorf("%s: %w", c.configPath, err)
	}
	// Workspace-relative compiler paths are anchored at the project root.
	if raw.Options.BaseURL != "" {
		raw.Options.BaseURL = vfs.Join(c.root, raw.Options.BaseURL)
	}
	return raw, nil
}

// computeExpected evaluates files/include/exclude against the known workspace
// paths and appends ambient declaration files found under the project's
// dependency directory.
func (c *Config) computeExpected(raw rawConfig) []string {
	seen := make(map[string]struct{})
	var expected []string
	add := func(p string) {
		p = vfs.Normalize(p)
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		expected = append(expected, p)
	}

	if raw.Files != nil {
		for _, f := range raw.Files {
			add(vfs.Join(c.root, f))
		}
	} else {
		for _, path := range c.fs.Paths() {
			rel, ok := vfs.Rel(c.root, path)
			if !ok || !analysis.IsSourceFile(path, raw.Options.AllowJS) {
				continue
			}
			if matchAny(raw.Include, rel) && !matchAny(raw.Exclude, rel) {
				add(path)
			}
		}
	}

	// Ambient declarations are visible even though nothing imports them.
	depDir := vfs.Join(c.root, "node_modules") + "/"
	for _, path := range c.fs.Paths() {
		if strings.HasPrefix(path, depDir) && analysis.IsDeclarationFile(path) {
			add(path)
		}
	}

	sort.Strings(expected)
	return expected
}

// matchAny reports whether rel matches any of the tsconfig glob patterns. A
// pattern naming a directory matches everything beneath it.
func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSuffix(p, "/"), "./")
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(p+"/**/*", rel); err == nil && ok {
			return true
		}
	}
	return false
}

// materializeFiles returns a transition body that fetches and materializes
// every expected file passing keep, then advances to target.
func (c *Config) materializeFiles(gen int, target State, keep func(string) bool) func() error {
	return func() error {
		if err := c.EnsureInit(context.Background()); err != nil {
			return err
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return nil
		}
		if target == AllFilesReady && c.complete {
			c.mu.Unlock()
			return nil
		}
		files := make([]string, 0, len(c.expected))
		for _, p := range c.expected {
			if keep(p) {
				files = append(files, p)
			}
		}
		c.mu.Unlock()

		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(16)
		for _, path := range files {
			path := path
			g.Go(func() error {
				if c.host.Compiled(path) {
					return nil
				}
				if err := c.fetch.EnsureContent(ctx, path); err != nil {
					return fmt.Errorf("materialize %s: %w", path, err)
				}
				c.host.Materialize(path)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return nil
		}
		if c.state < target {
			c.state = target
		}
		if target == AllFilesReady {
			c.complete = true
		}
		c.logger.Debug("project files materialized",
			zap.Stringer("state", c.state), zap.Int("files", len(files)))
		return nil
	}
}

// SyncOpenFile folds a freshly opened or edited file into the project's
// materialized set. No-op while the project is Uninitialized; the file will
// be picked up by the next transition instead.
func (c *Config) SyncOpenFile(path string) {
	path = vfs.Normalize(path)

	c.mu.Lock()
	if c.state == Uninitialized {
		c.mu.Unlock()
		return
	}
	allowJS := c.options.AllowJS
	known := false
	for _, p := range c.expected {
		if p == path {
			known = true
			break
		}
	}
	if !known && analysis.IsSourceFile(path, allowJS) && vfs.Within(c.root, path) {
		c.expected = append(c.expected, path)
		sort.Strings(c.expected)
		known = true
	}
	c.mu.Unlock()

	if known && !c.host.Compiled(path) {
		c.host.Materialize(path)
	}
}
