package project

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lodestar-ls/lodestar/internal/analysis"
	"github.com/lodestar-ls/lodestar/internal/fetch"
	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// markerNames are the filenames whose presence defines a project root.
var markerNames = map[string]bool{
	"tsconfig.json": true,
	"jsconfig.json": true,
}

// IsMarkerFile reports whether path names a project configuration file
// outside the dependency directory.
func IsMarkerFile(path string) bool {
	path = vfs.Normalize(path)
	return markerNames[vfs.Base(path)] && !strings.Contains(path, "/node_modules/")
}

// Registry owns every Config in the workspace, keyed by root directory. It is
// the only component that creates configurations. Configurations accumulate:
// stale ones are reset, never removed, and rediscovering a known root is a
// no-op, so duplicate discoveries merge by construction.
type Registry struct {
	fs     *vfs.FileSystem
	fetch  *fetch.Coordinator
	host   analysis.Host
	logger *zap.Logger

	mu      sync.Mutex
	configs map[string]*Config
}

// NewRegistry creates an empty registry.
func NewRegistry(fs *vfs.FileSystem, fc *fetch.Coordinator, host analysis.Host, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		fs:      fs,
		fetch:   fc,
		host:    host,
		logger:  logger,
		configs: make(map[string]*Config),
	}
}

// Discover scans the known workspace paths for marker files and creates a
// configuration for each new project root. When the workspace has no marker
// file at all, a single permissive catch-all configuration is created at the
// root. Re-running after new files appear only adds configurations.
func (r *Registry) Discover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paths := r.fs.Paths()

	r.mu.Lock()
	defer r.mu.Unlock()

	markers := 0
	for _, path := range paths {
		if !IsMarkerFile(path) {
			continue
		}
		markers++
		root := vfs.Dir(path)
		if _, ok := r.configs[root]; ok {
			continue
		}
		r.configs[root] = NewConfig(root, path, r.fs, r.fetch, r.host, r.logger)
		r.logger.Info("project discovered",
			zap.String("root", root), zap.String("config", path))
	}

	if markers == 0 {
		if _, ok := r.configs["/"]; !ok {
			r.configs["/"] = NewCatchAll("/", r.fs, r.fetch, r.host, r.logger)
			r.logger.Info("no project markers found, using catch-all root configuration")
		}
	}
	return nil
}

// Resolve returns the configuration owning path, found by walking ancestor
// directories from the path's own directory up to the workspace root. The
// root configuration, catch-all or real, is the final fallback. ErrNoProject
// means no configuration matched at all.
func (r *Registry) Resolve(path string) (*Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := vfs.Dir(path)
	for {
		if cfg, ok := r.configs[dir]; ok {
			return cfg, nil
		}
		if dir == "/" {
			break
		}
		dir = vfs.Dir(dir)
	}
	return nil, ErrNoProject
}

// Configs returns every known configuration.
func (r *Registry) Configs() []*Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	return out
}

// InvalidateSubtree resets every configuration whose root is inside, equal to
// or an ancestor of root: an unknown set of files under that subtree may have
// appeared or disappeared, so file lists must be recomputed.
func (r *Registry) InvalidateSubtree(root string) {
	root = vfs.Normalize(root)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.configs {
		if vfs.Within(root, cfg.root) || vfs.Within(cfg.root, root) {
			cfg.Reset()
		}
	}
}
