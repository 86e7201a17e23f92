package analysis

import (
	"crypto/sha256"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// TS/JS dependency extraction is intentionally regex-based: the core only
// needs specifier strings, not a syntax tree.
var (
	// import d from 'm' | import {a, b} from 'm' | import * as ns from 'm'
	// import type T from 'm' | bare import 'm'
	reImport = regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?(?:[\w$]+\s*,\s*)?(?:[\w$]+|\*\s+as\s+[\w$]+|\{[^}]*\})?\s*(?:from\s*)?['"]([^'"]+)['"]`)

	// export * from 'm' | export {a} from 'm' | export type {T} from 'm'
	reExportFrom = regexp.MustCompile(`(?m)^\s*export\s+(?:type\s+)?(?:\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s*from\s*['"]([^'"]+)['"]`)

	// require('m') and dynamic import('m')
	reRequire   = regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	reDynImport = regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`)

	// /// <reference path="..." />
	reReference = regexp.MustCompile(`(?m)^\s*///\s*<reference\s+path\s*=\s*["']([^"']+)["']`)
)

// resolutionExts is the probe order for extensionless specifiers.
var resolutionExts = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx"}

// SourceExts returns the recognized source file extensions for a project,
// depending on whether JavaScript files are included.
func SourceExts(allowJS bool) []string {
	if allowJS {
		return []string{".ts", ".tsx", ".d.ts", ".js", ".jsx"}
	}
	return []string{".ts", ".tsx", ".d.ts"}
}

// IsSourceFile reports whether path has a project-recognized extension.
func IsSourceFile(path string, allowJS bool) bool {
	ext := vfs.Ext(path)
	for _, e := range SourceExts(allowJS) {
		if ext == e {
			return true
		}
	}
	return false
}

// IsDeclarationFile reports whether path is an ambient declaration file.
func IsDeclarationFile(path string) bool {
	return strings.HasSuffix(path, ".d.ts")
}

// TSHost is the in-repo Host implementation for TypeScript/JavaScript
// workspaces. Extraction results are memoized by content hash so repeated
// crawls over an unchanged file cost one regex pass.
type TSHost struct {
	fs     *vfs.FileSystem
	logger *zap.Logger

	memo *lru.Cache[[sha256.Size]byte, Dependencies]

	mu       sync.RWMutex
	compiled map[string]struct{}
}

// memoSize bounds the extraction memo; entries are small, files repeat a lot
// across crawls.
const memoSize = 4096

// NewTSHost creates a Host reading file existence from fs.
func NewTSHost(fs *vfs.FileSystem, logger *zap.Logger) *TSHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	memo, _ := lru.New[[sha256.Size]byte, Dependencies](memoSize)
	return &TSHost{
		fs:       fs,
		logger:   logger,
		memo:     memo,
		compiled: make(map[string]struct{}),
	}
}

// ExtractDependencies implements Host.
func (h *TSHost) ExtractDependencies(text string) Dependencies {
	key := sha256.Sum256([]byte(text))
	if deps, ok := h.memo.Get(key); ok {
		return deps
	}

	var deps Dependencies
	seen := make(map[string]struct{})
	addImport := func(spec string) {
		if spec == "" {
			return
		}
		if _, dup := seen[spec]; dup {
			return
		}
		seen[spec] = struct{}{}
		deps.Imports = append(deps.Imports, spec)
	}
	for _, re := range []*regexp.Regexp{reImport, reExportFrom, reRequire, reDynImport} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			addImport(m[1])
		}
	}
	for _, m := range reReference.FindAllStringSubmatch(text, -1) {
		deps.References = append(deps.References, m[1])
	}

	h.memo.Add(key, deps)
	return deps
}

// ResolveModule implements Host. Relative specifiers resolve against the
// importing file's directory; non-relative specifiers only resolve through
// baseUrl/paths mappings. Anything else is reported unresolved so the caller
// skips it (ambient modules are covered by global declaration files).
func (h *TSHost) ResolveModule(specifier, fromPath string, opts CompilerOptions) (string, bool) {
	switch {
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"):
		return h.probe(vfs.Join(vfs.Dir(fromPath), specifier))
	case strings.HasPrefix(specifier, "/"):
		return h.probe(vfs.Normalize(specifier))
	}

	if len(opts.Paths) > 0 {
		base := opts.BaseURL
		if base == "" {
			base = "/"
		}
		for pattern, targets := range opts.Paths {
			matched, captured := matchPattern(pattern, specifier)
			if !matched {
				continue
			}
			for _, target := range targets {
				candidate := strings.Replace(target, "*", captured, 1)
				if p, ok := h.probe(vfs.Join(base, candidate)); ok {
					return p, true
				}
			}
		}
	}
	if opts.BaseURL != "" {
		if p, ok := h.probe(vfs.Join(opts.BaseURL, specifier)); ok {
			return p, true
		}
	}
	return "", false
}

// probe tries a resolved base path as a file, with appended extensions, and
// as a directory with an index file.
func (h *TSHost) probe(base string) (string, bool) {
	if h.fs.Exists(base) && IsSourceFile(base, true) {
		return base, true
	}
	for _, ext := range resolutionExts {
		if p := base + ext; h.fs.Exists(p) {
			return p, true
		}
	}
	for _, ext := range resolutionExts {
		if p := vfs.Join(base, "index"+ext); h.fs.Exists(p) {
			return p, true
		}
	}
	return "", false
}

// matchPattern matches a tsconfig paths pattern with at most one "*" against
// a specifier, returning the text captured by the wildcard.
func matchPattern(pattern, specifier string) (bool, string) {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return pattern == specifier, ""
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if len(specifier) < len(prefix)+len(suffix) {
		return false, ""
	}
	if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
		return false, ""
	}
	return true, specifier[len(prefix) : len(specifier)-len(suffix)]
}

// Materialize implements Host.
func (h *TSHost) Materialize(path string) {
	path = vfs.Normalize(path)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.compiled[path]; ok {
		return
	}
	h.compiled[path] = struct{}{}
	h.logger.Debug("materialized file", zap.String("path", path))
}

// Compiled implements Host.
func (h *TSHost) Compiled(path string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.compiled[vfs.Normalize(path)]
	return ok
}

// CompiledFiles returns the materialized file set, for diagnostics and tests.
func (h *TSHost) CompiledFiles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	paths := make([]string, 0, len(h.compiled))
	for p := range h.compiled {
		paths = append(paths, p)
	}
	return paths
}
