// Package vfs provides the in-memory virtual file system shared by the
// synchronization core. It maps workspace paths to file records whose content
// is either fetched text or a placeholder marking a file known to exist
// upstream without its content having been pulled yet.
//
// All content written by remote fetches goes through CommitFetch, which
// enforces last-editor-wins: a fetch result is discarded when the file was
// edited locally after the fetch began.
package vfs

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ContentState classifies what a file record holds.
type ContentState int

const (
	// Placeholder marks a path known to exist upstream, content not fetched.
	Placeholder ContentState = iota
	// Fetched marks a record holding real file content.
	Fetched
)

// FileRecord is the unit of state tracked per workspace path.
type FileRecord struct {
	Path    string
	State   ContentState
	Content string

	// Version increases strictly on every local edit. Remote fetches never
	// change it.
	Version int64

	// Edited is set once a local edit has bumped the version.
	Edited bool

	// Open tracks whether the editor currently has the file open.
	Open bool
}

// FileSystem is a concurrency-safe path → FileRecord map.
type FileSystem struct {
	mu     sync.RWMutex
	files  map[string]*FileRecord
	logger *zap.Logger
}

// New creates an empty file system.
func New(logger *zap.Logger) *FileSystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystem{
		files:  make(map[string]*FileRecord),
		logger: logger,
	}
}

// Add inserts a placeholder record for path. Existing records, placeholder or
// fetched, are left untouched.
func (fs *FileSystem) Add(path string) {
	path = Normalize(path)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[path]; ok {
		return
	}
	fs.files[path] = &FileRecord{Path: path, State: Placeholder}
}

// AddContent inserts a record for path that already carries content, for
// sources that deliver listing and content in one step.
func (fs *FileSystem) AddContent(path, text string) {
	path = Normalize(path)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if rec, ok := fs.files[path]; ok {
		if rec.Edited {
			return
		}
		rec.State = Fetched
		rec.Content = text
		return
	}
	fs.files[path] = &FileRecord{Path: path, State: Fetched, Content: text}
}

// Content returns the fetched text for path. It returns ErrNotFetched for a
// placeholder record and ErrNotFound when no record exists.
func (fs *FileSystem) Content(path string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	rec, ok := fs.files[Normalize(path)]
	if !ok {
		return "", ErrNotFound
	}
	if rec.State != Fetched {
		return "", ErrNotFetched
	}
	return rec.Content, nil
}

// Exists reports whether path is known, as placeholder or fetched content.
func (fs *FileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.files[Normalize(path)]
	return ok
}

// Version returns the local-edit version for path, zero when the path has
// never been edited or does not exist.
func (fs *FileSystem) Version(path string) int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if rec, ok := fs.files[Normalize(path)]; ok {
		return rec.Version
	}
	return 0
}

// Paths returns every known path. Order is unspecified.
func (fs *FileSystem) Paths() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}
	return paths
}

// ReadDir returns the names of the immediate children of dir, directories
// suffixed with a slash, sorted.
func (fs *FileSystem) ReadDir(dir string) []string {
	dir = Normalize(dir)
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	seen := make(map[string]struct{})
	fs.mu.RLock()
	for p := range fs.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seen[rest[:i+1]] = struct{}{}
		} else {
			seen[rest] = struct{}{}
		}
	}
	fs.mu.RUnlock()
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Edit records a local edit: the record's version is bumped, the text stored
// and the file marked open. A record is created when none exists, so files
// opened before the structure listing completes still work.
func (fs *FileSystem) Edit(path, text string) {
	path = Normalize(path)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, ok := fs.files[path]
	if !ok {
		rec = &FileRecord{Path: path}
		fs.files[path] = rec
	}
	rec.State = Fetched
	rec.Content = text
	rec.Version++
	rec.Edited = true
	rec.Open = true
}

// Close marks path as no longer open in the editor. Content is kept.
func (fs *FileSystem) Close(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if rec, ok := fs.files[Normalize(path)]; ok {
		rec.Open = false
	}
}

// Save is a notification hook; the authoritative content already arrived via
// Edit, so there is nothing to store.
func (fs *FileSystem) Save(path string) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if rec, ok := fs.files[Normalize(path)]; ok && !rec.Open {
		fs.logger.Debug("save for file not marked open", zap.String("path", rec.Path))
	}
}

// IsOpen reports whether path is currently open in the editor.
func (fs *FileSystem) IsOpen(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	rec, ok := fs.files[Normalize(path)]
	return ok && rec.Open
}

// CommitFetch stores text fetched from the content source, provided the
// record's version still equals startVersion (the version observed when the
// fetch began). It reports whether the write was applied; a false return
// means a local edit landed mid-flight and wins.
func (fs *FileSystem) CommitFetch(path, text string, startVersion int64) bool {
	path = Normalize(path)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, ok := fs.files[path]
	if !ok {
		rec = &FileRecord{Path: path}
		fs.files[path] = rec
	}
	if rec.Version != startVersion {
		return false
	}
	rec.State = Fetched
	rec.Content = text
	return true
}
