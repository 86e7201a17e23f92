// Package watch monitors a local workspace for file system changes and turns
// them into cache invalidations on the synchronization core. Only used in
// local-source mode; remote workspaces signal changes through the LSP
// client's didChangeWatchedFiles notifications instead.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// sourcePatterns are the filenames worth reacting to: project sources and
// marker files.
var sourcePatterns = []string{"*.ts", "*.tsx", "*.js", "*.jsx", "tsconfig.json", "jsconfig.json"}

// Watcher monitors the workspace tree and reports batches of changed paths.
type Watcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	onChange  func([]string)
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a watcher over the workspace rooted at root. onChange receives
// debounced batches of absolute filesystem paths.
func New(root string, onChange func([]string), logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		root:      root,
		watcher:   fsw,
		debouncer: NewDebouncer(100 * time.Millisecond),
		onChange:  onChange,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
	w.debouncer.SetCallback(w.onChange)
	return w, nil
}

// Start begins watching the workspace tree.
func (w *Watcher) Start() error {
	dirs, err := w.findDirectories()
	if err != nil {
		return fmt.Errorf("failed to find directories: %w", err)
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	w.logger.Info("watching workspace", zap.String("root", w.root), zap.Int("dirs", len(dirs)))

	w.wg.Add(1)
	go w.watch()
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.debouncer.Stop()
	return w.watcher.Close()
}

// watch is the main event loop.
func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}
			// New directories must be added to the watch set as they appear.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				if w.matchesPattern(event.Name) {
					w.logger.Debug("file changed", zap.String("path", event.Name))
					w.debouncer.Add(event.Name)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

// findDirectories collects the directories to watch: the whole workspace
// tree minus hidden directories and node_modules, which is both enormous and
// covered by structure invalidation instead.
func (w *Watcher) findDirectories() ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != w.root && (strings.HasPrefix(name, ".") || name == "node_modules") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(path string) bool {
	if strings.Contains(path, string(filepath.Separator)+"node_modules"+string(filepath.Separator)) {
		return true
	}
	baseName := filepath.Base(path)
	return strings.HasPrefix(baseName, ".")
}

// matchesPattern checks if a file matches any of the watch patterns.
func (w *Watcher) matchesPattern(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range sourcePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Debouncer collects file changes and triggers a callback after a quiet
// period, so editor save bursts become one invalidation pass.
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
}

// NewDebouncer creates a new debouncer instance.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add adds a file to the pending batch and restarts the quiet-period timer.
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush triggers the callback with the accumulated files.
func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.files) == 0 {
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	d.files = make(map[string]struct{})

	if d.callback != nil {
		d.callback(files)
	}
}

// SetCallback sets the callback function.
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop stops any pending flush.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
