package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// Local serves workspace content from a directory on disk. Used when the
// server runs next to the workspace instead of behind a remote client.
type Local struct {
	root   string // absolute filesystem path of the workspace root
	logger *zap.Logger
}

// NewLocal creates a Source rooted at the given directory.
func NewLocal(root string, logger *zap.Logger) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w: %v", ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory: %w", abs, ErrSourceUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{root: abs, logger: logger}, nil
}

// ListFiles implements Source with a recursive walk under base. Hidden
// directories are skipped; node_modules is not, since ambient declaration
// files live there.
func (l *Local) ListFiles(ctx context.Context, base string) ([]string, error) {
	start := l.root
	if base != "" && base != "/" {
		start = filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(vfs.Normalize(base), "/")))
	}

	var paths []string
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees degrade the listing, never abort it.
			l.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != start {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return nil
		}
		paths = append(paths, vfs.Normalize(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("walk %s: %w: %v", start, ErrSourceUnavailable, err)
	}
	return paths, nil
}

// GetContent implements Source. Content must decode as UTF-8 text; binary
// files yield ErrDecode so walking callers can skip them.
func (l *Local) GetContent(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full := filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(vfs.Normalize(path), "/")))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w: %v", path, ErrSourceUnavailable, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", path, ErrDecode)
	}
	return string(data), nil
}

// Root returns the absolute filesystem path of the workspace root.
func (l *Local) Root() string {
	return l.root
}
