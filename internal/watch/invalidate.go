package watch

import (
	"path/filepath"
	"strings"

	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// Invalidator is the slice of the synchronization core the watcher drives.
type Invalidator interface {
	InvalidatePath(path string)
	InvalidateStructure()
}

// Route converts a debounced batch of absolute filesystem paths into cache
// invalidations. The batch may contain creations and deletions the debouncer
// has collapsed, so the structure listing is always invalidated too.
func Route(inv Invalidator, root string, files []string) {
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		inv.InvalidatePath(vfs.Normalize(filepath.ToSlash(rel)))
	}
	inv.InvalidateStructure()
}
