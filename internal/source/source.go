// Package source abstracts where workspace file content comes from: a remote
// editor-side client answering file-listing and file-content requests, or the
// local disk. Implementations are thin; coalescing, caching and retry policy
// belong to the fetch coordinator.
package source

import "context"

// Source serves workspace file listings and per-file content.
type Source interface {
	// ListFiles returns the workspace paths of every file under base
	// ("" or "/" for the whole workspace). The listing is best-effort and may
	// be partial; a total failure returns ErrSourceUnavailable.
	ListFiles(ctx context.Context, base string) ([]string, error)

	// GetContent returns the text of the file at the given workspace path.
	// It returns ErrNotFound when the path does not exist upstream and
	// ErrSourceUnavailable when the source cannot be reached.
	GetContent(ctx context.Context, path string) (string, error)
}
