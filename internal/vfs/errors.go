package vfs

import "errors"

// Standard errors returned by the virtual file system.
var (
	// ErrNotFound indicates the path has no record at all.
	ErrNotFound = errors.New("file not found")

	// ErrNotFetched indicates the path is known to exist upstream but its
	// content has not been fetched yet.
	ErrNotFetched = errors.New("file content not fetched")
)
