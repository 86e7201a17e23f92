package source

import "errors"

// Standard errors returned by content sources.
var (
	// ErrSourceUnavailable indicates the source could not be reached at all.
	// Retryable; never cached by the fetch coordinator.
	ErrSourceUnavailable = errors.New("content source unavailable")

	// ErrNotFound indicates the path does not exist upstream.
	ErrNotFound = errors.New("file does not exist upstream")

	// ErrDecode indicates the file content is not valid UTF-8 text. Callers
	// walking a tree skip such files rather than failing the walk.
	ErrDecode = errors.New("file content is not valid text")
)
