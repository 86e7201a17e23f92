package source

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Client is the narrow view of the editor-side connection the remote source
// needs. The LSP layer adapts the live jsonrpc2 connection to it; tests supply
// fakes. Implementations are expected to return the package error taxonomy
// (ErrNotFound, ErrSourceUnavailable) where they can classify failures.
type Client interface {
	WorkspaceFiles(ctx context.Context, base string) ([]string, error)
	FileContent(ctx context.Context, path string) (string, error)
}

// Remote serves workspace content by asking the editor-side client.
type Remote struct {
	client Client
	logger *zap.Logger
}

// NewRemote creates a Source backed by the given client.
func NewRemote(client Client, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{client: client, logger: logger}
}

// ListFiles implements Source.
func (r *Remote) ListFiles(ctx context.Context, base string) ([]string, error) {
	paths, err := r.client.WorkspaceFiles(ctx, base)
	if err != nil {
		return nil, classify(err, "list workspace files")
	}
	r.logger.Debug("remote listing complete",
		zap.String("base", base), zap.Int("files", len(paths)))
	return paths, nil
}

// GetContent implements Source.
func (r *Remote) GetContent(ctx context.Context, path string) (string, error) {
	text, err := r.client.FileContent(ctx, path)
	if err != nil {
		return "", classify(err, "fetch "+path)
	}
	return text, nil
}

// classify folds unrecognized client failures into ErrSourceUnavailable while
// letting taxonomy and context errors pass through unchanged.
func classify(err error, op string) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDecode),
		errors.Is(err, ErrSourceUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrSourceUnavailable, err)
	}
}
