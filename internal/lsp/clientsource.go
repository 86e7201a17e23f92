package lsp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lodestar-ls/lodestar/internal/source"
	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// Client-side file access extension methods. The editor client serves the
// workspace over the LSP connection itself, so the server never needs disk
// access to the (possibly remote) workspace.
const (
	methodWorkspaceFiles = "workspace/xfiles"
	methodFileContent    = "textDocument/xcontent"
)

// filesParams is the request payload for workspace/xfiles.
type filesParams struct {
	Base string `json:"base,omitempty"`
}

// contentParams is the request payload for textDocument/xcontent.
type contentParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

// clientSource implements source.Client over the live jsonrpc2 connection.
type clientSource struct {
	conn     jsonrpc2.Conn
	rootPath string
}

func newClientSource(conn jsonrpc2.Conn, rootPath string) *clientSource {
	return &clientSource{conn: conn, rootPath: rootPath}
}

// WorkspaceFiles implements source.Client.
func (c *clientSource) WorkspaceFiles(ctx context.Context, base string) ([]string, error) {
	params := filesParams{}
	if base != "" && base != "/" {
		params.Base = string(c.uri(base))
	}

	var result []protocol.TextDocumentIdentifier
	if _, err := c.conn.Call(ctx, methodWorkspaceFiles, params, &result); err != nil {
		return nil, classifyRPC(err)
	}

	paths := make([]string, 0, len(result))
	for _, doc := range result {
		paths = append(paths, c.path(doc.URI))
	}
	return paths, nil
}

// FileContent implements source.Client.
func (c *clientSource) FileContent(ctx context.Context, path string) (string, error) {
	params := contentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: c.uri(path)},
	}

	var result protocol.TextDocumentItem
	if _, err := c.conn.Call(ctx, methodFileContent, params, &result); err != nil {
		return "", classifyRPC(err)
	}
	return result.Text, nil
}

// classifyRPC maps jsonrpc2 failures onto the source error taxonomy. A
// well-formed error response from the client means the document is not
// servable; transport-level failures mean the source is unreachable.
func classifyRPC(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %s", source.ErrNotFound, rpcErr.Message)
	}
	return fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
}

func (c *clientSource) uri(path string) protocol.DocumentURI {
	full := filepath.Join(c.rootPath, filepath.FromSlash(strings.TrimPrefix(vfs.Normalize(path), "/")))
	return protocol.DocumentURI(uri.File(full))
}

func (c *clientSource) path(docURI protocol.DocumentURI) string {
	filename := uri.URI(docURI).Filename()
	rel, err := filepath.Rel(c.rootPath, filename)
	if err != nil || strings.HasPrefix(rel, "..") {
		return vfs.Normalize(filepath.ToSlash(filename))
	}
	return vfs.Normalize(filepath.ToSlash(rel))
}
