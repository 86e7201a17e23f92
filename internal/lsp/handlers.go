package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/lodestar-ls/lodestar/internal/vfs"
)

// codeRequestCancelled is the LSP error code for a request aborted by the
// client. Distinguished from real failures so clients retry cleanly.
const codeRequestCancelled jsonrpc2.Code = -32800

// handleInitialize handles the initialize request: it pins the workspace
// root and assembles the synchronization core around it.
func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse initialize params")
	}

	s.rootPath = workspaceRootFrom(&params)
	s.logger.Info("workspace root resolved", zap.String("root", s.rootPath))

	if err := s.buildManager(); err != nil {
		s.logger.Error("failed to assemble workspace core", zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, err.Error())
	}

	result := protocol.InitializeResult{
		Capabilities: s.capabilities,
		ServerInfo: &protocol.ServerInfo{
			Name:    "lodestar",
			Version: "0.1.0",
		},
	}
	return reply(ctx, result, nil)
}

// handleExit handles the exit notification.
func (s *Server) handleExit(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if err := reply(ctx, nil, nil); err != nil {
		s.logger.Warn("error replying to exit", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// handleTextDocumentDidOpen records an opened document in the core.
func (s *Server) handleTextDocumentDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse didOpen params")
	}

	path := s.workspacePath(params.TextDocument.URI)
	s.logger.Debug("document opened",
		zap.String("path", path), zap.Int32("version", params.TextDocument.Version))
	s.manager.DidOpen(path, params.TextDocument.Text)

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidChange records a full-document edit in the core.
func (s *Server) handleTextDocumentDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse didChange params")
	}
	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}

	// Full document sync: the last change carries the whole text.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	path := s.workspacePath(params.TextDocument.URI)
	s.manager.DidChange(path, text)

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidClose records a closed document.
func (s *Server) handleTextDocumentDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse didClose params")
	}

	s.manager.DidClose(s.workspacePath(params.TextDocument.URI))
	return reply(ctx, nil, nil)
}

// handleTextDocumentDidSave records a saved document.
func (s *Server) handleTextDocumentDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse didSave params")
	}

	s.manager.DidSave(s.workspacePath(params.TextDocument.URI))
	return reply(ctx, nil, nil)
}

// handleTextDocumentHover synchronizes the file's dependency closure, then
// asks the provider.
func (s *Server) handleTextDocumentHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.HoverParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse hover params")
	}

	path := s.workspacePath(params.TextDocument.URI)
	if err := s.manager.EnsureForPointOperation(ctx, path); err != nil {
		return s.replyEnsureError(ctx, reply, "hover", path, err)
	}

	hover, err := s.provider.Hover(path, params.Position)
	if err != nil {
		s.logger.Warn("hover provider failed", zap.String("path", path), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "failed to compute hover")
	}
	return reply(ctx, hover, nil)
}

// handleTextDocumentDefinition synchronizes like hover, then asks the
// provider for definition locations.
func (s *Server) handleTextDocumentDefinition(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DefinitionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse definition params")
	}

	path := s.workspacePath(params.TextDocument.URI)
	if err := s.manager.EnsureForPointOperation(ctx, path); err != nil {
		return s.replyEnsureError(ctx, reply, "definition", path, err)
	}

	locations, err := s.provider.Definition(path, params.Position)
	if err != nil {
		s.logger.Warn("definition provider failed", zap.String("path", path), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "failed to compute definition")
	}
	return reply(ctx, locations, nil)
}

// handleTextDocumentReferences needs the whole project, not just one file's
// closure.
func (s *Server) handleTextDocumentReferences(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.ReferenceParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse references params")
	}

	path := s.workspacePath(params.TextDocument.URI)
	if err := s.manager.EnsureForWorkspaceWideOperation(ctx); err != nil {
		// Partial synchronization still lets the provider answer from what
		// is available.
		s.logger.Warn("workspace synchronization incomplete", zap.Error(err))
	}

	locations, err := s.provider.References(path, params.Position)
	if err != nil {
		s.logger.Warn("references provider failed", zap.String("path", path), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "failed to compute references")
	}
	return reply(ctx, locations, nil)
}

// handleWorkspaceSymbol drives full-workspace readiness before querying.
func (s *Server) handleWorkspaceSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.WorkspaceSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse workspace symbol params")
	}

	if err := s.manager.EnsureForWorkspaceWideOperation(ctx); err != nil {
		s.logger.Warn("workspace synchronization incomplete", zap.Error(err))
	}

	symbols, err := s.provider.WorkspaceSymbols(params.Query)
	if err != nil {
		s.logger.Warn("workspace symbol provider failed", zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "failed to compute workspace symbols")
	}
	return reply(ctx, symbols, nil)
}

// handleDidChangeWatchedFiles routes client-side file change notifications
// into cache invalidation.
func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeWatchedFilesParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse watched files params")
	}

	for _, change := range params.Changes {
		path := s.workspacePath(change.URI)
		s.logger.Debug("watched file changed",
			zap.String("path", path), zap.Uint32("type", uint32(change.Type)))
		s.manager.InvalidatePath(path)
		if change.Type == protocol.FileChangeTypeCreated || change.Type == protocol.FileChangeTypeDeleted {
			s.manager.InvalidateStructure()
		}
	}
	return reply(ctx, nil, nil)
}

// replyEnsureError maps a synchronization failure on the requested path to
// the right protocol error, keeping cancellation distinct from real errors.
func (s *Server) replyEnsureError(ctx context.Context, reply jsonrpc2.Replier, op, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return s.replyWithError(ctx, reply, codeRequestCancelled, "request cancelled")
	}
	s.logger.Warn("synchronization failed",
		zap.String("op", op), zap.String("path", path), zap.Error(err))
	return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "failed to synchronize "+path)
}

// workspacePath converts a document URI into the canonical workspace path.
func (s *Server) workspacePath(docURI protocol.DocumentURI) string {
	filename := uri.URI(docURI).Filename()
	rel, err := filepath.Rel(s.rootPath, filename)
	if err != nil || strings.HasPrefix(rel, "..") {
		// Outside the workspace root: keep the absolute form.
		return vfs.Normalize(filepath.ToSlash(filename))
	}
	return vfs.Normalize(filepath.ToSlash(rel))
}

// documentURI converts a workspace path back into a client-facing URI.
func (s *Server) documentURI(path string) protocol.DocumentURI {
	full := filepath.Join(s.rootPath, filepath.FromSlash(strings.TrimPrefix(vfs.Normalize(path), "/")))
	return protocol.DocumentURI(uri.File(full))
}
