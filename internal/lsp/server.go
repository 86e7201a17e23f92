// Package lsp implements the Language Server Protocol surface of lodestar.
// The server itself holds no analysis smarts: request handlers drive the
// workspace synchronization core to make the right file set available, then
// hand off to a pluggable semantic provider.
package lsp

import (
	"context"
	"os"
	"path/filepath"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/lodestar-ls/lodestar/internal/analysis"
	"github.com/lodestar-ls/lodestar/internal/cli/config"
	"github.com/lodestar-ls/lodestar/internal/source"
	"github.com/lodestar-ls/lodestar/internal/vfs"
	"github.com/lodestar-ls/lodestar/internal/workspace"
)

// Server implements the LSP server for lodestar.
type Server struct {
	cfg *config.Config

	// manager is the synchronization core; built at initialize time, once
	// the workspace root is known.
	manager *workspace.Manager

	// provider answers semantic requests after the core has synchronized.
	provider Provider

	// conn is the JSON-RPC connection.
	conn jsonrpc2.Conn

	// client is the LSP client interface, used for server→client requests.
	client protocol.Client

	logger *zap.Logger

	// rootPath is the filesystem path of the workspace root.
	rootPath string

	capabilities protocol.ServerCapabilities

	// cancel signals server shutdown.
	cancel context.CancelFunc
}

// NewServer creates an LSP server with the given configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		provider: nopProvider{},
		logger:   logger,
		capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save: &protocol.SaveOptions{
					IncludeText: false,
				},
			},
			HoverProvider: true,
			DefinitionProvider: &protocol.DefinitionOptions{
				WorkDoneProgressOptions: protocol.WorkDoneProgressOptions{
					WorkDoneProgress: false,
				},
			},
			ReferencesProvider:      true,
			WorkspaceSymbolProvider: true,
		},
	}
}

// SetProvider plugs in the semantic engine. The default provider answers
// every request with an empty result.
func (s *Server) SetProvider(p Provider) {
	if p != nil {
		s.provider = p
	}
}

// Manager returns the synchronization core, nil before initialize.
func (s *Server) Manager() *workspace.Manager {
	return s.manager
}

// Run starts the LSP server over stdin/stdout and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting lodestar language server")

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	stream := jsonrpc2.NewStream(stdrwc{})
	conn := jsonrpc2.NewConn(stream)
	s.conn = conn
	s.client = protocol.ClientDispatcher(conn, s.logger.Named("client"))

	conn.Go(ctx, s.handler())

	<-ctx.Done()

	s.logger.Info("shutting down lodestar language server")
	if s.manager != nil {
		s.manager.Close()
	}
	return conn.Close()
}

// handler returns the JSON-RPC handler function.
func (s *Server) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("received request", zap.String("method", req.Method()))

		switch req.Method() {
		case protocol.MethodInitialize:
			return s.handleInitialize(ctx, reply, req)
		case protocol.MethodInitialized:
			return reply(ctx, nil, nil)
		case protocol.MethodShutdown:
			return reply(ctx, nil, nil)
		case protocol.MethodExit:
			return s.handleExit(ctx, reply, req)
		case protocol.MethodTextDocumentDidOpen:
			return s.handleTextDocumentDidOpen(ctx, reply, req)
		case protocol.MethodTextDocumentDidChange:
			return s.handleTextDocumentDidChange(ctx, reply, req)
		case protocol.MethodTextDocumentDidClose:
			return s.handleTextDocumentDidClose(ctx, reply, req)
		case protocol.MethodTextDocumentDidSave:
			return s.handleTextDocumentDidSave(ctx, reply, req)
		case protocol.MethodTextDocumentHover:
			return s.handleTextDocumentHover(ctx, reply, req)
		case protocol.MethodTextDocumentDefinition:
			return s.handleTextDocumentDefinition(ctx, reply, req)
		case protocol.MethodTextDocumentReferences:
			return s.handleTextDocumentReferences(ctx, reply, req)
		case protocol.MethodWorkspaceSymbol:
			return s.handleWorkspaceSymbol(ctx, reply, req)
		case protocol.MethodWorkspaceDidChangeWatchedFiles:
			return s.handleDidChangeWatchedFiles(ctx, reply, req)
		default:
			return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
		}
	}
}

// buildManager wires the synchronization core for the resolved workspace
// root: either a local disk source or the remote client on the other end of
// this very connection.
func (s *Server) buildManager() error {
	fs := vfs.New(s.logger.Named("vfs"))
	host := analysis.NewTSHost(fs, s.logger.Named("analysis"))

	var (
		src source.Source
		err error
	)
	switch s.cfg.Source {
	case config.SourceRemote:
		src = source.NewRemote(newClientSource(s.conn, s.rootPath), s.logger.Named("source"))
	default:
		src, err = source.NewLocal(s.rootPath, s.logger.Named("source"))
		if err != nil {
			return err
		}
	}

	s.manager = workspace.NewManager(src, host, fs, workspace.Options{
		FetchConcurrency: s.cfg.Fetch.Concurrency,
		CrawlDepth:       s.cfg.Crawl.Depth,
	}, s.logger.Named("workspace"))
	return nil
}

// workspaceRootFrom resolves the workspace root from initialize params, in
// the order the protocol prefers them.
func workspaceRootFrom(params *protocol.InitializeParams) string {
	if len(params.WorkspaceFolders) > 0 {
		return uri.URI(params.WorkspaceFolders[0].URI).Filename()
	}
	if params.RootURI != "" {
		return params.RootURI.Filename()
	}
	if params.RootPath != "" {
		return params.RootPath
	}
	cwd, err := os.Getwd()
	if err != nil {
		return string(filepath.Separator)
	}
	return cwd
}

// replyWithError sends an LSP-compliant error response.
func (s *Server) replyWithError(ctx context.Context, reply jsonrpc2.Replier, code jsonrpc2.Code, message string) error {
	return reply(ctx, nil, &jsonrpc2.Error{
		Code:    code,
		Message: message,
	})
}

// stdrwc implements io.ReadWriteCloser for stdin/stdout.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
