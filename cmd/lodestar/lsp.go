package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lodestar-ls/lodestar/internal/cli/config"
	"github.com/lodestar-ls/lodestar/internal/lsp"
	"github.com/lodestar-ls/lodestar/internal/watch"
)

var (
	lspSource string
	lspWatch  bool
)

func init() {
	lspCmd.Flags().StringVar(&lspSource, "source", "", "Content source: local or remote (overrides config file)")
	lspCmd.Flags().BoolVar(&lspWatch, "watch", true, "Watch the workspace for changes (local source only)")
}

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Start the language server",
	Long:  "Start the lodestar language server, speaking LSP over stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if lspSource != "" {
			cfg.Source = config.Source(lspSource)
		}

		logger, err := buildLogger(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := lsp.NewServer(cfg, logger)

		// In local mode, keep the caches honest while the tree changes
		// underneath us.
		if cfg.Source == config.SourceLocal && lspWatch {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			watcher, err := watch.New(root, func(files []string) {
				if m := server.Manager(); m != nil {
					watch.Route(m, root, files)
				}
			}, logger.Named("watch"))
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				return err
			}
			defer func() { _ = watcher.Stop() }()
		}

		return server.Run(ctx)
	},
}

// buildLogger creates the stderr zap logger; stdout belongs to the protocol.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
