package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lodestar",
		Short: "Lodestar TypeScript language server for remote workspaces",
		Long: `Lodestar is a TypeScript/JavaScript language server built for workspaces
that live behind a remote content source. It synchronizes files on demand,
discovers project boundaries from tsconfig marker files, and crawls import
graphs so analysis always sees the files it needs.`,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(lspCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
