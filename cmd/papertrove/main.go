// Package main provides the CLI entry point for the papertrove search
// core.
//
// Start the server:
//
//	papertrove serve --config papertrove.yaml
//
// With no config file the server runs in single-binary dev mode:
// in-memory store, in-memory blobs, no auth, no embeddings.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "papertrove",
		Short: "Papertrove - contextual document search core",
		Long: `Papertrove ingests documents, extracts searchable metadata, and
serves hybrid keyword plus semantic search with autocomplete over a
multi-tenant HTTP API.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildTokenCmd(),
	)
	return rootCmd
}
