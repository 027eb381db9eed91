package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	opts := &globalOptions{}

	var rootCmd = &cobra.Command{
		Use:   "hierview",
		Short: "hierview - hierarchy graph viewer",
		Long: `hierview turns org-chart and entity-tree records into a laid-out graph,
publishes only what changed, and keeps the viewport fitted to the content.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(rootCmd)

	// Add commands
	rootCmd.AddCommand(newRenderCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))
	rootCmd.AddCommand(newViewCommand(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
