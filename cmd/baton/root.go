package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "baton",
	Short: "Dependency-aware task orchestration engine",
	Long: `Baton runs plans of interdependent tasks across pluggable workers.

A plan declares tasks, the capability each one needs, and the dependencies
between them. Baton validates the dependency graph, then executes it in
bulk-synchronous rounds: every task whose dependencies are complete is
dispatched concurrently (up to the concurrency limit), outputs are handed
forward to dependent tasks, and failures skip only the affected subtree.

Core capabilities:
- Build-time graph validation (cycles, unknown or duplicate ids)
- Bounded parallel dispatch with deterministic ordering
- Forward handoff of completed outputs to downstream workers
- Cascading skip on failure; a single failure never aborts the run
- Run history persisted to a local SQLite store`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
