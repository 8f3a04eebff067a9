package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"baton/internal/graph"
	"baton/internal/plan"
)

var graphCmd = &cobra.Command{
	Use:   "graph <plan.yaml>",
	Short: "Show the execution structure of a plan",
	Long: `Graph prints the plan's topological order and its dependency layers.
Tasks in the same layer have no dependency path between them and can run in
the same round.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		g, err := graph.Build(tasks)
		if err != nil {
			return fmt.Errorf("invalid plan: %w", err)
		}

		fmt.Println("topological order:")
		fmt.Printf("  %s\n\n", strings.Join(g.TopologicalSort(), " -> "))

		fmt.Println("layers:")
		for i, layer := range g.Layers() {
			fmt.Printf("  %d: %s\n", i, strings.Join(layer, ", "))
		}
		return nil
	},
}
