package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"baton/internal/graph"
	"baton/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Validate a plan without running it",
	Long: `Validate parses the plan and builds its dependency graph, reporting
duplicate ids, dependencies on unknown tasks, and circular dependencies.
Nothing is executed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		if _, err := graph.Build(tasks); err != nil {
			return fmt.Errorf("invalid plan: %w", err)
		}
		color.Green("plan is valid: %d tasks", len(tasks))
		return nil
	},
}
