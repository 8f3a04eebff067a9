package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"baton/internal/exec"
	"baton/internal/orchestrator"
	"baton/internal/worker"
	"baton/pkg/models"
)

// buildRegistry returns a registry with the built-in capabilities.
// Embedding systems register their own specialists against the same contract.
func buildRegistry(workDir string) *worker.Registry {
	registry := worker.NewRegistry()
	registry.Register("shell", worker.NewShellHandler(exec.NewRunner(), workDir))
	registry.Register("echo", worker.NewEchoHandler())
	return registry
}

// printEvents streams run events to stdout until the channel closes.
func printEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventRunStarted:
			fmt.Printf("run %s started (%s)\n", ev.RunID, ev.Message)
		case orchestrator.EventTaskStarted:
			fmt.Printf("  [round %d] %s (%s) started\n", ev.Round, ev.TaskID, ev.Capability)
		case orchestrator.EventTaskCompleted:
			color.Green("  [round %d] %s completed", ev.Round, ev.TaskID)
		case orchestrator.EventTaskFailed:
			color.Red("  [round %d] %s failed: %v", ev.Round, ev.TaskID, ev.Err)
		case orchestrator.EventTaskSkipped:
			color.Yellow("  %s skipped (%s)", ev.TaskID, ev.Message)
		}
	}
}

// printSummary prints the per-task outcome table and overall status.
func printSummary(result *models.RunResult) {
	fmt.Println()
	for _, o := range result.Outcomes {
		switch o.State {
		case models.TaskStateCompleted:
			color.Green("  ✓ %-20s %s", o.ID, o.Capability)
		case models.TaskStateFailed:
			color.Red("  ✗ %-20s %s: %s", o.ID, o.Capability, o.Error)
		case models.TaskStateSkipped:
			color.Yellow("  - %-20s %s (%s)", o.ID, o.Capability, o.SkipReason)
		default:
			fmt.Printf("  ? %-20s %s (%s)\n", o.ID, o.Capability, o.State)
		}
	}

	elapsed := result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)
	if result.Status == models.RunSuccess {
		color.Green("\nrun %s: success (%d tasks in %s)", result.RunID, len(result.Outcomes), elapsed)
	} else {
		color.Red("\nrun %s: partial failure (%d tasks in %s)", result.RunID, len(result.Outcomes), elapsed)
	}
}
