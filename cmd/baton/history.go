package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"baton/internal/config"
	"baton/internal/state"
	"baton/pkg/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show persisted runs and their task outcomes",
	Long: `History lists recent orchestration runs from the local store.
With a run id, it shows that run's full per-task outcome list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = state.DefaultPath()
	}
	store, err := state.Open(storePath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	if len(args) == 1 {
		return showRun(store, args[0])
	}
	return listRuns(store)
}

func listRuns(store *state.DB) error {
	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, run := range runs {
		elapsed := "-"
		if run.FinishedAt != nil {
			elapsed = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		line := fmt.Sprintf("%s  %-16s  %d tasks  %s  %s",
			run.ID, run.Status, run.TaskCount, run.StartedAt.Local().Format("2006-01-02 15:04:05"), elapsed)
		switch run.Status {
		case models.RunSuccess:
			color.Green(line)
		case models.RunPartialFailure:
			color.Red(line)
		default:
			fmt.Println(line)
		}
	}
	return nil
}

func showRun(store *state.DB, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	outcomes, err := store.GetOutcomes(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s (%d tasks)\n\n", run.ID, run.Status, run.TaskCount)
	printSummary(&models.RunResult{
		RunID:      run.ID,
		Status:     run.Status,
		Outcomes:   outcomes,
		StartedAt:  run.StartedAt,
		FinishedAt: derefTime(run.FinishedAt, run.StartedAt),
	})
	return nil
}

func derefTime(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}
