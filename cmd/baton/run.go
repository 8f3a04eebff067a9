package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"baton/internal/config"
	"baton/internal/orchestrator"
	"baton/internal/plan"
	"baton/internal/state"
	"baton/pkg/models"
)

var (
	runMaxConcurrency int
	runTaskTimeout    time.Duration
	runNoStore        bool
	runWorkDir        string
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Run a plan of orchestrated tasks",
	Long: `Run executes every task in the plan, honoring dependency order.

Tasks whose dependencies are all complete run concurrently, bounded by
--max-concurrency (1 forces strictly sequential execution). A failing task
skips its dependents; independent branches keep running. The exit code is
non-zero when any task failed or was skipped.

Built-in capabilities:
  shell  runs input.command through "sh -c" and captures stdout
  echo   returns its input unchanged (dry-runs, wiring checks)

Press Ctrl-C to cancel: tasks already dispatched finish, the rest are
skipped, and the partial result is still reported and persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	runCmd.Flags().IntVar(&runMaxConcurrency, "max-concurrency", 0, "Max tasks dispatched concurrently per round (0 = config default)")
	runCmd.Flags().DurationVar(&runTaskTimeout, "task-timeout", 0, "Per-task timeout (0 = config default)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Skip persisting this run to the history store")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", "", "Working directory for shell tasks (default: current directory)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	tasks, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)

	// Cancel on SIGINT/SIGTERM; in-flight tasks finish, the rest skip.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executePlan(ctx, cfg, tasks)
	if result != nil {
		printSummary(result)
	}
	if err != nil {
		return err
	}
	if result.Status != models.RunSuccess {
		os.Exit(1)
	}
	return nil
}

// applyRunFlags folds command-line overrides into the loaded config.
func applyRunFlags(cfg *config.Config) {
	if runMaxConcurrency > 0 {
		cfg.Defaults.MaxConcurrency = runMaxConcurrency
	}
	if runTaskTimeout > 0 {
		cfg.Defaults.TaskTimeout = runTaskTimeout
	}
	if runNoStore {
		cfg.Store.Enabled = false
	}
}

// executePlan wires config, store, and registry into one orchestration run.
func executePlan(ctx context.Context, cfg *config.Config, tasks []*models.Task) (*models.RunResult, error) {
	opts := []orchestrator.Option{
		orchestrator.WithMaxConcurrency(cfg.Defaults.MaxConcurrency),
		orchestrator.WithTaskTimeout(cfg.Defaults.TaskTimeout),
	}

	if cfg.Store.Enabled {
		storePath := cfg.Store.Path
		if storePath == "" {
			storePath = state.DefaultPath()
		}
		store, err := state.Open(storePath)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
		defer store.Close()
		opts = append(opts, orchestrator.WithStateStore(store))
	}

	if cfg.Logging.DebugLog != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Logging.DebugLog)
		if err != nil {
			return nil, err
		}
		defer logger.Close()
		opts = append(opts, orchestrator.WithDebugLogger(logger))
	}

	orch := orchestrator.New(buildRegistry(runWorkDir), opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(orch.Events())
	}()

	result, err := orch.Run(ctx, tasks)
	<-done
	return result, err
}
