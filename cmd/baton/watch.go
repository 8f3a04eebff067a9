package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"baton/internal/config"
	"baton/internal/plan"
)

var watchCmd = &cobra.Command{
	Use:   "watch <plan.yaml>",
	Short: "Re-run a plan whenever its file changes",
	Long: `Watch runs the plan once, then watches the plan file and re-runs it on
every change. Useful while iterating on a plan. Ctrl-C stops watching; a run
in progress finishes its current round first.`,
	Args: cobra.ExactArgs(1),
	RunE: watchPlan,
}

func watchPlan(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file on save, which
	// drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(planPath)); err != nil {
		return fmt.Errorf("watch %s: %w", planPath, err)
	}

	runOnce := func() {
		tasks, err := plan.Load(planPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "plan error: %v\n", err)
			return
		}
		result, err := executePlan(ctx, cfg, tasks)
		if result != nil {
			printSummary(result)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "run error: %v\n", err)
		}
	}

	runOnce()
	fmt.Printf("\nwatching %s for changes...\n", planPath)

	// Debounce bursts of write events from a single save.
	var pending *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(planPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case <-trigger:
			fmt.Printf("\nplan changed, re-running...\n")
			runOnce()
			fmt.Printf("\nwatching %s for changes...\n", planPath)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
