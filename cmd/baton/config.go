package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"baton/internal/config"
	"baton/internal/state"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		storePath := cfg.Store.Path
		if storePath == "" {
			storePath = state.DefaultPath()
		}

		fmt.Printf("user config:       %s\n", config.GetUserConfigPath())
		fmt.Printf("max_concurrency:   %d\n", cfg.Defaults.MaxConcurrency)
		fmt.Printf("task_timeout:      %s\n", cfg.Defaults.TaskTimeout)
		fmt.Printf("store.enabled:     %v\n", cfg.Store.Enabled)
		fmt.Printf("store.path:        %s\n", storePath)
		fmt.Printf("logging.debug_log: %s\n", valueOrNone(cfg.Logging.DebugLog))
		return nil
	},
}

func valueOrNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}
