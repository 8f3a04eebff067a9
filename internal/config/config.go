// Package config handles configuration loading and management for baton.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for baton.
type Config struct {
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DefaultsConfig holds default values for orchestration runs.
type DefaultsConfig struct {
	// MaxConcurrency bounds tasks dispatched concurrently within a round.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// TaskTimeout is the per-task timeout. Zero disables it.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// StoreConfig holds run-history persistence settings.
type StoreConfig struct {
	// Enabled toggles run persistence.
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the default database location.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds debug logging settings.
type LoggingConfig struct {
	// DebugLog is the path of the debug log file. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (BATON_*)
// 2. Project config (.baton.yaml in current directory or a parent)
// 3. User config (~/.config/baton/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("BATON")
	v.AutomaticEnv()
	v.BindEnv("defaults.max_concurrency", "BATON_MAX_CONCURRENCY")
	v.BindEnv("defaults.task_timeout", "BATON_TASK_TIMEOUT")
	v.BindEnv("store.path", "BATON_STORE_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("defaults.max_concurrency", 4)
	v.SetDefault("defaults.task_timeout", "10m")
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "")
	v.SetDefault("logging.debug_log", "")
}

// getUserConfigDir returns the XDG config directory for baton.
func getUserConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "baton")
}

// findProjectConfig searches the current directory and its parents for a
// .baton.yaml file.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".baton.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
