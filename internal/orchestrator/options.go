package orchestrator

import (
	"time"

	"baton/internal/state"
)

// DefaultMaxConcurrency is the number of workers dispatched concurrently
// within a round when no option overrides it.
const DefaultMaxConcurrency = 4

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxConcurrency int
	taskTimeout    time.Duration
	store          state.Store
	logger         *DebugLogger
	eventBuffer    int
}

// WithMaxConcurrency sets the maximum number of tasks dispatched
// concurrently within a round. 1 yields strictly sequential execution.
func WithMaxConcurrency(n int) Option {
	return func(o *orchestratorOptions) { o.maxConcurrency = n }
}

// WithTaskTimeout sets the per-task timeout. Zero disables the timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.taskTimeout = d }
}

// WithStateStore sets the store used to persist runs and task outcomes.
// If nil, persistence is disabled.
func WithStateStore(s state.Store) Option {
	return func(o *orchestratorOptions) { o.store = s }
}

// WithDebugLogger sets the debug logger for orchestrator internals.
func WithDebugLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}
