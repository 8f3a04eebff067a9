package orchestrator

import "errors"

// Run-time errors. Task-local failures are contained to the task's subtree;
// only ErrStalled is fatal to the whole run.
var (
	// ErrStalled indicates the ready set is empty while the graph is
	// non-terminal and nothing is in flight. This is an internal invariant
	// violation, not a task failure.
	ErrStalled = errors.New("scheduler stalled: no ready tasks and graph not terminal")
	// ErrTaskTimeout indicates a handler exceeded the per-task timeout.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrHandlerFailed wraps an error returned (or a panic raised) by a
	// worker handler.
	ErrHandlerFailed = errors.New("handler execution failed")
)
