// Package orchestrator coordinates dependency-ordered task execution across
// registered workers.
package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates an orchestration run has begun.
	EventRunStarted EventType = "run_started"
	// EventRoundStarted indicates a new dispatch round has begun.
	EventRoundStarted EventType = "round_started"
	// EventTaskQueued indicates a task is ready and selected for dispatch.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a task has been handed to its worker.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was skipped due to an upstream
	// failure or cancellation.
	EventTaskSkipped EventType = "task_skipped"
	// EventRunDone indicates the run reached a terminal state.
	EventRunDone EventType = "run_done"
)

// Event represents an event emitted during an orchestration run.
// Consumers use these to drive progress output and audit trails.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the id of the run that emitted the event.
	RunID string
	// TaskID is the id of the related task, if applicable.
	TaskID string
	// Capability is the capability of the related task, if applicable.
	Capability string
	// Round is the dispatch round number, starting at 1.
	Round int
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
