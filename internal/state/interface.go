package state

import (
	"time"

	"baton/pkg/models"
)

// Store persists runs and per-task outcomes for audit and history queries.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateRun records the start of an orchestration run.
	CreateRun(runID string, taskCount int, startedAt time.Time) error
	// FinishRun records the terminal status of a run.
	FinishRun(runID string, status models.RunStatus, finishedAt time.Time) error
	// RecordOutcome persists one task's final record for a run.
	RecordOutcome(runID string, outcome models.TaskOutcome) error
	// GetRun returns a persisted run by id.
	GetRun(runID string) (*Run, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)
	// GetOutcomes returns the task outcomes of a run, ascending by task id.
	GetOutcomes(runID string) ([]models.TaskOutcome, error)
	// Close releases the underlying resources.
	Close() error
}

// Run is a persisted orchestration run.
type Run struct {
	ID         string           `json:"id"`
	Status     models.RunStatus `json:"status"`
	TaskCount  int              `json:"task_count"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}
