package models

import "time"

// RunStatus represents the overall outcome of an orchestration run.
type RunStatus string

const (
	// RunSuccess indicates every task reached the completed state.
	RunSuccess RunStatus = "success"
	// RunPartialFailure indicates at least one task failed or was skipped.
	RunPartialFailure RunStatus = "partial_failure"
)

// TaskOutcome is the per-task record returned to the caller on termination.
type TaskOutcome struct {
	ID         string     `json:"id"`
	Capability string     `json:"capability"`
	State      TaskState  `json:"state"`
	Output     Payload    `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	SkipReason string     `json:"skip_reason,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunResult is what the engine returns once a run reaches a terminal state.
// The outcome list is always complete: every submitted task appears exactly
// once, even on partial failure.
type RunResult struct {
	RunID      string        `json:"run_id"`
	Status     RunStatus     `json:"status"`
	Outcomes   []TaskOutcome `json:"outcomes"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Outcome returns the record for the given task ID, or nil if not present.
func (r *RunResult) Outcome(taskID string) *TaskOutcome {
	for i := range r.Outcomes {
		if r.Outcomes[i].ID == taskID {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// StatusFromOutcomes derives the run status from a complete outcome list.
func StatusFromOutcomes(outcomes []TaskOutcome) RunStatus {
	for _, o := range outcomes {
		if o.State != TaskStateCompleted {
			return RunPartialFailure
		}
	}
	return RunSuccess
}
