package models

import "time"

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	// TaskStatePending indicates the task is waiting on dependencies.
	TaskStatePending TaskState = "pending"
	// TaskStateReady indicates all dependencies are completed and the task
	// is eligible for dispatch.
	TaskStateReady TaskState = "ready"
	// TaskStateRunning indicates the task has been dispatched to a worker.
	TaskStateRunning TaskState = "running"
	// TaskStateCompleted indicates the worker finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed indicates the worker returned an error or timed out.
	TaskStateFailed TaskState = "failed"
	// TaskStateSkipped indicates the task was never dispatched because a
	// dependency failed, a dependency was skipped, or the run was cancelled.
	TaskStateSkipped TaskState = "skipped"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateReady, TaskStateRunning,
		TaskStateCompleted, TaskStateFailed, TaskStateSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state is final for one execution.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateSkipped:
		return true
	default:
		return false
	}
}

// Payload is the opaque key/value data passed into and produced by workers.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Task represents a unit of orchestrated work bound to one capability.
type Task struct {
	// ID is the unique identifier for this task within one run.
	ID string `json:"id"`
	// Capability names the specialist a worker must provide (e.g. "architect").
	Capability string `json:"capability"`
	// DependsOn lists task IDs that must complete before this task may start.
	DependsOn []string `json:"depends_on,omitempty"`
	// Input is the payload handed to the worker at dispatch time.
	Input Payload `json:"input,omitempty"`
	// State is the current lifecycle state. States advance monotonically;
	// a terminal state is never revisited within one execution.
	State TaskState `json:"state"`
	// Output is the payload produced by the worker. Set if and only if the
	// task completed; read-only thereafter.
	Output Payload `json:"output,omitempty"`
	// Error contains the failure message when State is failed.
	Error string `json:"error,omitempty"`
	// SkipReason explains why the task was skipped (e.g. "dependency_failed:a").
	SkipReason string `json:"skip_reason,omitempty"`
	// StartedAt is when the task was dispatched, if it ever ran.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// FinishedAt is when the task reached a terminal state.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
