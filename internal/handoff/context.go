// Package handoff accumulates completed task outputs and exposes them to
// downstream workers as read-only snapshots.
package handoff

import (
	"errors"
	"fmt"
	"sync"

	"baton/pkg/models"
)

var (
	// ErrAlreadyRecorded indicates a second write for the same task id.
	ErrAlreadyRecorded = errors.New("output already recorded")
	// ErrNotFound indicates no output has been recorded for the task id.
	ErrNotFound = errors.New("output not found")
)

// Context maps task ids to their outputs in completion order. Each entry is
// written exactly once; workers read entries from earlier rounds, so reads
// never race with the write that produced them.
type Context struct {
	mu      sync.RWMutex
	outputs map[string]models.Payload
	order   []string
}

// New creates an empty handoff context.
func New() *Context {
	return &Context{outputs: make(map[string]models.Payload)}
}

// Record stores the output of a completed task. It fails if the task id has
// already been recorded.
func (c *Context) Record(taskID string, output models.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.outputs[taskID]; exists {
		return fmt.Errorf("task %q: %w", taskID, ErrAlreadyRecorded)
	}
	c.outputs[taskID] = output
	c.order = append(c.order, taskID)
	return nil
}

// Get returns the recorded output for a task id.
func (c *Context) Get(taskID string) (models.Payload, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	output, ok := c.outputs[taskID]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", taskID, ErrNotFound)
	}
	return output, nil
}

// Len returns the number of recorded outputs.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.outputs)
}

// Snapshot returns an immutable view of the context as of the current round.
// Workers dispatched with a snapshot do not observe outputs recorded later.
func (c *Context) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &Snapshot{
		outputs: make(map[string]models.Payload, len(c.outputs)),
		order:   make([]string, len(c.order)),
	}
	copy(snap.order, c.order)
	for id, output := range c.outputs {
		snap.outputs[id] = output
	}
	return snap
}

// Snapshot is a read-only view of a handoff context at dispatch time.
type Snapshot struct {
	outputs map[string]models.Payload
	order   []string
}

// Get returns the output recorded for a task id, if present.
func (s *Snapshot) Get(taskID string) (models.Payload, bool) {
	output, ok := s.outputs[taskID]
	return output, ok
}

// IDs returns the recorded task ids in completion order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.outputs)
}
