// Package graph provides the dependency graph that drives task scheduling.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"baton/pkg/models"
)

// Build-time validation errors. A graph that fails validation is rejected
// before execution ever starts.
var (
	// ErrCycleDetected indicates a circular dependency in the task set.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrUnknownDependency indicates a depends_on entry that references no task.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrDuplicateID indicates two tasks share the same id.
	ErrDuplicateID = errors.New("duplicate task id")
)

// TaskGraph is a directed acyclic graph of task dependencies for one run.
// Tasks are nodes; edges point from a task to the tasks it depends on.
// It is safe for concurrent use.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to the IDs of tasks it depends on.
	edges map[string][]string
	// order preserves submission order for stable iteration.
	order []string
}

// Build constructs and validates a graph from a slice of tasks.
// It rejects duplicate ids, dependencies on unknown tasks, and cycles.
func Build(tasks []*models.Task) (*TaskGraph, error) {
	g := &TaskGraph{
		nodes: make(map[string]*models.Task, len(tasks)),
		edges: make(map[string][]string, len(tasks)),
	}

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return nil, fmt.Errorf("task %q: %w", task.ID, ErrDuplicateID)
		}
		if task.State == "" {
			task.State = models.TaskStatePending
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
		g.order = append(g.order, task.ID)
	}

	// Second pass: build edges from DependsOn fields.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return nil, fmt.Errorf("task %q depends on %q: %w", task.ID, depID, ErrUnknownDependency)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycle() {
		return nil, ErrCycleDetected
	}

	return g, nil
}

// hasCycle reports whether the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *TaskGraph) hasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge to an in-progress node: cycle.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// ReadySet returns the IDs of tasks whose dependencies are all completed,
// in ascending id order for deterministic tie-breaking. Returned tasks are
// advanced from pending to ready.
func (g *TaskGraph) ReadySet() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ready []string
	for _, id := range g.order {
		task := g.nodes[id]
		if task.State != models.TaskStatePending && task.State != models.TaskStateReady {
			continue
		}

		allDepsComplete := true
		for _, depID := range g.edges[id] {
			if g.nodes[depID].State != models.TaskStateCompleted {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			task.State = models.TaskStateReady
			ready = append(ready, id)
		}
	}

	sort.Strings(ready)
	return ready
}

// Task returns the task for a given ID, or nil if not found.
func (g *TaskGraph) Task(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of tasks the given task depends on.
func (g *TaskGraph) Dependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// Dependents returns the IDs of tasks that depend directly on the given task.
func (g *TaskGraph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(taskID)
}

func (g *TaskGraph) dependentsLocked(taskID string) []string {
	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// MarkRunning records that a task has been dispatched to a worker.
func (g *TaskGraph) MarkRunning(taskID string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[taskID]
	if !ok || task.State.Terminal() {
		return
	}
	task.State = models.TaskStateRunning
	task.StartedAt = &at
}

// MarkCompleted records a successful task and stores its output.
// Completion affects subsequent calls to ReadySet.
func (g *TaskGraph) MarkCompleted(taskID string, output models.Payload, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[taskID]
	if !ok || task.State.Terminal() {
		return
	}
	task.State = models.TaskStateCompleted
	task.Output = output
	task.FinishedAt = &at
}

// MarkFailed records a task failure and propagates skipped state to every
// transitive dependent that has not started. Failure never aborts the run;
// it only removes the failed task's subtree from eligibility.
func (g *TaskGraph) MarkFailed(taskID string, taskErr error, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[taskID]
	if !ok || task.State.Terminal() {
		return
	}
	task.State = models.TaskStateFailed
	if taskErr != nil {
		task.Error = taskErr.Error()
	}
	task.FinishedAt = &at

	g.skipDependentsLocked(taskID, "dependency_failed:"+taskID, at)
}

// skipDependentsLocked marks all transitive dependents of the given task as
// skipped. Already running or terminal tasks are left alone.
func (g *TaskGraph) skipDependentsLocked(taskID, reason string, at time.Time) {
	for _, depID := range g.dependentsLocked(taskID) {
		dep := g.nodes[depID]
		if dep.State != models.TaskStatePending && dep.State != models.TaskStateReady {
			continue
		}
		dep.State = models.TaskStateSkipped
		dep.SkipReason = reason
		dep.FinishedAt = &at
		g.skipDependentsLocked(depID, "dependency_skipped:"+depID, at)
	}
}

// SkipRemaining marks every task that has not started as skipped with the
// given reason. Used for cooperative cancellation between rounds.
func (g *TaskGraph) SkipRemaining(reason string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		task := g.nodes[id]
		if task.State == models.TaskStatePending || task.State == models.TaskStateReady {
			task.State = models.TaskStateSkipped
			task.SkipReason = reason
			task.FinishedAt = &at
		}
	}
}

// IsTerminal returns true when every task is completed, failed, or skipped.
func (g *TaskGraph) IsTerminal() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, task := range g.nodes {
		if !task.State.Terminal() {
			return false
		}
	}
	return true
}

// Blocked returns the IDs of tasks that are neither terminal nor ready,
// ascending. Used to report a stalled run.
func (g *TaskGraph) Blocked() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var blocked []string
	for _, id := range g.order {
		if !g.nodes[id].State.Terminal() {
			blocked = append(blocked, id)
		}
	}
	sort.Strings(blocked)
	return blocked
}

// Outcomes returns the per-task records for every task in the graph,
// in ascending id order.
func (g *TaskGraph) Outcomes() []models.TaskOutcome {
	g.mu.RLock()
	defer g.mu.RUnlock()

	outcomes := make([]models.TaskOutcome, 0, len(g.nodes))
	for _, id := range g.order {
		task := g.nodes[id]
		outcomes = append(outcomes, models.TaskOutcome{
			ID:         task.ID,
			Capability: task.Capability,
			State:      task.State,
			Output:     task.Output,
			Error:      task.Error,
			SkipReason: task.SkipReason,
			StartedAt:  task.StartedAt,
			FinishedAt: task.FinishedAt,
		})
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ID < outcomes[j].ID })
	return outcomes
}

// TopologicalSort returns task IDs in an order where all dependencies come
// before the tasks that depend on them. Ties are broken by ascending id.
func (g *TaskGraph) TopologicalSort() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sorted := make([]string, len(g.order))
	copy(sorted, g.order)
	sort.Strings(sorted)

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		deps := make([]string, len(g.edges[id]))
		copy(deps, g.edges[id])
		sort.Strings(deps)
		for _, depID := range deps {
			visit(depID)
		}

		result = append(result, id)
	}

	for _, id := range sorted {
		visit(id)
	}
	return result
}

// Layers groups task IDs by dependency depth: layer 0 holds tasks with no
// dependencies, layer N holds tasks whose deepest dependency sits in layer
// N-1. Tasks in the same layer could run in the same round.
func (g *TaskGraph) Layers() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	depth := make(map[string]int, len(g.nodes))
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, depID := range g.edges[id] {
			if dd := depthOf(depID) + 1; dd > d {
				d = dd
			}
		}
		depth[id] = d
		return d
	}

	maxDepth := 0
	for _, id := range g.order {
		if d := depthOf(id); d > maxDepth {
			maxDepth = d
		}
	}

	layers := make([][]string, maxDepth+1)
	for _, id := range g.order {
		layers[depth[id]] = append(layers[depth[id]], id)
	}
	for _, layer := range layers {
		sort.Strings(layer)
	}
	return layers
}
