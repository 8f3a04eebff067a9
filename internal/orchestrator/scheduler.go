package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"baton/internal/graph"
	"baton/internal/handoff"
	"baton/internal/worker"
	"baton/pkg/models"
)

// SkipReasonCancelled marks tasks skipped because the run was cancelled.
const SkipReasonCancelled = "cancelled"

// errCancelledBeforeStart signals that a dispatched task observed
// cancellation before its handler ran. The task is skipped, not failed.
var errCancelledBeforeStart = errors.New("cancelled before start")

// Scheduler drives one TaskGraph to a terminal state in bulk-synchronous
// rounds. Each round dispatches every currently-ready task with bounded
// concurrency, waits for all of them to resolve, merges completed outputs
// into the handoff context, then recomputes readiness. Rounds are strictly
// sequential, so no task is ever dispatched on stale readiness data.
type Scheduler struct {
	// graph is the dependency graph of tasks.
	graph *graph.TaskGraph
	// registry resolves capability names to worker handlers.
	registry *worker.Registry
	// handoff accumulates completed outputs across rounds.
	handoff *handoff.Context
	// maxConcurrency bounds in-flight tasks within a round. 1 yields pure
	// sequential execution.
	maxConcurrency int
	// taskTimeout is the per-task timeout. Zero disables it.
	taskTimeout time.Duration
	// onEvent receives scheduler events. May be nil.
	onEvent func(Event)
	// logger is the debug logger. Never nil.
	logger *DebugLogger
	// seenSkips tracks tasks whose skip event has been emitted.
	// Only touched between rounds, so no lock is needed.
	seenSkips map[string]bool
}

// NewScheduler creates a Scheduler for the given graph and registry.
func NewScheduler(g *graph.TaskGraph, registry *worker.Registry, hc *handoff.Context, maxConcurrency int, taskTimeout time.Duration) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{
		graph:          g,
		registry:       registry,
		handoff:        hc,
		maxConcurrency: maxConcurrency,
		taskTimeout:    taskTimeout,
		logger:         &DebugLogger{},
	}
}

// SetEventFunc sets the callback invoked for each scheduler event.
func (s *Scheduler) SetEventFunc(fn func(Event)) {
	s.onEvent = fn
}

// SetDebugLogger sets the debug logger.
func (s *Scheduler) SetDebugLogger(l *DebugLogger) {
	if l != nil {
		s.logger = l
	}
}

// Run executes rounds until the graph is terminal. A task failure never
// aborts the run; it only skips the failed task's dependents. The only fatal
// condition is a stall, which indicates an internal invariant violation.
// Cancellation is cooperative: the round in progress finishes, no new round
// starts, and remaining tasks are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	for round := 1; ; round++ {
		if s.graph.IsTerminal() {
			s.logger.Log("[scheduler] graph terminal after %d rounds", round-1)
			return nil
		}

		if ctx.Err() != nil {
			s.logger.Log("[scheduler] cancellation observed before round %d, skipping remaining tasks", round)
			s.skipRemaining()
			return nil
		}

		ready := s.graph.ReadySet()
		if len(ready) == 0 {
			blocked := s.graph.Blocked()
			s.logger.Log("[scheduler] STALL: no ready tasks, blocked=%v", blocked)
			return fmt.Errorf("%w: blocked tasks %v", ErrStalled, blocked)
		}

		s.logger.Log("[scheduler] round %d: dispatching %d ready tasks (max concurrency %d): %v",
			round, len(ready), s.maxConcurrency, ready)
		s.emit(Event{Type: EventRoundStarted, Round: round, Timestamp: time.Now()})

		s.runRound(ctx, round, ready)
	}
}

// roundResult carries one task's resolution out of a dispatch round.
type roundResult struct {
	taskID string
	output models.Payload
	err    error
}

// runRound dispatches every task in ready and blocks until all resolve.
// Tasks in the same round are independent by construction: a task only
// becomes ready once all its dependencies are completed, so no dependency
// edge can exist between two ready tasks.
func (s *Scheduler) runRound(ctx context.Context, round int, ready []string) {
	// Workers only see context as of dispatch time, not outputs completed
	// later in the same round.
	snap := s.handoff.Snapshot()

	results := make([]roundResult, len(ready))
	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrency)

	for i, taskID := range ready {
		task := s.graph.Task(taskID)
		s.emit(Event{Type: EventTaskQueued, TaskID: taskID, Capability: task.Capability, Round: round, Timestamp: time.Now()})

		// A missing handler fails the task without dispatching it; the run
		// continues and only this task's subtree is skipped.
		handler, err := s.registry.Resolve(task.Capability)
		if err != nil {
			results[i] = roundResult{taskID: taskID, err: err}
			continue
		}

		i, task, handler := i, task, handler
		g.Go(func() error {
			results[i] = s.dispatch(ctx, round, task, handler, snap)
			return nil
		})
	}

	// Suspend until every dispatched task resolves, success or failure.
	_ = g.Wait()

	s.resolveRound(round, results)
}

// dispatch runs a single task's handler and captures its resolution.
// Handler panics are contained and reported as handler failures.
func (s *Scheduler) dispatch(ctx context.Context, round int, task *models.Task, handler worker.Handler, snap *handoff.Snapshot) (res roundResult) {
	res.taskID = task.ID

	// Cancellation may land mid-round; tasks whose slot frees up afterwards
	// are skipped rather than handed a dead context.
	if ctx.Err() != nil {
		res.err = errCancelledBeforeStart
		return res
	}

	s.graph.MarkRunning(task.ID, time.Now())
	s.emit(Event{Type: EventTaskStarted, TaskID: task.ID, Capability: task.Capability, Round: round, Timestamp: time.Now()})
	s.logger.Log("[scheduler] task %s dispatched to capability %q", task.ID, task.Capability)

	runCtx := ctx
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res.output = nil
			res.err = fmt.Errorf("%w: panic: %v", ErrHandlerFailed, r)
		}
	}()

	output, err := handler.Execute(runCtx, task.Input, snap)
	if err != nil {
		if s.taskTimeout > 0 && runCtx.Err() == context.DeadlineExceeded {
			res.err = fmt.Errorf("%w after %s: %v", ErrTaskTimeout, s.taskTimeout, err)
		} else {
			res.err = fmt.Errorf("%w: %v", ErrHandlerFailed, err)
		}
		return res
	}

	res.output = output
	return res
}

// resolveRound applies each task's resolution to the graph and handoff
// context. Failures cascade skipped state to transitive dependents.
func (s *Scheduler) resolveRound(round int, results []roundResult) {
	now := time.Now()
	for _, res := range results {
		task := s.graph.Task(res.taskID)

		switch {
		case res.err == nil:
			s.graph.MarkCompleted(res.taskID, res.output, now)
			if err := s.handoff.Record(res.taskID, res.output); err != nil {
				// Write-once violation would mean the same task resolved
				// twice; log it, the graph state is already terminal.
				s.logger.Log("[scheduler] handoff record for %s: %v", res.taskID, err)
			}
			s.emit(Event{Type: EventTaskCompleted, TaskID: res.taskID, Capability: task.Capability, Round: round, Timestamp: now})
			s.logger.Log("[scheduler] task %s completed", res.taskID)

		case errors.Is(res.err, errCancelledBeforeStart):
			s.logger.Log("[scheduler] task %s skipped: cancelled before start", res.taskID)
			// Leave the task for skipRemaining; it never ran.

		default:
			s.graph.MarkFailed(res.taskID, res.err, now)
			s.emit(Event{Type: EventTaskFailed, TaskID: res.taskID, Capability: task.Capability, Round: round, Err: res.err, Timestamp: now})
			s.logger.Log("[scheduler] task %s failed: %v", res.taskID, res.err)
			s.emitSkipEvents(round)
		}
	}
}

// emitSkipEvents emits a task_skipped event for tasks newly moved to
// skipped state by a cascade. Emitted at most once per task.
func (s *Scheduler) emitSkipEvents(round int) {
	for _, o := range s.graph.Outcomes() {
		if o.State == models.TaskStateSkipped && !s.skippedSeen(o.ID) {
			s.emit(Event{Type: EventTaskSkipped, TaskID: o.ID, Capability: o.Capability, Round: round, Message: o.SkipReason, Timestamp: time.Now()})
		}
	}
}

// skippedSeen tracks which skip events have been emitted.
func (s *Scheduler) skippedSeen(taskID string) bool {
	if s.seenSkips == nil {
		s.seenSkips = make(map[string]bool)
	}
	if s.seenSkips[taskID] {
		return true
	}
	s.seenSkips[taskID] = true
	return false
}

// skipRemaining marks every unstarted task as skipped due to cancellation.
func (s *Scheduler) skipRemaining() {
	now := time.Now()
	s.graph.SkipRemaining(SkipReasonCancelled, now)
	for _, o := range s.graph.Outcomes() {
		if o.State == models.TaskStateSkipped && o.SkipReason == SkipReasonCancelled {
			s.emit(Event{Type: EventTaskSkipped, TaskID: o.ID, Capability: o.Capability, Message: SkipReasonCancelled, Timestamp: now})
		}
	}
}

// emit invokes the event callback if one is set.
func (s *Scheduler) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
