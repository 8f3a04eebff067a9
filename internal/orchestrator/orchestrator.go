package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"baton/internal/graph"
	"baton/internal/handoff"
	"baton/internal/state"
	"baton/internal/worker"
	"baton/pkg/models"
)

// Orchestrator coordinates one run from submission to terminal state.
// It wires together: graph -> scheduler -> workers -> handoff, and
// optionally persists the run to a state store. Create one Orchestrator
// per run; Run must be called at most once.
type Orchestrator struct {
	registry       *worker.Registry
	maxConcurrency int
	taskTimeout    time.Duration
	store          state.Store
	logger         *DebugLogger

	runID   string
	events  chan Event
	dropped atomic.Uint64
}

// New creates an Orchestrator dispatching to the given registry.
func New(registry *worker.Registry, opts ...Option) *Orchestrator {
	options := &orchestratorOptions{
		maxConcurrency: DefaultMaxConcurrency,
		eventBuffer:    100,
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.logger
	if logger == nil {
		logger = &DebugLogger{}
	}

	return &Orchestrator{
		registry:       registry,
		maxConcurrency: options.maxConcurrency,
		taskTimeout:    options.taskTimeout,
		store:          options.store,
		logger:         logger,
		runID:          uuid.New().String()[:8],
		events:         make(chan Event, options.eventBuffer),
	}
}

// RunID returns the identifier assigned to this orchestrator's run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Events returns the channel for receiving run events.
// The channel is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// DroppedEventCount returns the number of events dropped because the event
// channel was full.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.dropped.Load()
}

// Run executes the submitted tasks to a terminal state and returns the
// complete per-task outcome list. Graph construction failures are returned
// before any task runs. Task failures do not produce an error; they are
// reflected in the result as partial failure. The returned error is non-nil
// only for construction failures and fatal scheduler errors.
func (o *Orchestrator) Run(ctx context.Context, tasks []*models.Task) (result *models.RunResult, err error) {
	defer close(o.events)

	startedAt := time.Now()
	o.logger.Log("[orchestrator] run %s: submitted %d tasks", o.runID, len(tasks))

	g, err := graph.Build(tasks)
	if err != nil {
		o.logger.Log("[orchestrator] run %s: graph rejected: %v", o.runID, err)
		return nil, fmt.Errorf("build task graph: %w", err)
	}

	o.emit(Event{Type: EventRunStarted, RunID: o.runID, Timestamp: startedAt,
		Message: fmt.Sprintf("%d tasks, max concurrency %d", len(tasks), o.maxConcurrency)})

	if o.store != nil {
		if serr := o.store.CreateRun(o.runID, len(tasks), startedAt); serr != nil {
			o.logger.Log("[orchestrator] run %s: persist run start: %v", o.runID, serr)
		}
	}

	hc := handoff.New()
	sched := NewScheduler(g, o.registry, hc, o.maxConcurrency, o.taskTimeout)
	sched.SetDebugLogger(o.logger)
	sched.SetEventFunc(func(ev Event) {
		ev.RunID = o.runID
		o.emit(ev)
	})

	schedErr := sched.Run(ctx)

	finishedAt := time.Now()
	outcomes := g.Outcomes()
	result = &models.RunResult{
		RunID:      o.runID,
		Status:     models.StatusFromOutcomes(outcomes),
		Outcomes:   outcomes,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	if o.store != nil {
		for _, outcome := range outcomes {
			if serr := o.store.RecordOutcome(o.runID, outcome); serr != nil {
				o.logger.Log("[orchestrator] run %s: persist outcome %s: %v", o.runID, outcome.ID, serr)
			}
		}
		if serr := o.store.FinishRun(o.runID, result.Status, finishedAt); serr != nil {
			o.logger.Log("[orchestrator] run %s: persist run finish: %v", o.runID, serr)
		}
	}

	o.emit(Event{Type: EventRunDone, RunID: o.runID, Timestamp: finishedAt,
		Message: string(result.Status)})
	o.logger.Log("[orchestrator] run %s: done, status=%s", o.runID, result.Status)

	if schedErr != nil {
		// Stall is fatal: the outcome list is still returned for diagnosis.
		return result, schedErr
	}
	return result, nil
}

// emit sends an event without blocking; full buffers drop the event and
// bump the dropped counter.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.dropped.Add(1)
	}
}
