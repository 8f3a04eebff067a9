package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"baton/internal/graph"
	"baton/internal/handoff"
	"baton/internal/state"
	"baton/internal/worker"
	"baton/pkg/models"
)

func okRegistry() *worker.Registry {
	r := worker.NewRegistry()
	r.Register("ok", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return models.Payload{"ok": true}, nil
	}))
	r.Register("fail", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return nil, errors.New("boom")
	}))
	return r
}

func drainEvents(o *Orchestrator) <-chan []Event {
	out := make(chan []Event, 1)
	go func() {
		var events []Event
		for ev := range o.Events() {
			events = append(events, ev)
		}
		out <- events
	}()
	return out
}

func TestOrchestratorRunSuccess(t *testing.T) {
	o := New(okRegistry(), WithMaxConcurrency(2))
	collected := drainEvents(o)

	result, err := o.Run(context.Background(), []*models.Task{
		task("a", "ok"),
		task("b", "ok", "a"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.RunSuccess {
		t.Errorf("expected success status, got %s", result.Status)
	}
	if result.RunID != o.RunID() {
		t.Errorf("result run id %q does not match orchestrator %q", result.RunID, o.RunID())
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Error("finished before started")
	}

	events := <-collected
	if len(events) < 2 {
		t.Fatalf("expected at least run_started and run_done, got %d events", len(events))
	}
	if events[0].Type != EventRunStarted {
		t.Errorf("first event must be %s, got %s", EventRunStarted, events[0].Type)
	}
	if last := events[len(events)-1]; last.Type != EventRunDone {
		t.Errorf("last event must be %s, got %s", EventRunDone, last.Type)
	}
	for _, ev := range events {
		if ev.RunID != o.RunID() {
			t.Errorf("event %s missing run id, got %q", ev.Type, ev.RunID)
		}
	}
}

func TestOrchestratorRunPartialFailure(t *testing.T) {
	o := New(okRegistry())
	go func() {
		for range o.Events() {
		}
	}()

	result, err := o.Run(context.Background(), []*models.Task{
		task("a", "fail"),
		task("b", "ok", "a"),
		task("c", "ok"),
	})
	if err != nil {
		t.Fatalf("task failure must not be a run error, got %v", err)
	}
	if result.Status != models.RunPartialFailure {
		t.Errorf("expected partial_failure, got %s", result.Status)
	}

	if oc := result.Outcome("b"); oc == nil || oc.State != models.TaskStateSkipped {
		t.Errorf("expected b skipped, got %+v", oc)
	}
	if oc := result.Outcome("c"); oc == nil || oc.State != models.TaskStateCompleted {
		t.Errorf("expected c completed, got %+v", oc)
	}
}

func TestOrchestratorRejectsInvalidGraph(t *testing.T) {
	o := New(okRegistry())

	_, err := o.Run(context.Background(), []*models.Task{
		task("a", "ok"),
		task("a", "ok"),
	})
	if !errors.Is(err, graph.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	// The events channel closes even when the graph is rejected.
	select {
	case _, ok := <-o.Events():
		if ok {
			t.Error("expected closed events channel with no events")
		}
	case <-time.After(time.Second):
		t.Error("events channel not closed after rejected run")
	}
}

// memoryStore is an in-memory Store used to verify persistence calls.
type memoryStore struct {
	mu       sync.Mutex
	runs     map[string]*state.Run
	outcomes map[string][]models.TaskOutcome
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		runs:     make(map[string]*state.Run),
		outcomes: make(map[string][]models.TaskOutcome),
	}
}

func (m *memoryStore) CreateRun(runID string, taskCount int, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = &state.Run{ID: runID, Status: state.RunActive, TaskCount: taskCount, StartedAt: startedAt}
	return nil
}

func (m *memoryStore) FinishRun(runID string, status models.RunStatus, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		run.Status = status
		run.FinishedAt = &finishedAt
	}
	return nil
}

func (m *memoryStore) RecordOutcome(runID string, outcome models.TaskOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[runID] = append(m.outcomes[runID], outcome)
	return nil
}

func (m *memoryStore) GetRun(runID string) (*state.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[runID], nil
}

func (m *memoryStore) ListRuns(limit int) ([]*state.Run, error) { return nil, nil }

func (m *memoryStore) GetOutcomes(runID string) ([]models.TaskOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[runID], nil
}

func (m *memoryStore) Close() error { return nil }

func TestOrchestratorPersistsRun(t *testing.T) {
	store := newMemoryStore()
	o := New(okRegistry(), WithStateStore(store))
	go func() {
		for range o.Events() {
		}
	}()

	result, err := o.Run(context.Background(), []*models.Task{
		task("a", "ok"),
		task("b", "fail", "a"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, _ := store.GetRun(result.RunID)
	if run == nil {
		t.Fatal("run not persisted")
	}
	if run.Status != models.RunPartialFailure {
		t.Errorf("persisted status %s, want %s", run.Status, models.RunPartialFailure)
	}
	if run.TaskCount != 2 {
		t.Errorf("persisted task count %d, want 2", run.TaskCount)
	}
	if run.FinishedAt == nil {
		t.Error("persisted run has no finish time")
	}

	outcomes, _ := store.GetOutcomes(result.RunID)
	if len(outcomes) != 2 {
		t.Errorf("expected 2 persisted outcomes, got %d", len(outcomes))
	}
}

func TestPoolRunsConcurrently(t *testing.T) {
	registry := okRegistry()
	p := NewPool(func() *Orchestrator {
		return New(registry, WithMaxConcurrency(2))
	})
	go func() {
		for range p.Events() {
		}
	}()

	first, err := p.Submit([]*models.Task{task("a", "ok")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := p.Submit([]*models.Task{task("a", "ok"), task("b", "fail")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first == second {
		t.Error("runs must get distinct ids")
	}

	p.Wait()

	if r := p.Result(first); r == nil || r.Status != models.RunSuccess {
		t.Errorf("first run result %+v, want success", r)
	}
	if r := p.Result(second); r == nil || r.Status != models.RunPartialFailure {
		t.Errorf("second run result %+v, want partial_failure", r)
	}
	if p.Count() != 0 {
		t.Errorf("expected no in-flight runs, got %d", p.Count())
	}

	p.Stop()
}
