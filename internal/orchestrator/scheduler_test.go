package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"baton/internal/graph"
	"baton/internal/handoff"
	"baton/internal/worker"
	"baton/pkg/models"
)

func task(id, capability string, deps ...string) *models.Task {
	return &models.Task{ID: id, Capability: capability, DependsOn: deps, State: models.TaskStatePending}
}

func mustBuild(t *testing.T, tasks ...*models.Task) *graph.TaskGraph {
	t.Helper()
	g, err := graph.Build(tasks)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	return g
}

// orderRecorder registers a handler that appends each task's id to a shared
// slice as its handler starts.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) handler() worker.Handler {
	return worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		r.mu.Lock()
		r.order = append(r.order, input["id"].(string))
		r.mu.Unlock()
		return models.Payload{"done": input["id"]}, nil
	})
}

func (r *orderRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func recordedTask(id string, deps ...string) *models.Task {
	tk := task(id, "record", deps...)
	tk.Input = models.Payload{"id": id}
	return tk
}

func TestSchedulerDiamondSuccess(t *testing.T) {
	rec := &orderRecorder{}
	registry := worker.NewRegistry()
	registry.Register("record", rec.handler())

	g := mustBuild(t,
		recordedTask("a"),
		recordedTask("b", "a"),
		recordedTask("c", "a"),
	)
	s := NewScheduler(g, registry, handoff.New(), 4, 0)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, o := range g.Outcomes() {
		if o.State != models.TaskStateCompleted {
			t.Errorf("expected %s completed, got %s", o.ID, o.State)
		}
	}

	order := rec.recorded()
	if len(order) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(order))
	}
	if order[0] != "a" {
		t.Errorf("expected a to run first, got %v", order)
	}
}

func TestSchedulerFailureCascades(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("ok", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return models.Payload{}, nil
	}))
	registry.Register("fail", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return nil, errors.New("boom")
	}))

	// a fails; b and its dependent c are skipped; d is independent and runs.
	g := mustBuild(t,
		task("a", "fail"),
		task("b", "ok", "a"),
		task("c", "ok", "b"),
		task("d", "ok"),
	)
	s := NewScheduler(g, registry, handoff.New(), 4, 0)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	states := map[string]models.TaskState{}
	for _, o := range g.Outcomes() {
		states[o.ID] = o.State
	}
	if states["a"] != models.TaskStateFailed {
		t.Errorf("expected a failed, got %s", states["a"])
	}
	if states["b"] != models.TaskStateSkipped || states["c"] != models.TaskStateSkipped {
		t.Errorf("expected b and c skipped, got b=%s c=%s", states["b"], states["c"])
	}
	if states["d"] != models.TaskStateCompleted {
		t.Errorf("expected independent d completed, got %s", states["d"])
	}

	if !strings.Contains(g.Task("a").Error, "boom") {
		t.Errorf("expected handler error recorded, got %q", g.Task("a").Error)
	}
}

func TestSchedulerUnknownCapability(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("ok", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return models.Payload{}, nil
	}))

	g := mustBuild(t,
		task("a", "unknown-role"),
		task("b", "ok", "a"),
		task("c", "ok"),
	)
	s := NewScheduler(g, registry, handoff.New(), 4, 0)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.Task("a").State; got != models.TaskStateFailed {
		t.Errorf("expected a failed, got %s", got)
	}
	if !strings.Contains(g.Task("a").Error, "unknown capability") {
		t.Errorf("expected unknown capability error, got %q", g.Task("a").Error)
	}
	if got := g.Task("b").State; got != models.TaskStateSkipped {
		t.Errorf("expected b skipped, got %s", got)
	}
	if got := g.Task("c").State; got != models.TaskStateCompleted {
		t.Errorf("unrelated task must complete, got %s", got)
	}
}

func TestSchedulerSequentialTopologicalOrder(t *testing.T) {
	rec := &orderRecorder{}
	registry := worker.NewRegistry()
	registry.Register("record", rec.handler())

	g := mustBuild(t,
		recordedTask("c", "b"),
		recordedTask("b", "a"),
		recordedTask("a"),
		recordedTask("e", "a"),
		recordedTask("d"),
	)
	s := NewScheduler(g, registry, handoff.New(), 1, 0)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := rec.recorded()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] || pos["a"] > pos["e"] {
		t.Errorf("sequential order %v violates dependencies", order)
	}
}

func TestSchedulerDeterministic(t *testing.T) {
	run := func() []models.TaskOutcome {
		registry := worker.NewRegistry()
		registry.Register("ok", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
			return models.Payload{}, nil
		}))
		registry.Register("fail", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
			return nil, errors.New("boom")
		}))

		g := mustBuild(t,
			task("a", "ok"),
			task("b", "fail", "a"),
			task("c", "ok", "b"),
			task("d", "ok", "a"),
		)
		s := NewScheduler(g, registry, handoff.New(), 4, 0)
		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return g.Outcomes()
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("outcome counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].State != second[i].State {
			t.Errorf("run diverged at %s: %s vs %s", first[i].ID, first[i].State, second[i].State)
		}
	}
}

func TestSchedulerFanOut(t *testing.T) {
	// Both tasks block until both have started; with concurrency 2 the
	// round dispatches them together, otherwise this would deadlock.
	started := make(chan string, 2)
	release := make(chan struct{})

	registry := worker.NewRegistry()
	registry.Register("block", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		started <- input["id"].(string)
		select {
		case <-release:
			return models.Payload{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	a := task("a", "block")
	a.Input = models.Payload{"id": "a"}
	b := task("b", "block")
	b.Input = models.Payload{"id": "b"}
	g := mustBuild(t, a, b)

	s := NewScheduler(g, registry, handoff.New(), 2, 0)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for concurrent dispatch")
		}
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range g.Outcomes() {
		if o.State != models.TaskStateCompleted {
			t.Errorf("expected %s completed, got %s", o.ID, o.State)
		}
	}
}

func TestSchedulerHandoffVisibility(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("produce", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return models.Payload{"value": "from-a"}, nil
	}))

	var seen models.Payload
	var seenOK bool
	registry.Register("consume", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		seen, seenOK = snap.Get("a")
		return models.Payload{}, nil
	}))

	g := mustBuild(t,
		task("a", "produce"),
		task("b", "consume", "a"),
	)
	s := NewScheduler(g, registry, handoff.New(), 4, 0)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seenOK {
		t.Fatal("dependent task must see its dependency's output")
	}
	if seen["value"] != "from-a" {
		t.Errorf("unexpected handed-off output: %v", seen)
	}
}

func TestSchedulerTimeout(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("slow", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		select {
		case <-time.After(5 * time.Second):
			return models.Payload{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	g := mustBuild(t,
		task("a", "slow"),
		task("b", "slow", "a"),
	)
	s := NewScheduler(g, registry, handoff.New(), 1, 50*time.Millisecond)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.Task("a").State; got != models.TaskStateFailed {
		t.Errorf("expected a failed on timeout, got %s", got)
	}
	if !strings.Contains(g.Task("a").Error, "timed out") {
		t.Errorf("expected timeout error, got %q", g.Task("a").Error)
	}
	if got := g.Task("b").State; got != models.TaskStateSkipped {
		t.Errorf("expected b skipped, got %s", got)
	}
}

func TestSchedulerPanicContained(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("panic", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		panic("handler blew up")
	}))
	registry.Register("ok", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return models.Payload{}, nil
	}))

	g := mustBuild(t,
		task("a", "panic"),
		task("b", "ok"),
	)
	s := NewScheduler(g, registry, handoff.New(), 2, 0)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Task("a").State; got != models.TaskStateFailed {
		t.Errorf("expected panicking task failed, got %s", got)
	}
	if !strings.Contains(g.Task("a").Error, "panic") {
		t.Errorf("expected panic recorded, got %q", g.Task("a").Error)
	}
	if got := g.Task("b").State; got != models.TaskStateCompleted {
		t.Errorf("expected b completed, got %s", got)
	}
}

func TestSchedulerCancellationBetweenRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	registry := worker.NewRegistry()
	registry.Register("cancel-run", worker.Func(func(cctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		// Cancel mid-round; this task still finishes successfully.
		cancel()
		return models.Payload{"finished": true}, nil
	}))
	registry.Register("never", worker.Func(func(cctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		t.Error("task from a later round must not be dispatched after cancellation")
		return models.Payload{}, nil
	}))

	g := mustBuild(t,
		task("a", "cancel-run"),
		task("b", "never", "a"),
	)
	s := NewScheduler(g, registry, handoff.New(), 1, 0)

	if err := s.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.Task("a").State; got != models.TaskStateCompleted {
		t.Errorf("in-flight task must finish, got %s", got)
	}
	if got := g.Task("b").State; got != models.TaskStateSkipped {
		t.Errorf("expected b skipped, got %s", got)
	}
	if got := g.Task("b").SkipReason; got != SkipReasonCancelled {
		t.Errorf("expected cancelled skip reason, got %q", got)
	}
}

func TestSchedulerStallIsFatal(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("ok", worker.Func(func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
		return models.Payload{}, nil
	}))

	g := mustBuild(t, task("a", "ok"))
	// Force a task into running state with nothing in flight: the ready set
	// is empty while the graph is non-terminal.
	g.MarkRunning("a", time.Now())

	s := NewScheduler(g, registry, handoff.New(), 1, 0)
	err := s.Run(context.Background())
	if !errors.Is(err, ErrStalled) {
		t.Errorf("expected ErrStalled, got %v", err)
	}
}
