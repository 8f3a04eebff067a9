package orchestrator

import (
	"context"
	"sync"

	"baton/pkg/models"
)

// Pool manages multiple concurrent orchestration runs against a shared
// worker registry and aggregates their events onto one channel.
type Pool struct {
	// factory constructs the orchestrator for each submitted run, fixing
	// the registry and options once at pool construction.
	factory func() *Orchestrator

	// active tracks in-flight orchestrators by run ID.
	active map[string]*Orchestrator
	// results holds finished run results by run ID.
	results map[string]*models.RunResult
	mu      sync.RWMutex

	// events aggregates events from all runs.
	events chan Event

	// ctx and cancel for pool lifecycle.
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks in-flight runs.
	wg sync.WaitGroup
}

// NewPool creates a Pool. Every submitted run uses factory to construct its
// orchestrator.
func NewPool(factory func() *Orchestrator) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		factory: factory,
		active:  make(map[string]*Orchestrator),
		results: make(map[string]*models.RunResult),
		events:  make(chan Event, 200),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit starts a new orchestration run for the given tasks.
// Returns the run ID.
func (p *Pool) Submit(tasks []*models.Task) (string, error) {
	orch := p.factory()
	runID := orch.RunID()

	p.mu.Lock()
	p.active[runID] = orch
	p.mu.Unlock()

	// Forward events from this run to the pool's aggregate channel.
	go p.forwardEvents(orch)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		result, _ := orch.Run(p.ctx, tasks)

		p.mu.Lock()
		delete(p.active, runID)
		if result != nil {
			p.results[runID] = result
		}
		p.mu.Unlock()
	}()

	return runID, nil
}

// forwardEvents forwards events from one run onto the pool channel.
func (p *Pool) forwardEvents(orch *Orchestrator) {
	for event := range orch.Events() {
		select {
		case p.events <- event:
		case <-p.ctx.Done():
			return
		}
	}
}

// Events returns the aggregated event channel for all runs.
func (p *Pool) Events() <-chan Event {
	return p.events
}

// Result returns the finished result for a run ID, or nil if the run is
// still in flight or unknown.
func (p *Pool) Result(runID string) *models.RunResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.results[runID]
}

// Count returns the number of in-flight runs.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.active)
}

// Stop cancels all runs, waits for them to finish, and closes the event
// channel. Cancellation is cooperative: rounds in progress complete.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
	close(p.events)
}

// Wait blocks until all submitted runs have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// DroppedEventCount returns the total dropped events across in-flight runs.
func (p *Pool) DroppedEventCount() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total uint64
	for _, orch := range p.active {
		total += orch.DroppedEventCount()
	}
	return total
}
