// Package worker defines the handler contract that specialists implement and
// the registry that maps capability names to handlers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"baton/internal/handoff"
	"baton/pkg/models"
)

// ErrUnknownCapability indicates a task references a capability with no
// registered handler.
var ErrUnknownCapability = errors.New("unknown capability")

// Handler executes the work for one capability. Implementations may be
// long-running or internally asynchronous; the engine only needs the return.
// The handoff snapshot reflects outputs completed before dispatch and must
// not be mutated.
type Handler interface {
	Execute(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error)
}

// Func adapts an ordinary function to the Handler interface.
type Func func(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, input models.Payload, snap *handoff.Snapshot) (models.Payload, error) {
	return f(ctx, input, snap)
}

// Registry maps capability names to handlers. It is populated at process
// start and treated as immutable while a run is in flight.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a capability name. Re-registering a capability
// replaces the previous handler.
func (r *Registry) Register(capability string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[capability] = h
}

// Resolve returns the handler for a capability.
func (r *Registry) Resolve(capability string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[capability]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	}
	return h, nil
}

// Capabilities returns the registered capability names, sorted.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
