package dispatch

import (
	"context"
	"fmt"
	"sync"

	"golang-workspace-automation/internal/models"
)

// Handler executes one job descriptor of a given kind.
type Handler func(ctx context.Context, job models.JobDescriptor) error

// Registry maps job kinds to handlers. Jobs are a closed tagged union:
// a kind with no registered handler is a dispatch failure, never a
// reflective method call.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(kind string, handler Handler) error {
	if kind == "" {
		return fmt.Errorf("job kind is empty")
	}
	if handler == nil {
		return fmt.Errorf("nil handler for job kind %s", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("handler already registered for job kind %s", kind)
	}
	r.handlers[kind] = handler
	return nil
}

func (r *Registry) Get(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[kind]
	return handler, ok
}
