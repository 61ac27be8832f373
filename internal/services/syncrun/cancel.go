package syncrun

import (
	"context"
	"sync"
)

// CancelRegistry owns the task id to cancellation handle mapping. It is
// injected into the supervisor rather than kept as package state; entries
// are removed on every exit path of a run.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *CancelRegistry) Register(taskID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[taskID] = cancel
}

// Cancel fires the handle for a task if one is registered. Unknown or
// already-finished tasks are a no-op.
func (r *CancelRegistry) Cancel(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[taskID]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (r *CancelRegistry) Remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, taskID)
}

func (r *CancelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}
