package syncrun

import (
	"context"
	"testing"
)

func TestCancelRegistry(t *testing.T) {
	registry := NewCancelRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	registry.Register("task-1", cancel)
	if registry.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", registry.Len())
	}

	if !registry.Cancel("task-1") {
		t.Fatal("Cancel() = false for a registered task")
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not cancelled after Cancel()")
	}

	// Unknown tasks are a no-op.
	if registry.Cancel("task-unknown") {
		t.Error("Cancel() = true for an unknown task")
	}

	registry.Remove("task-1")
	if registry.Len() != 0 {
		t.Errorf("Len() = %d after Remove, want 0", registry.Len())
	}
	if registry.Cancel("task-1") {
		t.Error("Cancel() = true after Remove")
	}
}
