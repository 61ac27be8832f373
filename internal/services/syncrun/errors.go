package syncrun

import (
	"errors"
	"fmt"

	"golang-workspace-automation/internal/models"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	// ErrSyncDisabled is a configuration error: the integration exists but
	// sync is switched off for it.
	ErrSyncDisabled = errors.New("sync is disabled for this integration")
	ErrRunNotFound  = errors.New("sync run not found")
)

// RunInProgressError is the conflict returned when a start request finds a
// non-terminal run for the same integration. Never queued, never retried.
type RunInProgressError struct {
	TaskID     string
	Status     models.SyncRunStatus
	Percentage int
}

func (e *RunInProgressError) Error() string {
	return fmt.Sprintf("sync already in progress (task %s, status %s, %d%%)", e.TaskID, e.Status, e.Percentage)
}
