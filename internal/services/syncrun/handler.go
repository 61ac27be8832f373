package syncrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/services/dispatch"
)

const JobKindSync = "integration_sync"

// NewSyncHandler adapts the supervisor to the dispatch registry so sync
// runs can also be triggered from queued or recurring jobs. A conflict with
// an in-flight run is not an error for a queued trigger.
func NewSyncHandler(supervisor SupervisorService) dispatch.Handler {
	return func(ctx context.Context, job models.JobDescriptor) error {
		var payload models.SyncJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("malformed sync payload: %w", err)
		}
		_, err := supervisor.Start(ctx, job.WorkspaceID, payload.IntegrationID)
		var inProgress *RunInProgressError
		if errors.As(err, &inProgress) {
			return nil
		}
		return err
	}
}
