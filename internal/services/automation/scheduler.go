package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/services/dispatch"
	"golang-workspace-automation/internal/services/workspace"
)

const (
	JobKindDetect = "automation_detect"

	jobKeyExpired = "detect-expired"
	jobKeyChurned = "detect-churned"
)

// RegisterSchedules registers one recurring detector job per workspace and
// trigger kind against the shared scheduler process.
func RegisterSchedules(
	ctx context.Context,
	cfg *config.AutomationConfig,
	log *logrus.Logger,
	directory workspace.DirectoryService,
	dispatcher dispatch.Dispatcher,
) error {
	workspaces, err := directory.ListAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to enumerate workspaces: %w", err)
	}

	schedules := []struct {
		jobKey string
		kind   models.TriggerKind
		expr   string
	}{
		{jobKeyExpired, models.TriggerSubscriberExpired, cfg.ExpiredInterval},
		{jobKeyChurned, models.TriggerSubscriberChurned, cfg.ChurnedInterval},
	}

	for _, descriptor := range workspaces {
		if !descriptor.IsActive {
			continue
		}
		for _, schedule := range schedules {
			payload, err := json.Marshal(models.DetectJobPayload{TriggerKind: schedule.kind})
			if err != nil {
				return err
			}
			job := models.JobDescriptor{
				Kind:        JobKindDetect,
				WorkspaceID: descriptor.ID,
				Payload:     payload,
			}
			if err := dispatcher.UpsertRecurring(ctx, schedule.jobKey, job, schedule.expr); err != nil {
				return fmt.Errorf("failed to register %s for workspace %d: %w", schedule.jobKey, descriptor.ID, err)
			}
		}
		log.WithField("workspace_id", descriptor.ID).Debug("detector schedules registered")
	}
	return nil
}

// NewDetectHandler adapts the detector to the dispatch registry.
func NewDetectHandler(detector DetectorService) dispatch.Handler {
	return func(ctx context.Context, job models.JobDescriptor) error {
		var payload models.DetectJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("malformed detect payload: %w", err)
		}
		_, err := detector.Detect(ctx, payload.TriggerKind, job.WorkspaceID)
		return err
	}
}
