package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/repository"
)

const detectorActor = "system:automation-detector"

// DetectorService scans one workspace for state transitions and emits each
// (subscriber, trigger kind) event at most once, anchored on the success
// rows in the execution ledger.
type DetectorService interface {
	Detect(ctx context.Context, kind models.TriggerKind, workspaceID uint) (int, error)
}

type detectorService struct {
	cfg    *config.AutomationConfig
	log    *logrus.Logger
	stores repository.StoreProvider
	sink   EventSink
}

func NewDetectorService(
	cfg *config.AutomationConfig,
	log *logrus.Logger,
	stores repository.StoreProvider,
	sink EventSink,
) DetectorService {
	return &detectorService{
		cfg:    cfg,
		log:    log,
		stores: stores,
		sink:   sink,
	}
}

// Detect returns the number of events emitted. Infrastructure errors
// propagate to the caller so the hosting scheduler can apply its retry
// policy; per-subscriber failures are logged and skipped.
func (s *detectorService) Detect(ctx context.Context, kind models.TriggerKind, workspaceID uint) (int, error) {
	stores, err := s.stores.For(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("failed to open workspace stores: %w", err)
	}

	// Fast exit: no enabled rule listens for this kind, skip the scan.
	listening, err := stores.Automation.HasEnabledRuleForKind(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to check automation rules: %w", err)
	}
	if !listening {
		return 0, nil
	}

	firedIDs, err := stores.Automation.ListFiredSubscriberIDs(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to load execution ledger: %w", err)
	}
	fired := make(map[uint]struct{}, len(firedIDs))
	for _, id := range firedIDs {
		fired[id] = struct{}{}
	}

	before, err := s.cutoffFor(kind)
	if err != nil {
		return 0, err
	}
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	// Oldest transition first; a truncated batch leaves the remainder for
	// the next scheduled run before any newer transition is touched.
	candidates, err := stores.Subscribers.ListExpiring(ctx, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load candidate subscribers: %w", err)
	}

	emitted := 0
	for i := range candidates {
		subscriber := &candidates[i]
		if _, ok := fired[subscriber.ID]; ok {
			continue
		}

		event := s.buildEvent(kind, subscriber)
		if err := s.sink.Submit(ctx, workspaceID, event); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"workspace_id":  workspaceID,
				"subscriber_id": subscriber.ID,
				"trigger_kind":  kind,
			}).Warn("event submission failed, skipping subscriber")
			s.recordExecution(ctx, stores, subscriber.ID, kind, event, models.ExecutionStatusFailed, err.Error())
			continue
		}

		s.recordExecution(ctx, stores, subscriber.ID, kind, event, models.ExecutionStatusSuccess, "")
		emitted++
	}

	if emitted > 0 {
		s.log.WithFields(logrus.Fields{
			"workspace_id": workspaceID,
			"trigger_kind": kind,
			"emitted":      emitted,
		}).Info("automation events emitted")
	}
	return emitted, nil
}

func (s *detectorService) cutoffFor(kind models.TriggerKind) (time.Time, error) {
	now := time.Now()
	switch kind {
	case models.TriggerSubscriberExpired:
		return now, nil
	case models.TriggerSubscriberChurned:
		days := s.cfg.ChurnThresholdDays
		if days <= 0 {
			days = 30
		}
		return now.AddDate(0, 0, -days), nil
	default:
		return time.Time{}, fmt.Errorf("unknown trigger kind: %s", kind)
	}
}

func (s *detectorService) buildEvent(kind models.TriggerKind, subscriber *models.SubscriberEntity) models.AutomationEvent {
	snapshot := map[string]string{
		"name":   subscriber.Name,
		"email":  subscriber.Email,
		"plan":   subscriber.Plan,
		"status": subscriber.Status,
	}
	if subscriber.ExpiresAt.Valid {
		snapshot["expires_at"] = subscriber.ExpiresAt.Time.Format(time.RFC3339)
	}
	return models.AutomationEvent{
		SubscriberID: subscriber.ID,
		ExternalRef:  subscriber.ExternalRef,
		TriggerKind:  kind,
		Snapshot:     snapshot,
		Actor:        detectorActor,
		OccurredAt:   time.Now(),
	}
}

func (s *detectorService) recordExecution(ctx context.Context, stores *repository.Stores, subscriberID uint, kind models.TriggerKind, event models.AutomationEvent, status models.AutomationExecutionStatus, errorMessage string) {
	payload, err := json.Marshal(event)
	if err != nil {
		payload = nil
	}
	execution := &models.AutomationExecutionEntity{
		SubscriberID: subscriberID,
		TriggerKind:  kind,
		Status:       status,
		Payload:      datatypes.JSON(payload),
		ErrorMessage: errorMessage,
	}
	if err := stores.Automation.CreateExecution(ctx, execution); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"subscriber_id": subscriberID,
			"trigger_kind":  kind,
		}).Error("failed to record automation execution")
	}
}
