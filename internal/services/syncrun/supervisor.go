package syncrun

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/repository"
	"golang-workspace-automation/internal/services/billing"
	"golang-workspace-automation/internal/services/progressbus"
	"golang-workspace-automation/internal/utils"
	"golang-workspace-automation/pkg/vault"
)

// Phase weights. Percentage never regresses within a run; the per-entity
// loop fills the 40..90 window linearly.
const (
	pctStarting        = 0
	pctAuthenticating  = 5
	pctFetching        = 20
	pctProcessingStart = 40
	pctProcessingEnd   = 90
	pctCompleted       = 100
)

// BillingGateway is the slice of the billing client the supervisor needs.
type BillingGateway interface {
	Authenticate(ctx context.Context, integration *models.IntegrationEntity, secret string) (string, error)
	FetchRemoteState(ctx context.Context, integration *models.IntegrationEntity, bearer string) ([]billing.RemoteRecord, error)
	SyncSubscriber(ctx context.Context, integration *models.IntegrationEntity, bearer string, subscriber *models.SubscriberEntity) error
}

// SupervisorService drives one multi-phase sync run per start request:
// admission control, detached execution, cooperative cancellation, and the
// terminal outcome record.
type SupervisorService interface {
	Start(ctx context.Context, workspaceID, integrationID uint) (string, error)
	Cancel(ctx context.Context, workspaceID uint, taskID string) error
	GetRun(ctx context.Context, workspaceID uint, taskID string) (*models.SyncRunEntity, error)
	ReconcileStale(ctx context.Context, workspaceID uint) (int, error)
}

type supervisorService struct {
	cfg     *config.SyncConfig
	log     *logrus.Logger
	stores  repository.StoreProvider
	billing BillingGateway
	cipher  *vault.Cipher
	bus     progressbus.Bus
	cancels *CancelRegistry
}

func NewSupervisorService(
	cfg *config.SyncConfig,
	log *logrus.Logger,
	stores repository.StoreProvider,
	billingGateway BillingGateway,
	cipher *vault.Cipher,
	bus progressbus.Bus,
	cancels *CancelRegistry,
) SupervisorService {
	return &supervisorService{
		cfg:     cfg,
		log:     log,
		stores:  stores,
		billing: billingGateway,
		cipher:  cipher,
		bus:     bus,
		cancels: cancels,
	}
}

func (s *supervisorService) Start(ctx context.Context, workspaceID, integrationID uint) (string, error) {
	stores, err := s.stores.For(ctx, workspaceID)
	if err != nil {
		return "", fmt.Errorf("failed to open workspace stores: %w", err)
	}

	integration, err := stores.Integrations.GetByID(ctx, integrationID)
	if err != nil {
		return "", fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return "", ErrIntegrationNotFound
	}
	if !integration.SyncEnabled {
		return "", ErrSyncDisabled
	}

	run := &models.SyncRunEntity{
		TaskID:          uuid.NewString(),
		WorkspaceID:     workspaceID,
		IntegrationID:   integration.ID,
		IntegrationName: integration.Name,
		Status:          models.SyncStatusStarting,
		Percentage:      pctStarting,
		Message:         "sync run accepted",
		StartedAt:       time.Now(),
	}

	// Check-then-insert inside one transaction. A narrow race between two
	// concurrent starts remains and is tolerated; see the repository docs.
	err = stores.UnitOfWork.Do(ctx, func(tx *gorm.DB) error {
		active, err := stores.SyncRuns.GetActive(ctx, workspaceID, integration.ID, utils.WithTx(tx))
		if err != nil {
			return err
		}
		if active != nil {
			return &RunInProgressError{
				TaskID:     active.TaskID,
				Status:     active.Status,
				Percentage: active.Percentage,
			}
		}
		return stores.SyncRuns.Create(ctx, run, utils.WithTx(tx))
	})
	if err != nil {
		return "", err
	}

	s.publish(run)

	// The run outlives the triggering request; the caller polls or
	// subscribes with the returned task id.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancels.Register(run.TaskID, cancel)
	utils.SafeGo(func() {
		defer s.cancels.Remove(run.TaskID)
		defer cancel()
		s.execute(runCtx, stores, integration, run)
	})

	return run.TaskID, nil
}

func (s *supervisorService) execute(runCtx context.Context, stores *repository.Stores, integration *models.IntegrationEntity, run *models.SyncRunEntity) {
	// Persistence and publication use their own context: a cancelled run
	// must still be able to write its terminal state.
	persistCtx := context.Background()
	// Remote calls are shielded from the cancellation signal so an in-flight
	// call completes; the signal is observed only at entity boundaries. The
	// billing client carries its own request timeout.
	callCtx := context.WithoutCancel(runCtx)
	logFields := logrus.Fields{
		"task_id":        run.TaskID,
		"workspace_id":   run.WorkspaceID,
		"integration_id": run.IntegrationID,
	}

	s.advance(persistCtx, stores, run, models.SyncStatusAuthenticating, pctAuthenticating, "authenticating with provider")

	// The credential is decrypted at the point of use only. It is passed
	// straight into the token exchange and goes out of scope after.
	secret, err := s.cipher.Open(integration.EncryptedSecret)
	if err != nil {
		s.log.WithError(err).WithFields(logFields).Error("failed to decrypt integration credential")
		s.finish(persistCtx, stores, run, models.SyncStatusFailed, "credential decryption failed")
		return
	}
	bearer, err := s.billing.Authenticate(callCtx, integration, secret)
	if err != nil {
		s.log.WithError(err).WithFields(logFields).Error("authentication with billing provider failed")
		s.finish(persistCtx, stores, run, models.SyncStatusFailed, fmt.Sprintf("authentication failed: %v", err))
		return
	}

	s.advance(persistCtx, stores, run, models.SyncStatusFetchingRemoteState, pctFetching, "fetching remote subscriber state")

	records, err := s.billing.FetchRemoteState(callCtx, integration, bearer)
	if err != nil {
		s.log.WithError(err).WithFields(logFields).Error("failed to fetch remote state")
		s.finish(persistCtx, stores, run, models.SyncStatusFailed, fmt.Sprintf("remote state fetch failed: %v", err))
		return
	}
	remote := make(map[string]billing.RemoteRecord, len(records))
	for _, record := range records {
		remote[record.ExternalRef] = record
	}

	subscribers, err := stores.Subscribers.ListAll(persistCtx)
	if err != nil {
		s.log.WithError(err).WithFields(logFields).Error("failed to load subscribers")
		s.finish(persistCtx, stores, run, models.SyncStatusFailed, fmt.Sprintf("subscriber load failed: %v", err))
		return
	}

	run.TotalCount = len(subscribers)
	s.advance(persistCtx, stores, run, models.SyncStatusProcessingEntities, pctProcessingStart,
		fmt.Sprintf("processing %d subscribers", run.TotalCount))

	for i := range subscribers {
		// Cooperative cancellation: checked once per entity, never
		// preemptively mid-call.
		select {
		case <-runCtx.Done():
			s.finish(persistCtx, stores, run, models.SyncStatusCancelled, "cancelled by user")
			return
		default:
		}

		subscriber := &subscribers[i]
		if err := s.syncOne(callCtx, integration, bearer, remote, subscriber); err != nil {
			run.FailedCount++
			s.log.WithError(err).WithFields(logrus.Fields{
				"task_id":       run.TaskID,
				"subscriber_id": subscriber.ID,
			}).Warn("subscriber sync failed, continuing")
		} else {
			run.SucceededCount++
		}
		run.ProcessedCount++

		pct := pctProcessingStart
		if run.TotalCount > 0 {
			pct = pctProcessingStart + (pctProcessingEnd-pctProcessingStart)*run.ProcessedCount/run.TotalCount
		}
		s.advance(persistCtx, stores, run, models.SyncStatusProcessingEntities, pct,
			fmt.Sprintf("processed %d/%d subscribers", run.ProcessedCount, run.TotalCount))
	}

	s.advance(persistCtx, stores, run, models.SyncStatusSyncingToRemote, pctProcessingEnd, "finalizing remote state")

	s.finish(persistCtx, stores, run, models.SyncStatusCompleted, "")
}

// syncOne pushes a single subscriber, skipping the remote call when the
// provider already holds the same plan and status.
func (s *supervisorService) syncOne(callCtx context.Context, integration *models.IntegrationEntity, bearer string, remote map[string]billing.RemoteRecord, subscriber *models.SubscriberEntity) error {
	if subscriber.ExternalRef == "" {
		return fmt.Errorf("subscriber %d has no external reference", subscriber.ID)
	}
	if record, ok := remote[subscriber.ExternalRef]; ok {
		if record.Plan == subscriber.Plan && record.Status == subscriber.Status {
			return nil
		}
	}
	return s.billing.SyncSubscriber(callCtx, integration, bearer, subscriber)
}

// advance persists a progress transition and then publishes the same
// snapshot, in that order. Percentage is clamped to be non-decreasing.
func (s *supervisorService) advance(ctx context.Context, stores *repository.Stores, run *models.SyncRunEntity, status models.SyncRunStatus, percentage int, message string) {
	if percentage < run.Percentage {
		percentage = run.Percentage
	}
	run.Status = status
	run.Percentage = percentage
	run.Message = message
	run.UpdatedAt = time.Now()
	if err := stores.SyncRuns.Update(ctx, run); err != nil {
		s.log.WithError(err).WithField("task_id", run.TaskID).Error("failed to persist progress")
	}
	s.publish(run)
}

// finish moves the run to a terminal status and appends the immutable
// outcome record exactly once.
func (s *supervisorService) finish(ctx context.Context, stores *repository.Stores, run *models.SyncRunEntity, status models.SyncRunStatus, errorMessage string) {
	percentage := run.Percentage
	message := run.Message
	switch status {
	case models.SyncStatusCompleted:
		percentage = pctCompleted
		message = "sync completed"
	case models.SyncStatusFailed:
		message = errorMessage
	case models.SyncStatusCancelled:
		// Percentage reflects the last persisted value, never reset.
		message = errorMessage
	}

	now := time.Now()
	run.Status = status
	run.Percentage = percentage
	run.Message = message
	run.UpdatedAt = now
	run.CompletedAt = sql.NullTime{Time: now, Valid: true}
	if err := stores.SyncRuns.Update(ctx, run); err != nil {
		s.log.WithError(err).WithField("task_id", run.TaskID).Error("failed to persist terminal status")
	}
	s.publish(run)

	outcome := &models.SyncOutcomeEntity{
		WorkspaceID:    run.WorkspaceID,
		IntegrationID:  run.IntegrationID,
		TaskID:         run.TaskID,
		Status:         status,
		TotalCount:     run.TotalCount,
		SucceededCount: run.SucceededCount,
		FailedCount:    run.FailedCount,
		DurationMs:     now.Sub(run.StartedAt).Milliseconds(),
	}
	if status == models.SyncStatusFailed && errorMessage != "" {
		outcome.ErrorMessage = sql.NullString{String: errorMessage, Valid: true}
	}
	if err := stores.Outcomes.Create(ctx, outcome); err != nil {
		s.log.WithError(err).WithField("task_id", run.TaskID).Error("failed to append sync outcome")
	}

	s.log.WithFields(logrus.Fields{
		"task_id":   run.TaskID,
		"status":    status,
		"total":     run.TotalCount,
		"succeeded": run.SucceededCount,
		"failed":    run.FailedCount,
	}).Info("sync run finished")
}

func (s *supervisorService) publish(run *models.SyncRunEntity) {
	if err := s.bus.Publish(context.Background(), run.Snapshot()); err != nil {
		s.log.WithError(err).WithField("task_id", run.TaskID).Warn("failed to publish progress update")
	}
}

// Cancel requests cooperative cancellation. Terminal and unknown-handle
// runs are a no-op.
func (s *supervisorService) Cancel(ctx context.Context, workspaceID uint, taskID string) error {
	stores, err := s.stores.For(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to open workspace stores: %w", err)
	}
	run, err := stores.SyncRuns.GetByTaskID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load sync run: %w", err)
	}
	if run == nil {
		return ErrRunNotFound
	}
	if run.Status.IsTerminal() {
		return nil
	}
	if !s.cancels.Cancel(taskID) {
		s.log.WithField("task_id", taskID).Warn("no cancellation handle registered, run may be stuck")
	}
	return nil
}

func (s *supervisorService) GetRun(ctx context.Context, workspaceID uint, taskID string) (*models.SyncRunEntity, error) {
	stores, err := s.stores.For(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace stores: %w", err)
	}
	run, err := stores.SyncRuns.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ReconcileStale fails runs left non-terminal by a crashed process. Runs
// younger than the cutoff are left alone; they may still be driven by a
// live supervisor.
func (s *supervisorService) ReconcileStale(ctx context.Context, workspaceID uint) (int, error) {
	stores, err := s.stores.For(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("failed to open workspace stores: %w", err)
	}
	cutoff := s.cfg.StaleRunCutoff
	if cutoff <= 0 {
		cutoff = 24 * time.Hour
	}
	stale, err := stores.SyncRuns.ListStale(ctx, time.Now().Add(-cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale runs: %w", err)
	}
	for i := range stale {
		run := &stale[i]
		s.finish(ctx, stores, run, models.SyncStatusFailed, "interrupted by restart")
	}
	return len(stale), nil
}
