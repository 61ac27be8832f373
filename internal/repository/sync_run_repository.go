package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/utils"
)

var terminalStatuses = []models.SyncRunStatus{
	models.SyncStatusCompleted,
	models.SyncStatusFailed,
	models.SyncStatusCancelled,
}

type SyncRunRepository interface {
	GetByTaskID(ctx context.Context, taskID string, opts ...utils.DBOption) (*models.SyncRunEntity, error)
	GetActive(ctx context.Context, workspaceID, integrationID uint, opts ...utils.DBOption) (*models.SyncRunEntity, error)
	Create(ctx context.Context, run *models.SyncRunEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, run *models.SyncRunEntity, opts ...utils.DBOption) error
	ListStale(ctx context.Context, olderThan time.Time, opts ...utils.DBOption) ([]models.SyncRunEntity, error)
}

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) GetByTaskID(ctx context.Context, taskID string, opts ...utils.DBOption) (*models.SyncRunEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var run models.SyncRunEntity
	result := db.Where("task_id = ?", taskID).First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &run, nil
}

func (r *syncRunRepository) GetActive(ctx context.Context, workspaceID, integrationID uint, opts ...utils.DBOption) (*models.SyncRunEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var run models.SyncRunEntity
	result := db.
		Where("workspace_id = ? AND integration_id = ?", workspaceID, integrationID).
		Where("status NOT IN ?", terminalStatuses).
		First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &run, nil
}

func (r *syncRunRepository) Create(ctx context.Context, run *models.SyncRunEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Create(run).Error
}

func (r *syncRunRepository) Update(ctx context.Context, run *models.SyncRunEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Save(run).Error
}

func (r *syncRunRepository) ListStale(ctx context.Context, olderThan time.Time, opts ...utils.DBOption) ([]models.SyncRunEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var runs []models.SyncRunEntity
	result := db.
		Where("status NOT IN ?", terminalStatuses).
		Where("updated_at < ?", olderThan).
		Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}
