package repository

import (
	"context"

	"gorm.io/gorm"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/utils"
)

// SyncOutcomeRepository appends terminal run records. Insert-only by
// design, there is no update path.
type SyncOutcomeRepository interface {
	Create(ctx context.Context, outcome *models.SyncOutcomeEntity, opts ...utils.DBOption) error
	ListByIntegration(ctx context.Context, integrationID uint, limit int, opts ...utils.DBOption) ([]models.SyncOutcomeEntity, error)
}

type syncOutcomeRepository struct {
	db *gorm.DB
}

func NewSyncOutcomeRepository(db *gorm.DB) SyncOutcomeRepository {
	return &syncOutcomeRepository{db: db}
}

func (r *syncOutcomeRepository) Create(ctx context.Context, outcome *models.SyncOutcomeEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Create(outcome).Error
}

func (r *syncOutcomeRepository) ListByIntegration(ctx context.Context, integrationID uint, limit int, opts ...utils.DBOption) ([]models.SyncOutcomeEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var outcomes []models.SyncOutcomeEntity
	result := db.
		Where("integration_id = ?", integrationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&outcomes)
	if result.Error != nil {
		return nil, result.Error
	}
	return outcomes, nil
}
