package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/utils"
)

// IntegrationRepository reads integration rows from a workspace-scoped
// database handle.
type IntegrationRepository interface {
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.IntegrationEntity, error)
	ListSyncEnabled(ctx context.Context, opts ...utils.DBOption) ([]models.IntegrationEntity, error)
}

type integrationRepository struct {
	db *gorm.DB
}

func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.IntegrationEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var integration models.IntegrationEntity
	result := db.Where("id = ?", id).First(&integration)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &integration, nil
}

func (r *integrationRepository) ListSyncEnabled(ctx context.Context, opts ...utils.DBOption) ([]models.IntegrationEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var integrations []models.IntegrationEntity
	result := db.Where("sync_enabled = ?", true).Order("id ASC").Find(&integrations)
	if result.Error != nil {
		return nil, result.Error
	}
	return integrations, nil
}
