package repository

import (
	"context"

	"gorm.io/gorm"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/utils"
)

type AutomationRepository interface {
	HasEnabledRuleForKind(ctx context.Context, kind models.TriggerKind, opts ...utils.DBOption) (bool, error)
	// ListFiredSubscriberIDs returns every subscriber id with a successful
	// execution recorded for the kind, regardless of age.
	ListFiredSubscriberIDs(ctx context.Context, kind models.TriggerKind, opts ...utils.DBOption) ([]uint, error)
	CreateExecution(ctx context.Context, execution *models.AutomationExecutionEntity, opts ...utils.DBOption) error
}

type automationRepository struct {
	db *gorm.DB
}

func NewAutomationRepository(db *gorm.DB) AutomationRepository {
	return &automationRepository{db: db}
}

func (r *automationRepository) HasEnabledRuleForKind(ctx context.Context, kind models.TriggerKind, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var count int64
	result := db.Model(&models.AutomationRuleEntity{}).
		Where("is_enabled = ?", true).
		Where("? = ANY(trigger_kinds)", string(kind)).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (r *automationRepository) ListFiredSubscriberIDs(ctx context.Context, kind models.TriggerKind, opts ...utils.DBOption) ([]uint, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var ids []uint
	result := db.Model(&models.AutomationExecutionEntity{}).
		Where("trigger_kind = ? AND status = ?", kind, models.ExecutionStatusSuccess).
		Distinct().
		Pluck("subscriber_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

func (r *automationRepository) CreateExecution(ctx context.Context, execution *models.AutomationExecutionEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Create(execution).Error
}
