package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/utils"
)

type SubscriberRepository interface {
	ListAll(ctx context.Context, opts ...utils.DBOption) ([]models.SubscriberEntity, error)
	// ListExpiring returns subscribers whose expiry predates the given
	// instant, oldest expiry first, capped at limit. Ordering matters: a
	// truncated batch must leave the remainder for the next run.
	ListExpiring(ctx context.Context, before time.Time, limit int, opts ...utils.DBOption) ([]models.SubscriberEntity, error)
}

type subscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) ListAll(ctx context.Context, opts ...utils.DBOption) ([]models.SubscriberEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var subscribers []models.SubscriberEntity
	result := db.Order("id ASC").Find(&subscribers)
	if result.Error != nil {
		return nil, result.Error
	}
	return subscribers, nil
}

func (r *subscriberRepository) ListExpiring(ctx context.Context, before time.Time, limit int, opts ...utils.DBOption) ([]models.SubscriberEntity, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	var subscribers []models.SubscriberEntity
	result := db.
		Where("expires_at IS NOT NULL AND expires_at <= ?", before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&subscribers)
	if result.Error != nil {
		return nil, result.Error
	}
	return subscribers, nil
}
