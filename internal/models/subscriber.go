package models

import (
	"database/sql"
	"time"
)

type SubscriberEntity struct {
	ID          uint   `gorm:"primaryKey"`
	ExternalRef string `gorm:"type:varchar(255);index"`
	Name        string `gorm:"type:varchar(255);not null"`
	Email       string `gorm:"type:varchar(255)"`
	Plan        string `gorm:"type:varchar(100)"`
	Status      string `gorm:"type:varchar(50);not null;default:active"`
	ExpiresAt   sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (SubscriberEntity) TableName() string {
	return "subscribers"
}
