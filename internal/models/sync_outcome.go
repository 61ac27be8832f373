package models

import (
	"database/sql"
	"time"
)

// SyncOutcomeEntity is the append-only audit record written exactly once
// when a run reaches a terminal status. Never updated after insert.
type SyncOutcomeEntity struct {
	ID             uint           `gorm:"primaryKey"`
	WorkspaceID    uint           `gorm:"not null;index"`
	IntegrationID  uint           `gorm:"not null;index"`
	TaskID         string         `gorm:"type:varchar(36);not null;uniqueIndex"`
	Status         SyncRunStatus  `gorm:"type:varchar(50);not null"`
	TotalCount     int            `gorm:"not null;default:0"`
	SucceededCount int            `gorm:"not null;default:0"`
	FailedCount    int            `gorm:"not null;default:0"`
	DurationMs     int64          `gorm:"not null;default:0"`
	ErrorMessage   sql.NullString `gorm:"type:text"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
}

func (SyncOutcomeEntity) TableName() string {
	return "sync_outcomes"
}
