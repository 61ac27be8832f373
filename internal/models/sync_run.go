package models

import (
	"database/sql"
	"time"
)

type SyncRunStatus string

const (
	SyncStatusStarting            SyncRunStatus = "starting"
	SyncStatusAuthenticating      SyncRunStatus = "authenticating"
	SyncStatusFetchingRemoteState SyncRunStatus = "fetching_remote_state"
	SyncStatusProcessingEntities  SyncRunStatus = "processing_entities"
	SyncStatusSyncingToRemote     SyncRunStatus = "syncing_to_remote"
	SyncStatusCompleted           SyncRunStatus = "completed"
	SyncStatusFailed              SyncRunStatus = "failed"
	SyncStatusCancelled           SyncRunStatus = "cancelled"
)

func (s SyncRunStatus) IsTerminal() bool {
	switch s {
	case SyncStatusCompleted, SyncStatusFailed, SyncStatusCancelled:
		return true
	}
	return false
}

// SyncRunEntity is the mutable progress row for one supervised run,
// keyed by task id. At most one non-terminal row may exist per
// (workspace, integration) pair.
type SyncRunEntity struct {
	TaskID          string        `gorm:"type:varchar(36);primaryKey"`
	WorkspaceID     uint          `gorm:"not null;index:idx_sync_runs_ws_integration"`
	IntegrationID   uint          `gorm:"not null;index:idx_sync_runs_ws_integration"`
	IntegrationName string        `gorm:"type:varchar(255)"`
	Status          SyncRunStatus `gorm:"type:varchar(50);not null"`
	Percentage      int           `gorm:"not null;default:0"`
	Message         string        `gorm:"type:text"`
	TotalCount      int           `gorm:"not null;default:0"`
	ProcessedCount  int           `gorm:"not null;default:0"`
	SucceededCount  int           `gorm:"not null;default:0"`
	FailedCount     int           `gorm:"not null;default:0"`
	StartedAt       time.Time     `gorm:"not null"`
	UpdatedAt       time.Time
	CompletedAt     sql.NullTime
}

func (SyncRunEntity) TableName() string {
	return "sync_runs"
}
