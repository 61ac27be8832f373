package models

import (
	"time"

	"gorm.io/gorm"
)

type WorkspaceEntity struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"type:varchar(100);uniqueIndex;not null"`
	DisplayName string `gorm:"type:varchar(255)"`
	Location    string `gorm:"type:varchar(100)"`
	IsActive    bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (WorkspaceEntity) TableName() string {
	return "workspaces"
}

// WorkspaceDescriptor is the immutable lookup result handed out by the
// workspace directory. DSN is derived from the base locator template,
// it is never stored per workspace.
type WorkspaceDescriptor struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
	IsActive    bool   `json:"is_active"`
	DSN         string `json:"-"`
}

type GetWorkspaceParam struct {
	Offset *int
	Limit  *int
}
