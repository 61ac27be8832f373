package models

import (
	"time"
)

// IntegrationEntity lives in the workspace-scoped database. EncryptedSecret
// holds the AES-GCM sealed provider credential, decrypted only right before
// the token exchange.
type IntegrationEntity struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"type:varchar(255);not null"`
	Provider        string `gorm:"type:varchar(100);not null"`
	BaseURL         string `gorm:"type:varchar(500);not null"`
	Username        string `gorm:"type:varchar(255)"`
	EncryptedSecret string `gorm:"type:text;not null"`
	MaxConcurrency  int    `gorm:"not null;default:1"`
	SyncEnabled     bool   `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (IntegrationEntity) TableName() string {
	return "integrations"
}
