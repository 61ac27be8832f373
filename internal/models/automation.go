package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type TriggerKind string

const (
	TriggerSubscriberExpired TriggerKind = "subscriber_expired"
	TriggerSubscriberChurned TriggerKind = "subscriber_churned"
)

type AutomationExecutionStatus string

const (
	ExecutionStatusSuccess AutomationExecutionStatus = "success"
	ExecutionStatusFailed  AutomationExecutionStatus = "failed"
)

type AutomationRuleEntity struct {
	ID           uint           `gorm:"primaryKey"`
	Name         string         `gorm:"type:varchar(255);not null"`
	TriggerKinds pq.StringArray `gorm:"type:text[];not null"`
	IsEnabled    bool           `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AutomationRuleEntity) TableName() string {
	return "automation_rules"
}

// AutomationExecutionEntity is the dedup ledger. A success row for a
// (subscriber, trigger kind) pair marks that pair as fired forever.
type AutomationExecutionEntity struct {
	ID           uint                      `gorm:"primaryKey"`
	SubscriberID uint                      `gorm:"not null;index:idx_automation_exec_subscriber_kind"`
	TriggerKind  TriggerKind               `gorm:"type:varchar(100);not null;index:idx_automation_exec_subscriber_kind"`
	Status       AutomationExecutionStatus `gorm:"type:varchar(50);not null"`
	Payload      datatypes.JSON            `gorm:"type:jsonb"`
	ErrorMessage string                    `gorm:"type:text"`
	CreatedAt    time.Time                 `gorm:"autoCreateTime"`
}

func (AutomationExecutionEntity) TableName() string {
	return "automation_executions"
}

// AutomationEvent is the payload shape handed to the downstream automation
// evaluator. Only the shape is a contract here.
type AutomationEvent struct {
	SubscriberID uint              `json:"subscriber_id"`
	ExternalRef  string            `json:"external_ref"`
	TriggerKind  TriggerKind       `json:"trigger_kind"`
	Snapshot     map[string]string `json:"snapshot"`
	Actor        string            `json:"actor"`
	OccurredAt   time.Time         `json:"occurred_at"`
}
