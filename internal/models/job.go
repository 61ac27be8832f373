package models

import (
	"encoding/json"
	"time"
)

// JobDescriptor is the serializable unit of work routed through the
// per-workspace queues: a kind tag plus a typed JSON payload, dispatched
// via the handler registry rather than reflection.
type JobDescriptor struct {
	Kind        string          `json:"kind"`
	WorkspaceID uint            `json:"workspace_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// SyncJobPayload triggers a supervised sync run for one integration.
type SyncJobPayload struct {
	IntegrationID uint `json:"integration_id"`
}

// DetectJobPayload runs one detector pass for a trigger kind.
type DetectJobPayload struct {
	TriggerKind TriggerKind `json:"trigger_kind"`
}
