package automation

import (
	"context"
	"encoding/json"
	"fmt"

	goRedis "github.com/redis/go-redis/v9"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/pkg/redis"
)

// EventSink hands detected events to the downstream automation evaluator.
// Only the event shape is a contract; the evaluator itself lives elsewhere.
type EventSink interface {
	Submit(ctx context.Context, workspaceID uint, event models.AutomationEvent) error
}

const eventStream = "automation:events"

type redisStreamSink struct {
	redisClient *redis.Client
}

// NewRedisStreamSink publishes events onto a redis stream consumed by the
// automation evaluator.
func NewRedisStreamSink(redisClient *redis.Client) EventSink {
	return &redisStreamSink{redisClient: redisClient}
}

func (s *redisStreamSink) Submit(ctx context.Context, workspaceID uint, event models.AutomationEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal automation event: %w", err)
	}
	err = s.redisClient.XAdd(ctx, &goRedis.XAddArgs{
		Stream: eventStream,
		Values: map[string]interface{}{
			"workspace_id": workspaceID,
			"trigger_kind": string(event.TriggerKind),
			"payload":      raw,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to submit automation event: %w", err)
	}
	return nil
}
