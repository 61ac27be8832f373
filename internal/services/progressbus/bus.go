package progressbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/pkg/redis"
)

// Bus fans progress snapshots out to live subscribers, grouped by
// integration. Updates for one task id are published in persistence order;
// there is no ordering guarantee across tasks.
type Bus interface {
	Publish(ctx context.Context, update models.ProgressUpdate) error
	Subscribe(ctx context.Context, integrationID uint) (<-chan models.ProgressUpdate, func(), error)
}

type redisBus struct {
	log         *logrus.Logger
	redisClient *redis.Client
}

func NewRedisBus(log *logrus.Logger, redisClient *redis.Client) Bus {
	return &redisBus{log: log, redisClient: redisClient}
}

func channelFor(integrationID uint) string {
	return fmt.Sprintf("sync:progress:%d", integrationID)
}

func (b *redisBus) Publish(ctx context.Context, update models.ProgressUpdate) error {
	raw, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal progress update: %w", err)
	}
	return b.redisClient.Publish(ctx, channelFor(update.IntegrationID), raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, integrationID uint) (<-chan models.ProgressUpdate, func(), error) {
	sub := b.redisClient.Subscribe(ctx, channelFor(integrationID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to progress channel: %w", err)
	}

	out := make(chan models.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var update models.ProgressUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					b.log.WithError(err).Warn("malformed progress payload, skipping")
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}
