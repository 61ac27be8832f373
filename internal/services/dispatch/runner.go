package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/pkg/redis"
)

// Runner drains the workspace queues with a bounded worker pool and
// promotes due scheduled and recurring jobs. Sequential queues (dedicated
// per-integration) are claimed exclusively so their jobs never overlap;
// shared queues are popped by any idle worker.
type Runner struct {
	cfg         *config.DispatchConfig
	log         *logrus.Logger
	redisClient *redis.Client
	registry    *Registry

	mu      sync.Mutex
	claimed map[string]bool
	wg      sync.WaitGroup
}

func NewRunner(cfg *config.DispatchConfig, log *logrus.Logger, redisClient *redis.Client, registry *Registry) *Runner {
	return &Runner{
		cfg:         cfg,
		log:         log,
		redisClient: redisClient,
		registry:    registry,
		claimed:     make(map[string]bool),
	}
}

// Start launches the promoter loop and the worker pool. It returns
// immediately; Stop waits for in-flight jobs.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.promoteLoop(ctx)
	}()

	workerCount := r.cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 5
	}
	for i := 0; i < workerCount; i++ {
		r.wg.Add(1)
		go func(workerID int) {
			defer r.wg.Done()
			r.workLoop(ctx, workerID)
		}(i)
	}
}

func (r *Runner) Stop() {
	r.wg.Wait()
}

func (r *Runner) promoteLoop(ctx context.Context) {
	interval := r.cfg.RecurringInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.promoteScheduled(ctx); err != nil {
				r.log.WithError(err).Error("failed to promote scheduled jobs")
			}
			if err := r.promoteRecurring(ctx); err != nil {
				r.log.WithError(err).Error("failed to promote recurring jobs")
			}
		}
	}
}

// promoteScheduled moves due one-shot jobs from the sorted set into their
// queues.
func (r *Runner) promoteScheduled(ctx context.Context) error {
	now := time.Now().UnixMilli()
	members, err := r.redisClient.ZRangeByScore(ctx, scheduledKey, &goRedis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: 100,
	}).Result()
	if err != nil {
		return err
	}
	for _, member := range members {
		var entry scheduledEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			r.log.WithError(err).Warn("dropping malformed scheduled entry")
			r.redisClient.ZRem(ctx, scheduledKey, member)
			continue
		}
		raw, err := json.Marshal(entry.Job)
		if err != nil {
			continue
		}
		pipe := r.redisClient.TxPipeline()
		pipe.ZRem(ctx, scheduledKey, member)
		pipe.SAdd(ctx, queueSetKey, entry.Queue)
		pipe.RPush(ctx, queueKeyPrefix+entry.Queue, raw)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// promoteRecurring enqueues due recurring jobs and advances their next-run
// timestamps from the cron expression.
func (r *Runner) promoteRecurring(ctx context.Context) error {
	entries, err := r.redisClient.HGetAll(ctx, recurringKey).Result()
	if err != nil {
		return err
	}
	now := time.Now()
	for field, value := range entries {
		var entry recurringEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			r.log.WithError(err).WithField("job_key", field).Warn("dropping malformed recurring entry")
			r.redisClient.HDel(ctx, recurringKey, field)
			continue
		}
		if entry.NextRunMs > now.UnixMilli() {
			continue
		}
		schedule, err := cron.ParseStandard(entry.Expr)
		if err != nil {
			r.log.WithError(err).WithField("job_key", field).Warn("removing recurring entry with bad cron expression")
			r.redisClient.HDel(ctx, recurringKey, field)
			continue
		}

		job := entry.Job
		raw, err := json.Marshal(job)
		if err != nil {
			continue
		}
		entry.NextRunMs = schedule.Next(now).UnixMilli()
		updated, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		pipe := r.redisClient.TxPipeline()
		pipe.SAdd(ctx, queueSetKey, entry.Queue)
		pipe.RPush(ctx, queueKeyPrefix+entry.Queue, raw)
		pipe.HSet(ctx, recurringKey, field, updated)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) workLoop(ctx context.Context, workerID int) {
	pollInterval := r.cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := r.processOne(ctx)
		if err != nil {
			r.log.WithError(err).WithField("worker", workerID).Error("job dispatch failed")
		}
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
		}
	}
}

// processOne pops at most one job from any eligible queue. Returns whether
// a job was processed.
func (r *Runner) processOne(ctx context.Context) (bool, error) {
	queues, err := r.redisClient.SMembers(ctx, queueSetKey).Result()
	if err != nil {
		return false, err
	}
	for _, queue := range queues {
		sequential := isSequentialQueue(queue)
		if sequential && !r.claim(queue) {
			continue
		}
		raw, err := r.redisClient.LPop(ctx, queueKeyPrefix+queue).Result()
		if err == goRedis.Nil {
			if sequential {
				r.release(queue)
			}
			continue
		}
		if err != nil {
			if sequential {
				r.release(queue)
			}
			return false, err
		}

		r.runJob(ctx, queue, raw)
		if sequential {
			r.release(queue)
		}
		return true, nil
	}
	return false, nil
}

func (r *Runner) runJob(ctx context.Context, queue, raw string) {
	var job models.JobDescriptor
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		r.log.WithError(err).WithField("queue", queue).Error("dropping malformed job descriptor")
		return
	}

	handler, ok := r.registry.Get(job.Kind)
	if !ok {
		r.log.WithFields(logrus.Fields{
			"kind":  job.Kind,
			"queue": queue,
		}).Error("no handler registered for job kind")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"kind":  job.Kind,
				"queue": queue,
				"panic": rec,
			}).Error("job handler panicked")
		}
	}()

	if err := handler(ctx, job); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"kind":         job.Kind,
			"queue":        queue,
			"workspace_id": job.WorkspaceID,
		}).Error("job handler returned error")
	}
}

func (r *Runner) claim(queue string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed[queue] {
		return false
	}
	r.claimed[queue] = true
	return true
}

func (r *Runner) release(queue string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, queue)
}

func isSequentialQueue(queue string) bool {
	return strings.Contains(queue, "_integration_")
}
