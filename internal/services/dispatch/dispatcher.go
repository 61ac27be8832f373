package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/services/workspace"
	"golang-workspace-automation/pkg/redis"
)

const (
	queueKeyPrefix = "dispatch:queue:"
	queueSetKey    = "dispatch:queues"
	scheduledKey   = "dispatch:scheduled"
	recurringKey   = "dispatch:recurring"
)

// QueueNameFor picks the queue for a unit of work. Sequential integrations
// (maxConcurrency == 1) get a dedicated queue so their jobs never overlap;
// everything else shares the workspace-wide queue, bounded only by the
// worker pool.
func QueueNameFor(workspaceID, integrationID uint, maxConcurrency int) string {
	if maxConcurrency == 1 {
		return fmt.Sprintf("tenant_%d_integration_%d", workspaceID, integrationID)
	}
	return fmt.Sprintf("tenant_%d", workspaceID)
}

// DefaultQueueName is the workspace-wide shared queue.
func DefaultQueueName(workspaceID uint) string {
	return fmt.Sprintf("tenant_%d", workspaceID)
}

// Dispatcher routes job descriptors into per-workspace queues. Calls that
// do not name a queue resolve the current workspace from the request
// context and fail fast without one.
type Dispatcher interface {
	Enqueue(ctx context.Context, job models.JobDescriptor) error
	EnqueueTo(ctx context.Context, job models.JobDescriptor, queue string) error
	Schedule(ctx context.Context, job models.JobDescriptor, delay time.Duration) error
	UpsertRecurring(ctx context.Context, jobKey string, job models.JobDescriptor, cronExpr string) error
	RemoveRecurring(ctx context.Context, workspaceID uint, jobKey string) error
	QueueNameFor(ctx context.Context, integrationID uint, maxConcurrency int) (string, error)
}

type scheduledEntry struct {
	Queue string               `json:"queue"`
	Job   models.JobDescriptor `json:"job"`
}

type recurringEntry struct {
	Queue     string               `json:"queue"`
	Job       models.JobDescriptor `json:"job"`
	Expr      string               `json:"expr"`
	NextRunMs int64                `json:"next_run_ms"`
}

type dispatcher struct {
	log         *logrus.Logger
	redisClient *redis.Client
	resolver    *workspace.Resolver
	directory   workspace.DirectoryService
}

func NewDispatcher(
	log *logrus.Logger,
	redisClient *redis.Client,
	resolver *workspace.Resolver,
	directory workspace.DirectoryService,
) Dispatcher {
	return &dispatcher{
		log:         log,
		redisClient: redisClient,
		resolver:    resolver,
		directory:   directory,
	}
}

func (d *dispatcher) currentWorkspaceID(ctx context.Context) (uint, error) {
	identifier, ok := d.resolver.Identifier(ctx)
	if !ok {
		return 0, workspace.ErrNoWorkspaceContext
	}
	descriptor, err := d.directory.Resolve(ctx, identifier)
	if err != nil {
		return 0, err
	}
	return descriptor.ID, nil
}

func (d *dispatcher) Enqueue(ctx context.Context, job models.JobDescriptor) error {
	workspaceID, err := d.currentWorkspaceID(ctx)
	if err != nil {
		return err
	}
	job.WorkspaceID = workspaceID
	return d.EnqueueTo(ctx, job, DefaultQueueName(workspaceID))
}

func (d *dispatcher) EnqueueTo(ctx context.Context, job models.JobDescriptor, queue string) error {
	if job.WorkspaceID == 0 {
		workspaceID, err := d.currentWorkspaceID(ctx)
		if err != nil {
			return err
		}
		job.WorkspaceID = workspaceID
	}
	job.EnqueuedAt = time.Now()
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job descriptor: %w", err)
	}
	pipe := d.redisClient.TxPipeline()
	pipe.SAdd(ctx, queueSetKey, queue)
	pipe.RPush(ctx, queueKeyPrefix+queue, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (d *dispatcher) Schedule(ctx context.Context, job models.JobDescriptor, delay time.Duration) error {
	workspaceID, err := d.currentWorkspaceID(ctx)
	if err != nil {
		return err
	}
	job.WorkspaceID = workspaceID
	job.EnqueuedAt = time.Now()
	entry := scheduledEntry{Queue: DefaultQueueName(workspaceID), Job: job}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal scheduled entry: %w", err)
	}
	due := time.Now().Add(delay)
	return d.redisClient.ZAdd(ctx, scheduledKey, goRedis.Z{
		Score:  float64(due.UnixMilli()),
		Member: string(raw),
	}).Err()
}

// UpsertRecurring registers or replaces a recurring job. The stored key is
// namespaced by workspace id so two workspaces can register the same
// logical job name against the shared scheduler process.
func (d *dispatcher) UpsertRecurring(ctx context.Context, jobKey string, job models.JobDescriptor, cronExpr string) error {
	workspaceID := job.WorkspaceID
	if workspaceID == 0 {
		id, err := d.currentWorkspaceID(ctx)
		if err != nil {
			return err
		}
		workspaceID = id
		job.WorkspaceID = id
	}

	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	entry := recurringEntry{
		Queue:     DefaultQueueName(workspaceID),
		Job:       job,
		Expr:      cronExpr,
		NextRunMs: schedule.Next(time.Now()).UnixMilli(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal recurring entry: %w", err)
	}
	field := namespacedJobKey(workspaceID, jobKey)
	return d.redisClient.HSet(ctx, recurringKey, field, raw).Err()
}

func (d *dispatcher) RemoveRecurring(ctx context.Context, workspaceID uint, jobKey string) error {
	return d.redisClient.HDel(ctx, recurringKey, namespacedJobKey(workspaceID, jobKey)).Err()
}

func (d *dispatcher) QueueNameFor(ctx context.Context, integrationID uint, maxConcurrency int) (string, error) {
	workspaceID, err := d.currentWorkspaceID(ctx)
	if err != nil {
		return "", err
	}
	return QueueNameFor(workspaceID, integrationID, maxConcurrency), nil
}

func namespacedJobKey(workspaceID uint, jobKey string) string {
	return "tenant_" + strconv.FormatUint(uint64(workspaceID), 10) + ":" + jobKey
}
