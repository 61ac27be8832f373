package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/services/workspace"
	"golang-workspace-automation/pkg/redis"
)

func TestQueueNameFor(t *testing.T) {
	tests := []struct {
		name           string
		workspaceID    uint
		integrationID  uint
		maxConcurrency int
		want           string
	}{
		{
			name:           "sequential integration gets dedicated queue",
			workspaceID:    5,
			integrationID:  42,
			maxConcurrency: 1,
			want:           "tenant_5_integration_42",
		},
		{
			name:           "parallel integration shares workspace queue",
			workspaceID:    5,
			integrationID:  42,
			maxConcurrency: 4,
			want:           "tenant_5",
		},
		{
			name:           "zero concurrency treated as shared",
			workspaceID:    9,
			integrationID:  1,
			maxConcurrency: 0,
			want:           "tenant_9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QueueNameFor(tt.workspaceID, tt.integrationID, tt.maxConcurrency); got != tt.want {
				t.Errorf("QueueNameFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSequentialQueue(t *testing.T) {
	if !isSequentialQueue("tenant_5_integration_42") {
		t.Error("dedicated integration queue not recognized as sequential")
	}
	if isSequentialQueue("tenant_5") {
		t.Error("shared workspace queue wrongly treated as sequential")
	}
}

type staticDirectory struct {
	workspace.DirectoryService
	descriptor *models.WorkspaceDescriptor
}

func (d *staticDirectory) Resolve(ctx context.Context, identifier string) (*models.WorkspaceDescriptor, error) {
	if d.descriptor == nil {
		return nil, workspace.ErrWorkspaceNotFound
	}
	return d.descriptor, nil
}

func newTestDispatcher(t *testing.T) (Dispatcher, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClientFromRedis(goRedis.NewClient(&goRedis.Options{Addr: mr.Addr()}))
	logger := logrus.New()
	directory := &staticDirectory{descriptor: &models.WorkspaceDescriptor{ID: 5, Name: "acme", IsActive: true}}
	return NewDispatcher(logger, client, workspace.NewWorkspaceResolver(), directory), client, mr
}

func workspaceCtx() context.Context {
	return workspace.WithOverride(context.Background(), "acme")
}

func TestEnqueueRequiresWorkspaceContext(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	err := d.Enqueue(context.Background(), models.JobDescriptor{Kind: "integration_sync"})
	if err != workspace.ErrNoWorkspaceContext {
		t.Errorf("Enqueue() error = %v, want ErrNoWorkspaceContext", err)
	}
}

func TestEnqueuePushesToWorkspaceQueue(t *testing.T) {
	d, client, _ := newTestDispatcher(t)
	ctx := workspaceCtx()

	if err := d.Enqueue(ctx, models.JobDescriptor{Kind: "integration_sync"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	queues, err := client.SMembers(ctx, queueSetKey).Result()
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	if len(queues) != 1 || queues[0] != "tenant_5" {
		t.Fatalf("queue set = %v, want [tenant_5]", queues)
	}

	raw, err := client.LPop(ctx, queueKeyPrefix+"tenant_5").Result()
	if err != nil {
		t.Fatalf("LPop: %v", err)
	}
	var job models.JobDescriptor
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.Kind != "integration_sync" || job.WorkspaceID != 5 {
		t.Errorf("job = %+v, want kind integration_sync in workspace 5", job)
	}
}

func TestEnqueueToDedicatedQueue(t *testing.T) {
	d, client, _ := newTestDispatcher(t)
	ctx := workspaceCtx()

	queue := QueueNameFor(5, 42, 1)
	if err := d.EnqueueTo(ctx, models.JobDescriptor{Kind: "integration_sync"}, queue); err != nil {
		t.Fatalf("EnqueueTo: %v", err)
	}

	length, err := client.LLen(ctx, queueKeyPrefix+"tenant_5_integration_42").Result()
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if length != 1 {
		t.Errorf("queue length = %d, want 1", length)
	}
}

func TestSchedulePlacesEntryInSortedSet(t *testing.T) {
	d, client, _ := newTestDispatcher(t)
	ctx := workspaceCtx()

	if err := d.Schedule(ctx, models.JobDescriptor{Kind: "integration_sync"}, time.Hour); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	members, err := client.ZRangeByScore(ctx, scheduledKey, &goRedis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		t.Fatalf("ZRangeByScore: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("scheduled entries = %d, want 1", len(members))
	}
	var entry scheduledEntry
	if err := json.Unmarshal([]byte(members[0]), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if entry.Queue != "tenant_5" {
		t.Errorf("entry queue = %q, want tenant_5", entry.Queue)
	}
}

func TestUpsertRecurring(t *testing.T) {
	d, client, _ := newTestDispatcher(t)
	ctx := workspaceCtx()

	job := models.JobDescriptor{Kind: "automation_detect", WorkspaceID: 5}
	if err := d.UpsertRecurring(ctx, "detect-expired", job, "*/5 * * * *"); err != nil {
		t.Fatalf("UpsertRecurring: %v", err)
	}

	raw, err := client.HGet(ctx, recurringKey, "tenant_5:detect-expired").Result()
	if err != nil {
		t.Fatalf("HGet: %v", err)
	}
	var entry recurringEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if entry.Expr != "*/5 * * * *" {
		t.Errorf("entry expr = %q, want */5 * * * *", entry.Expr)
	}
	if entry.NextRunMs <= time.Now().Add(-time.Minute).UnixMilli() {
		t.Error("next run not advanced past now")
	}

	if err := d.RemoveRecurring(ctx, 5, "detect-expired"); err != nil {
		t.Fatalf("RemoveRecurring: %v", err)
	}
	if _, err := client.HGet(ctx, recurringKey, "tenant_5:detect-expired").Result(); err != goRedis.Nil {
		t.Errorf("HGet after remove: err = %v, want redis.Nil", err)
	}
}

func TestUpsertRecurringRejectsBadCron(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	job := models.JobDescriptor{Kind: "automation_detect", WorkspaceID: 5}
	if err := d.UpsertRecurring(workspaceCtx(), "detect-expired", job, "not a cron"); err == nil {
		t.Error("UpsertRecurring() accepted a malformed cron expression")
	}
}
