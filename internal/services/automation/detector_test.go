package automation

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/repository"
	"golang-workspace-automation/internal/utils"
)

type fakeAutomationRepo struct {
	enabledKinds map[models.TriggerKind]bool
	executions   []models.AutomationExecutionEntity
}

func (f *fakeAutomationRepo) HasEnabledRuleForKind(ctx context.Context, kind models.TriggerKind, opts ...utils.DBOption) (bool, error) {
	return f.enabledKinds[kind], nil
}

func (f *fakeAutomationRepo) ListFiredSubscriberIDs(ctx context.Context, kind models.TriggerKind, opts ...utils.DBOption) ([]uint, error) {
	seen := make(map[uint]struct{})
	var ids []uint
	for _, execution := range f.executions {
		if execution.TriggerKind != kind || execution.Status != models.ExecutionStatusSuccess {
			continue
		}
		if _, ok := seen[execution.SubscriberID]; ok {
			continue
		}
		seen[execution.SubscriberID] = struct{}{}
		ids = append(ids, execution.SubscriberID)
	}
	return ids, nil
}

func (f *fakeAutomationRepo) CreateExecution(ctx context.Context, execution *models.AutomationExecutionEntity, opts ...utils.DBOption) error {
	f.executions = append(f.executions, *execution)
	return nil
}

type fakeExpiringRepo struct {
	subscribers []models.SubscriberEntity
}

func (f *fakeExpiringRepo) ListAll(ctx context.Context, opts ...utils.DBOption) ([]models.SubscriberEntity, error) {
	return f.subscribers, nil
}

func (f *fakeExpiringRepo) ListExpiring(ctx context.Context, before time.Time, limit int, opts ...utils.DBOption) ([]models.SubscriberEntity, error) {
	var matched []models.SubscriberEntity
	for _, subscriber := range f.subscribers {
		if subscriber.ExpiresAt.Valid && !subscriber.ExpiresAt.Time.After(before) {
			matched = append(matched, subscriber)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ExpiresAt.Time.Before(matched[j].ExpiresAt.Time)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

type fakeSink struct {
	failIDs map[uint]bool
	events  []models.AutomationEvent
}

func (f *fakeSink) Submit(ctx context.Context, workspaceID uint, event models.AutomationEvent) error {
	if f.failIDs[event.SubscriberID] {
		return fmt.Errorf("sink rejected subscriber %d", event.SubscriberID)
	}
	f.events = append(f.events, event)
	return nil
}

type detectorStoreProvider struct {
	stores *repository.Stores
}

func (p *detectorStoreProvider) For(ctx context.Context, workspaceID uint) (*repository.Stores, error) {
	return p.stores, nil
}

func expiredSubscriber(id uint, ref string, expiredAgo time.Duration) models.SubscriberEntity {
	return models.SubscriberEntity{
		ID:          id,
		ExternalRef: ref,
		Name:        "Subscriber " + ref,
		Status:      "active",
		ExpiresAt:   sql.NullTime{Time: time.Now().Add(-expiredAgo), Valid: true},
	}
}

func newDetectorFixture(cfg *config.AutomationConfig, rules *fakeAutomationRepo, subscribers []models.SubscriberEntity, sink *fakeSink) DetectorService {
	stores := &repository.Stores{
		Automation:  rules,
		Subscribers: &fakeExpiringRepo{subscribers: subscribers},
	}
	return NewDetectorService(cfg, logrus.New(), &detectorStoreProvider{stores: stores}, sink)
}

func TestDetectEmitsOncePerSubscriber(t *testing.T) {
	rules := &fakeAutomationRepo{enabledKinds: map[models.TriggerKind]bool{models.TriggerSubscriberExpired: true}}
	sink := &fakeSink{}
	detector := newDetectorFixture(&config.AutomationConfig{BatchSize: 100}, rules, []models.SubscriberEntity{
		expiredSubscriber(1, "sub-1", time.Hour),
		expiredSubscriber(2, "sub-2", 2*time.Hour),
	}, sink)

	emitted, err := detector.Detect(context.Background(), models.TriggerSubscriberExpired, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if emitted != 2 {
		t.Fatalf("emitted = %d, want 2", emitted)
	}

	// A second pass over the unchanged state emits nothing: the success
	// rows in the ledger mark both pairs as fired.
	emitted, err = detector.Detect(context.Background(), models.TriggerSubscriberExpired, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if emitted != 0 {
		t.Errorf("second pass emitted = %d, want 0", emitted)
	}
	if len(sink.events) != 2 {
		t.Errorf("sink received %d events, want 2", len(sink.events))
	}
}

func TestDetectSkipsWhenNoRuleListens(t *testing.T) {
	rules := &fakeAutomationRepo{enabledKinds: map[models.TriggerKind]bool{}}
	sink := &fakeSink{}
	detector := newDetectorFixture(&config.AutomationConfig{BatchSize: 100}, rules, []models.SubscriberEntity{
		expiredSubscriber(1, "sub-1", time.Hour),
	}, sink)

	emitted, err := detector.Detect(context.Background(), models.TriggerSubscriberExpired, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if emitted != 0 || len(sink.events) != 0 {
		t.Errorf("emitted = %d, events = %d; want no work without a listening rule", emitted, len(sink.events))
	}
}

func TestDetectBatchCapOldestFirst(t *testing.T) {
	rules := &fakeAutomationRepo{enabledKinds: map[models.TriggerKind]bool{models.TriggerSubscriberExpired: true}}
	sink := &fakeSink{}
	detector := newDetectorFixture(&config.AutomationConfig{BatchSize: 2}, rules, []models.SubscriberEntity{
		expiredSubscriber(1, "newest", time.Hour),
		expiredSubscriber(2, "oldest", 3*time.Hour),
		expiredSubscriber(3, "middle", 2*time.Hour),
	}, sink)

	emitted, err := detector.Detect(context.Background(), models.TriggerSubscriberExpired, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if emitted != 2 {
		t.Fatalf("emitted = %d, want the batch cap of 2", emitted)
	}
	if sink.events[0].ExternalRef != "oldest" || sink.events[1].ExternalRef != "middle" {
		t.Errorf("emission order = %s, %s; want oldest first", sink.events[0].ExternalRef, sink.events[1].ExternalRef)
	}

	// The next pass picks up the remainder.
	emitted, err = detector.Detect(context.Background(), models.TriggerSubscriberExpired, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if emitted != 1 {
		t.Errorf("second pass emitted = %d, want the remaining 1", emitted)
	}
}

func TestDetectSinkFailureSkipsSubscriber(t *testing.T) {
	rules := &fakeAutomationRepo{enabledKinds: map[models.TriggerKind]bool{models.TriggerSubscriberExpired: true}}
	sink := &fakeSink{failIDs: map[uint]bool{1: true}}
	detector := newDetectorFixture(&config.AutomationConfig{BatchSize: 100}, rules, []models.SubscriberEntity{
		expiredSubscriber(1, "sub-1", 2*time.Hour),
		expiredSubscriber(2, "sub-2", time.Hour),
	}, sink)

	emitted, err := detector.Detect(context.Background(), models.TriggerSubscriberExpired, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d, want 1 despite the sink failure", emitted)
	}

	var failures int
	for _, execution := range rules.executions {
		if execution.Status == models.ExecutionStatusFailed {
			failures++
			if execution.SubscriberID != 1 {
				t.Errorf("failed execution for subscriber %d, want 1", execution.SubscriberID)
			}
		}
	}
	if failures != 1 {
		t.Errorf("failed executions = %d, want 1", failures)
	}
}

func TestDetectChurnedUsesThreshold(t *testing.T) {
	rules := &fakeAutomationRepo{enabledKinds: map[models.TriggerKind]bool{models.TriggerSubscriberChurned: true}}
	sink := &fakeSink{}
	detector := newDetectorFixture(&config.AutomationConfig{BatchSize: 100, ChurnThresholdDays: 30}, rules, []models.SubscriberEntity{
		expiredSubscriber(1, "long-gone", 40*24*time.Hour),
		expiredSubscriber(2, "recent", 24*time.Hour),
	}, sink)

	emitted, err := detector.Detect(context.Background(), models.TriggerSubscriberChurned, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d, want only the 40-day-old expiry", emitted)
	}
	if sink.events[0].ExternalRef != "long-gone" {
		t.Errorf("emitted %s, want long-gone", sink.events[0].ExternalRef)
	}
}

func TestDetectRejectsUnknownKind(t *testing.T) {
	rules := &fakeAutomationRepo{enabledKinds: map[models.TriggerKind]bool{"mystery": true}}
	detector := newDetectorFixture(&config.AutomationConfig{BatchSize: 100}, rules, nil, &fakeSink{})

	if _, err := detector.Detect(context.Background(), "mystery", 5); err == nil {
		t.Error("Detect() accepted an unknown trigger kind")
	}
}
