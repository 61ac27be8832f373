package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type integrationLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// BillingRateLimiter throttles outbound calls to remote billing providers:
// one global limiter across the process plus one limiter per integration,
// so a single chatty integration cannot starve the rest.
type BillingRateLimiter struct {
	log                 *logrus.Logger
	globalLimiter       *rate.Limiter
	integrationLimiters map[uint]*integrationLimiterEntry
	perIntegrationRPS   int
	mu                  sync.Mutex
	stopCleanup         chan struct{}
	wg                  sync.WaitGroup
}

func NewBillingRateLimiter(globalRPS, perIntegrationRPS int, log *logrus.Logger) *BillingRateLimiter {
	if globalRPS <= 0 {
		globalRPS = 50
	}
	if perIntegrationRPS <= 0 {
		perIntegrationRPS = 10
	}
	return &BillingRateLimiter{
		log:                 log,
		globalLimiter:       rate.NewLimiter(rate.Limit(globalRPS), globalRPS),
		integrationLimiters: make(map[uint]*integrationLimiterEntry),
		perIntegrationRPS:   perIntegrationRPS,
		stopCleanup:         make(chan struct{}),
	}
}

// Wait blocks until both the global and the integration limiter admit one
// call, or the context is done.
func (b *BillingRateLimiter) Wait(ctx context.Context, integrationID uint) error {
	if err := b.globalLimiter.Wait(ctx); err != nil {
		return err
	}
	return b.limiterFor(integrationID).Wait(ctx)
}

func (b *BillingRateLimiter) limiterFor(integrationID uint) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.integrationLimiters[integrationID]
	if !ok {
		entry = &integrationLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(b.perIntegrationRPS), b.perIntegrationRPS),
		}
		b.integrationLimiters[integrationID] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

// StartCleanupExpired drops limiters idle for over an hour.
func (b *BillingRateLimiter) StartCleanupExpired(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCleanup:
				return
			case <-ticker.C:
				b.evictIdle(time.Hour)
			}
		}
	}()
}

func (b *BillingRateLimiter) evictIdle(maxIdle time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := 0
	for id, entry := range b.integrationLimiters {
		if time.Since(entry.lastAccess) > maxIdle {
			delete(b.integrationLimiters, id)
			evicted++
		}
	}
	if evicted > 0 {
		b.log.WithField("evicted", evicted).Debug("dropped idle integration rate limiters")
	}
	return evicted
}

func (b *BillingRateLimiter) StopCleanupExpired() {
	close(b.stopCleanup)
	b.wg.Wait()
}
