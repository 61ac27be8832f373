package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLimiterForReusesEntry(t *testing.T) {
	limiter := NewBillingRateLimiter(50, 10, logrus.New())

	first := limiter.limiterFor(7)
	second := limiter.limiterFor(7)
	if first != second {
		t.Error("same integration got two distinct limiters")
	}
	if other := limiter.limiterFor(8); other == first {
		t.Error("distinct integrations share a limiter")
	}
}

func TestEvictIdleDropsStaleLimiters(t *testing.T) {
	limiter := NewBillingRateLimiter(50, 10, logrus.New())

	if err := limiter.Wait(context.Background(), 7); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := limiter.Wait(context.Background(), 8); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	limiter.mu.Lock()
	limiter.integrationLimiters[7].lastAccess = time.Now().Add(-2 * time.Hour)
	limiter.mu.Unlock()

	if evicted := limiter.evictIdle(time.Hour); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.integrationLimiters[7]; ok {
		t.Error("idle limiter survived eviction")
	}
	if _, ok := limiter.integrationLimiters[8]; !ok {
		t.Error("active limiter was evicted")
	}
}
