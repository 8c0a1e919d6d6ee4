package alerting

import (
	"context"
	"sync"
	"time"
)

// Throttle suppresses re-alerting for an alert identity inside a cooldown
// window. Implementations must treat time as monotonic: recording an alert
// older than the last recorded one is ignored.
type Throttle interface {
	// IsThrottled reports whether alerting for key is currently suppressed.
	IsThrottled(ctx context.Context, key string, now time.Time) bool

	// RecordAlert marks an alert as sent at now. A record landing while key
	// is still inside the cooldown does not extend the suppression window.
	RecordAlert(ctx context.Context, key string, now time.Time)
}

// MemoryThrottle is the in-process throttle used when alert identity state
// does not need to be shared across replicas.
type MemoryThrottle struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
}

// NewMemoryThrottle creates an in-memory throttle with the given cooldown.
func NewMemoryThrottle(cooldown time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

func (t *MemoryThrottle) IsThrottled(_ context.Context, key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[key]
	if !ok {
		return false
	}
	return now.Sub(last) < t.cooldown
}

func (t *MemoryThrottle) RecordAlert(_ context.Context, key string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[key]
	if ok && now.Sub(last) < t.cooldown {
		// Still suppressed, or the clock regressed: keep the earlier mark.
		return
	}
	t.last[key] = now
}
