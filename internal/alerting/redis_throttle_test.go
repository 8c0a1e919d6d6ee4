package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// fakeRedis implements RedisClient over an in-memory key set with a manual
// clock, so TTL expiry can be driven without a server.
type fakeRedis struct {
	now       time.Time
	expiries  map[string]time.Time
	existsErr error
	setErr    error
	setCalls  int
}

func newFakeRedis(now time.Time) *fakeRedis {
	return &fakeRedis{now: now, expiries: make(map[string]time.Time)}
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if f.existsErr != nil {
		return redis.NewIntResult(0, f.existsErr)
	}
	var n int64
	for _, k := range keys {
		if exp, ok := f.expiries[k]; ok && exp.After(f.now) {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, expiration time.Duration) *redis.BoolCmd {
	f.setCalls++
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if exp, ok := f.expiries[key]; ok && exp.After(f.now) {
		return redis.NewBoolResult(false, nil)
	}
	f.expiries[key] = f.now.Add(expiration)
	return redis.NewBoolResult(true, nil)
}

func TestRedisThrottleCooldownLifecycle(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1000, 0)
	fake := newFakeRedis(t0)
	th := NewRedisThrottle(fake, 60*time.Second, logrus.New())

	assert.False(t, th.IsThrottled(ctx, "slow-queries", t0))

	th.RecordAlert(ctx, "slow-queries", t0)
	assert.True(t, th.IsThrottled(ctx, "slow-queries", t0))

	// The key TTL, not the caller's clock, ends suppression.
	fake.now = t0.Add(59 * time.Second)
	assert.True(t, th.IsThrottled(ctx, "slow-queries", fake.now))
	fake.now = t0.Add(60 * time.Second)
	assert.False(t, th.IsThrottled(ctx, "slow-queries", fake.now))
}

func TestRedisThrottleDoesNotExtendActiveCooldown(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1000, 0)
	fake := newFakeRedis(t0)
	th := NewRedisThrottle(fake, 60*time.Second, logrus.New())

	th.RecordAlert(ctx, "slow-queries", t0)

	// A record inside the cooldown is a SetNX no-op: the earlier mark and
	// its expiry stand.
	fake.now = t0.Add(59 * time.Second)
	th.RecordAlert(ctx, "slow-queries", fake.now)
	assert.Equal(t, 2, fake.setCalls)
	assert.Equal(t, t0.Add(60*time.Second), fake.expiries[redisThrottlePrefix+"slow-queries"])

	fake.now = t0.Add(60 * time.Second)
	assert.False(t, th.IsThrottled(ctx, "slow-queries", fake.now))
}

func TestRedisThrottleFailsOpenOnLookupError(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1000, 0)
	fake := newFakeRedis(t0)
	th := NewRedisThrottle(fake, 60*time.Second, logrus.New())

	th.RecordAlert(ctx, "slow-queries", t0)
	fake.existsErr = errors.New("connection refused")

	assert.False(t, th.IsThrottled(ctx, "slow-queries", t0),
		"an unreachable backend must not silence detection")
}

func TestRedisThrottleRecordErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1000, 0)
	fake := newFakeRedis(t0)
	fake.setErr = errors.New("connection refused")
	th := NewRedisThrottle(fake, 60*time.Second, logrus.New())

	th.RecordAlert(ctx, "slow-queries", t0)
	assert.False(t, th.IsThrottled(ctx, "slow-queries", t0))
}

func TestRedisThrottleKeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1000, 0)
	fake := newFakeRedis(t0)
	th := NewRedisThrottle(fake, 60*time.Second, logrus.New())

	th.RecordAlert(ctx, "slow-queries", t0)
	_, ok := fake.expiries[redisThrottlePrefix+"slow-queries"]
	assert.True(t, ok)
}
