package alerting

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisThrottlePrefix = "pulsewatch:throttle:"

// RedisClient is the slice of the go-redis API the throttle needs. Satisfied
// by *redis.Client, *redis.ClusterClient and redis.UniversalClient.
type RedisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisThrottle shares alert cooldown state across replicas through a redis
// key with a TTL equal to the cooldown. When redis is unreachable the
// throttle fails open: detection proceeds rather than going silent.
type RedisThrottle struct {
	client   RedisClient
	cooldown time.Duration
	logger   *logrus.Logger
}

// NewRedisThrottle creates a redis-backed throttle.
func NewRedisThrottle(client RedisClient, cooldown time.Duration, logger *logrus.Logger) *RedisThrottle {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisThrottle{
		client:   client,
		cooldown: cooldown,
		logger:   logger,
	}
}

func (t *RedisThrottle) IsThrottled(ctx context.Context, key string, _ time.Time) bool {
	n, err := t.client.Exists(ctx, redisThrottlePrefix+key).Result()
	if err != nil {
		t.logger.WithError(err).WithField("key", key).Warn("throttle lookup failed, failing open")
		return false
	}
	return n > 0
}

func (t *RedisThrottle) RecordAlert(ctx context.Context, key string, now time.Time) {
	// NX keeps an existing cooldown mark in place, matching the in-memory
	// throttle's behavior of not extending an active suppression window.
	err := t.client.SetNX(ctx, redisThrottlePrefix+key, now.UnixNano(), t.cooldown).Err()
	if err != nil {
		t.logger.WithError(err).WithField("key", key).Warn("failed to record alert in throttle")
	}
}
