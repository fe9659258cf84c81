// Package lock provides a Redis-backed distributed lock used to serialize
// background sweeps (stale nodes, message purge, task timeouts) across broker
// replicas.
package lock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"meshtrack/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	lockTTL            = 30 * time.Second // Prevents deadlock when a holder dies
	lockAcquireTimeout = 5 * time.Second
	lockRenewInterval  = 10 * time.Second
)

// DistributedLock coordinates exclusive execution across instances.
type DistributedLock interface {
	// TryLock attempts to acquire the lock without blocking on contention.
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock.
	Unlock(ctx context.Context) error

	// IsHeld reports whether this instance holds the lock.
	IsHeld() bool
}

// RedisLock is the Redis SET NX implementation. A nil client degrades to
// single-instance mode where every TryLock succeeds.
type RedisLock struct {
	client    *redis.Client
	lockKey   string
	lockValue string // Unique per instance so Unlock cannot release a peer's lock
	ttl       time.Duration

	mu           sync.Mutex
	isHeld       bool
	stopRenew    chan struct{}
	renewStopped bool
}

// NewRedisLock creates a lock on the given key.
func NewRedisLock(client *redis.Client, lockKey string) *RedisLock {
	return &RedisLock{
		client:    client,
		lockKey:   lockKey,
		lockValue: fmt.Sprintf("%s-%d-%d", lockKey, time.Now().UnixNano(), rand.Int63()),
		ttl:       lockTTL,
		stopRenew: make(chan struct{}),
	}
}

// TryLock attempts to acquire the lock with SET NX and a TTL.
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		logger.Warnf("redis client is nil, skipping distributed lock (single-instance mode)")
		l.mu.Lock()
		l.isHeld = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.lockKey, l.lockValue, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.lockKey, err)
	}
	if !acquired {
		logger.DebugCtx(ctx, "lock %s already held by another instance", l.lockKey)
		return false, nil
	}

	l.mu.Lock()
	l.isHeld = true
	// Fresh channel per acquisition so TryLock/Unlock cycles work.
	l.stopRenew = make(chan struct{})
	l.renewStopped = false
	l.mu.Unlock()

	go l.renew(ctx)

	logger.DebugCtx(ctx, "lock %s acquired", l.lockKey)
	return true, nil
}

// Unlock releases the lock if this instance holds it.
func (l *RedisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.isHeld {
		l.mu.Unlock()
		return nil
	}
	l.isHeld = false

	if l.client == nil {
		l.mu.Unlock()
		return nil
	}

	if !l.renewStopped {
		l.renewStopped = true
		close(l.stopRenew)
	}
	l.mu.Unlock()

	// Delete only when the value still matches this instance.
	luaScript := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	if err := l.client.Eval(ctx, luaScript, []string{l.lockKey}, l.lockValue).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", l.lockKey, err)
	}
	return nil
}

// IsHeld reports whether this instance holds the lock.
func (l *RedisLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isHeld
}

// renew extends the TTL while the lock is held.
func (l *RedisLock) renew(ctx context.Context) {
	ticker := time.NewTicker(lockRenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			luaScript := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("pexpire", KEYS[1], ARGV[2])
				else
					return 0
				end
			`
			err := l.client.Eval(ctx, luaScript, []string{l.lockKey}, l.lockValue, l.ttl.Milliseconds()).Err()
			if err != nil && err != redis.Nil {
				logger.WarnCtx(ctx, "failed to renew lock %s: %v", l.lockKey, err)
			}
		}
	}
}
