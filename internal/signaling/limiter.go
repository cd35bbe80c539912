package signaling

import (
	"context"
	"sync"
	"time"

	"telecom-calls/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// ConnLimiter caps concurrent websocket connections per user.
type ConnLimiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// RedisConnLimiter counts connections across every node sharing the redis instance.
type RedisConnLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisConnLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisConnLimiter {
	return &RedisConnLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func connSlotKey(userID string) string { return "calls:ws:conns:" + userID }

func (l *RedisConnLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireSlot(ctx, l.rdb, connSlotKey(userID), l.limit, l.ttl)
}

func (l *RedisConnLimiter) Release(ctx context.Context, userID string) error {
	return utils.ReleaseSlot(ctx, l.rdb, connSlotKey(userID))
}

// LocalConnLimiter counts connections on this node only.
type LocalConnLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

func NewLocalConnLimiter(limit int) *LocalConnLimiter {
	return &LocalConnLimiter{limit: limit, counts: map[string]int{}}
}

func (l *LocalConnLimiter) Acquire(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && l.counts[userID] >= l.limit {
		return false, nil
	}
	l.counts[userID]++
	return true, nil
}

func (l *LocalConnLimiter) Release(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[userID] <= 1 {
		delete(l.counts, userID)
		return nil
	}
	l.counts[userID]--
	return nil
}
