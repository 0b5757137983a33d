package lock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease is the single-flight guard for periodic invocations. Acquire returns
// false when another holder owns the name; callers skip the invocation
// rather than queueing behind it.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// RedisLease implements Lease with SET NX PX, so the lease survives across
// processes and expires on crash.
type RedisLease struct {
	Client *redis.Client
	Prefix string
}

func (l *RedisLease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if l == nil || l.Client == nil {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return l.Client.SetNX(ctx, l.key(name), "1", ttl).Result()
}

func (l *RedisLease) Release(ctx context.Context, name string) error {
	if l == nil || l.Client == nil {
		return nil
	}
	return l.Client.Del(ctx, l.key(name)).Err()
}

func (l *RedisLease) key(name string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "civicsource:lease:"
	}
	return prefix + name
}

// LocalLease guards a single process when redis is not configured. Expiry
// mirrors the redis TTL so a panicked holder does not wedge the name forever.
type LocalLease struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLease() *LocalLease {
	return &LocalLease{held: map[string]time.Time{}}
}

func (l *LocalLease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

func (l *LocalLease) Release(ctx context.Context, name string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}
