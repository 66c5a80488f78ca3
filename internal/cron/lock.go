package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLockKey is shared by every cron-worker replica.
const DefaultLockKey = "flightnotify:cron:maintenance"

// A cycle that outlives the lease may overlap with the next holder, so the
// default is generous compared to any realistic purge.
const defaultLockTTL = 25 * time.Hour

// Lock serializes maintenance cycles.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEqual(ctx context.Context, key, value string) (bool, error)
}

// RedisLock is a lease held under a random token. Only the holder of the
// token can release it, and an abandoned lease lapses after ttl.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("cron lock needs a redis client")
	}
	l := &RedisLock{store: store, key: key, ttl: ttl}
	if l.key == "" {
		l.key = DefaultLockKey
	}
	if l.ttl <= 0 {
		l.ttl = defaultLockTTL
	}
	return l, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if won {
		l.token = token
	}
	return won, nil
}

// Release drops the lease when this instance still holds it. A key that
// lapsed and was taken over by another replica is left untouched.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	if _, err := l.store.DeleteIfEqual(ctx, l.key, token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// LocalLock serializes cycles inside one process. It stands in for RedisLock
// when no Redis endpoint is configured, which is only safe with one replica.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}
