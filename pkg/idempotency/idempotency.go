package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/flightnotify/pkg/redis"
)

// Manager tracks processed ids per consumer as Redis keys with a TTL.
// Keys follow the `fn:idempotency:processed:<consumer>:<id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks ids as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// IsProcessed reports whether id carries a processed mark for consumer.
func (m *Manager) IsProcessed(ctx context.Context, consumer string, id string) (bool, error) {
	key, err := m.processedKey(consumer, id)
	if err != nil {
		return false, err
	}
	if _, err := m.store.Get(ctx, key); err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkProcessed records id as processed for the configured TTL. Callers mark
// only after the guarded side effect committed: a mark left by a process that
// died mid-way would otherwise suppress the redelivery that recovers it.
func (m *Manager) MarkProcessed(ctx context.Context, consumer string, id string) error {
	key, err := m.processedKey(consumer, id)
	if err != nil {
		return err
	}
	_, err = m.store.SetNX(ctx, key, "1", m.ttl)
	return err
}

func (m *Manager) processedKey(consumer string, id string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(id) == "" {
		return "", errors.New("id is required")
	}
	scope := fmt.Sprintf("processed:%s", consumer)
	return m.store.IdempotencyKey(scope, id), nil
}
