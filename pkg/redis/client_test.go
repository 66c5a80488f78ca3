package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/flightnotify/pkg/config"
)

func TestFixedWindowAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i, wantAllowed := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "submit:ip:10.0.0.1", 2, time.Minute)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if allowed != wantAllowed || count != int64(i+1) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
	}
	if got := mock.ttl["fn:rate_limit:submit:ip:10.0.0.1"]; got != time.Minute {
		t.Fatalf("expected window set once to 1m, got %v", got)
	}
	if mock.windowSets != 1 {
		t.Fatalf("expected one window set, got %d", mock.windowSets)
	}
}

func TestIncrWithTTLRejectsMissingWindow(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, err := client.IncrWithTTL(context.Background(), "k", 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	key := client.IdempotencyKey("dispatch:email", "n-1")
	if set, err := client.SetNX(ctx, key, "1", time.Hour); err != nil || !set {
		t.Fatalf("expected first SetNX to win, set=%v err=%v", set, err)
	}
	if set, err := client.SetNX(ctx, key, "1", time.Hour); err != nil || set {
		t.Fatalf("expected second SetNX to lose, set=%v err=%v", set, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
	if err := client.Del(ctx); err != nil {
		t.Fatalf("empty del should be a no-op, got %v", err)
	}
}

func TestDeleteIfEqualOnlyRemovesOwnedValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.LockKey("cron-worker")
	if err := client.Set(ctx, key, "owner-a", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	deleted, err := client.DeleteIfEqual(ctx, key, "owner-b")
	if err != nil || deleted {
		t.Fatalf("expected foreign owner to be refused, deleted=%v err=%v", deleted, err)
	}
	deleted, err = client.DeleteIfEqual(ctx, key, "owner-a")
	if err != nil || !deleted {
		t.Fatalf("expected owner delete, deleted=%v err=%v", deleted, err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := client.DeleteIfEqual(context.Background(), "k", "v"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"):   "fn:idempotency:scope:id",
		client.RateLimitKey("scope"):           "fn:rate_limit:scope",
		client.LockKey("cron"):                 "fn:lock:cron",
		client.IdempotencyKey(" scope ", ""):   "fn:idempotency:scope",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:          "redis://:pw@cache.internal:6380/3",
		PoolSize:     20,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 3 || opts.Password != "pw" {
		t.Fatalf("unexpected parsed options %+v", opts)
	}
	if opts.PoolSize != 20 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("expected config pool settings, got pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 2 {
		t.Fatalf("unexpected address options %+v (%v)", opts, err)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

type mockCmdable struct {
	data       map[string]string
	ttl        map[string]time.Duration
	windowSets int
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			n++
		}
		delete(m.data, key)
		delete(m.ttl, key)
	}
	return redis.NewIntResult(n, nil)
}

// Eval emulates the two scripts the client runs.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case incrWindowScript:
		var n int64
		fmt.Sscan(m.data[key], &n)
		n++
		m.data[key] = fmt.Sprint(n)
		if n == 1 {
			m.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond
			m.windowSets++
		}
		return redis.NewCmdResult(n, nil)
	case deleteIfEqualScript:
		if v, ok := m.data[key]; ok && v == args[0] {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
