package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"PersonaPipeline/internal/ports"
)

func exerciseGuard(t *testing.T, guard ports.RunGuard) {
	t.Helper()
	ctx := context.Background()

	release, err := guard.Acquire(ctx, 7)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := guard.Acquire(ctx, 7); !errors.Is(err, ports.ErrTokenHeld) {
		t.Fatalf("second acquire: expected ErrTokenHeld, got %v", err)
	}

	other, err := guard.Acquire(ctx, 8)
	if err != nil {
		t.Fatalf("other persona should not be blocked: %v", err)
	}
	other()

	release()
	release()

	again, err := guard.Acquire(ctx, 7)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestMemoryGuard(t *testing.T) {
	exerciseGuard(t, NewMemoryGuard())
}

func TestFileGuard(t *testing.T) {
	guard, err := NewFileGuard(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file guard: %v", err)
	}
	exerciseGuard(t, guard)
}

func TestRedisGuard(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	guard, err := NewRedisGuard(context.Background(), RedisConfig{Addr: addr, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	guard.prefix = fmt.Sprintf("persona-pipeline-test:%d:", time.Now().UnixNano())
	t.Cleanup(func() { _ = guard.Close() })
	exerciseGuard(t, guard)
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	guard, err := NewRedisGuard(context.Background(), RedisConfig{Addr: addr, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	guard.prefix = fmt.Sprintf("persona-pipeline-test:%d:", time.Now().UnixNano())
	t.Cleanup(func() { _ = guard.Close() })

	ctx := context.Background()
	release, err := guard.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	key := guard.prefix + "1"
	// Simulate the TTL expiring and another host taking the token.
	if err := guard.client.Set(ctx, key, "someone-else", time.Minute).Err(); err != nil {
		t.Fatal(err)
	}
	release()

	value, err := guard.client.Get(ctx, key).Result()
	if err != nil || value != "someone-else" {
		t.Fatalf("foreign token removed: %q %v", value, err)
	}
	_ = guard.client.Del(ctx, key).Err()
}
