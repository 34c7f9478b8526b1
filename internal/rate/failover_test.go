package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFailoverSwitchesToFallback(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fo := NewFailover(NewRedisStore(client), NewMemoryStore(), 30*time.Second, nil)
	ctx := context.Background()

	if _, err := fo.Incr(ctx, "k", time.Minute); err != nil {
		t.Fatalf("incr via primary: %v", err)
	}
	if fo.Degraded() {
		t.Fatal("should not be degraded while primary is healthy")
	}

	mr.Close()

	// Primary errors, fallback absorbs the call.
	count, err := fo.Incr(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("incr via fallback: %v", err)
	}
	if count != 1 {
		t.Fatalf("fallback starts fresh, expected 1, got %d", count)
	}
	if !fo.Degraded() {
		t.Fatal("expected degraded state after primary failure")
	}

	// While degraded the primary is skipped entirely.
	count, err = fo.Incr(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("incr while degraded: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 from fallback, got %d", count)
	}
}

func TestLimiterKeepsEnforcingOnFallback(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fo := NewFailover(NewRedisStore(client), NewMemoryStore(), 30*time.Second, nil)
	l := New(fo, testConfig(), nil, nil)
	ctx := context.Background()

	mr.Close()

	for i := 0; i < 5; i++ {
		if err := l.RecordFailure(ctx, "user@example.com", "198.51.100.1", ""); err != nil {
			t.Fatalf("record failure on fallback: %v", err)
		}
	}

	err = l.Allow(ctx, "user@example.com", "198.51.100.1", "")
	var le *LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected limit enforced on fallback store, got %v", err)
	}
}

func TestMemoryStoreWindowExpiry(t *testing.T) {
	ms := NewMemoryStore()
	now := time.Now()
	ms.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ms.Incr(ctx, "k", time.Minute); err != nil {
			t.Fatalf("incr: %v", err)
		}
	}
	count, err := ms.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}

	now = now.Add(2 * time.Minute)
	count, err = ms.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 after window expiry, got %d", count)
	}
}
