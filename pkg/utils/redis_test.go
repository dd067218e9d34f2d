package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCallCapLimitsConcurrency(t *testing.T) {
	rdb := testRedis(t)
	cap := NewCallCap(rdb, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := cap.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("acquire %d rejected below limit", i)
		}
	}

	ok, err := cap.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire over limit: %v", err)
	}
	if ok {
		t.Fatalf("expected rejection at limit")
	}

	if err := cap.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = cap.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v; want slot", ok, err)
	}
}

func TestReleaseDeletesEmptyCounter(t *testing.T) {
	rdb := testRedis(t)
	cap := NewCallCap(rdb, 1)
	ctx := context.Background()

	if ok, err := cap.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire = %v, %v", ok, err)
	}
	if err := cap.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	n, err := rdb.Exists(ctx, callCapKey).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if n != 0 {
		t.Fatalf("counter key still present after final release")
	}
}

func TestAcquireValidatesArguments(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, rdb, "", 1, callCapTTL); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 0, callCapTTL); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 1, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}
