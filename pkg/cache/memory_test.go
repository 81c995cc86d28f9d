package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type leverage struct {
	Symbol string `json:"symbol"`
	Max    int    `json:"max"`
}

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "lev:BTCUSDT", leverage{Symbol: "BTCUSDT", Max: 125}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetTyped[leverage](ctx, mc, "lev:BTCUSDT")
	if err != nil || got.Max != 125 {
		t.Fatalf("get = %+v, %v", got, err)
	}

	now = now.Add(time.Hour + time.Second)
	if _, err := GetTyped[leverage](ctx, mc, "lev:BTCUSDT"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
	if mc.Len() != 0 {
		t.Fatalf("expired entry should be evicted on read")
	}
}

func TestMemoryCacheGetDoesNotAlias(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	keys := []string{"BTCUSDT", "ETHUSDT"}
	_ = mc.Set(ctx, "k", keys, time.Minute)
	keys[0] = "MUTATED"

	var out []string
	if err := mc.Get(ctx, "k", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out[0] != "BTCUSDT" {
		t.Fatalf("stored value aliased caller slice: %v", out)
	}
}

func TestMemoryCacheLockAndEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "reset:2025-01-01", time.Minute)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := mc.TryLock(ctx, "reset:2025-01-01", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	_ = mc.Unlock(ctx, "reset:2025-01-01")
	if ok, _ := mc.TryLock(ctx, "reset:2025-01-01", time.Minute); !ok {
		t.Fatalf("lock after unlock should succeed")
	}

	_ = mc.Set(ctx, "a", "1", time.Minute)
	_ = mc.Set(ctx, "b", "2", time.Minute)
	if mc.Len() != 2 {
		t.Fatalf("len = %d, want 2", mc.Len())
	}
	var s string
	if err := mc.Get(ctx, "b", &s); err != nil || s != "2" {
		t.Fatalf("get b = %q, %v", s, err)
	}
}

func TestMemoryCacheStats(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, GenerateKey("daily", "2025-01-01"), []string{"BTCUSDT:LONG"}, time.Hour)
	var out []string
	_ = mc.Get(ctx, GenerateKey("daily", "2025-01-01"), &out)
	_ = mc.Get(ctx, GenerateKey("daily", "2025-01-02"), &out)

	var r StatsReporter = mc
	s := r.Stats()
	if s.L1Hits != 1 || s.Misses != 1 || s.L2Hits != 0 || s.Entries != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestGenerateKeys(t *testing.T) {
	if got := GenerateKey("daily", "2025-01-01"); got != "daily:2025-01-01" {
		t.Fatalf("GenerateKey = %q", got)
	}
	if got := GenerateKeyWithParams("scheduler", "reset", "2025-01-01"); got != "scheduler:reset:2025-01-01" {
		t.Fatalf("GenerateKeyWithParams = %q", got)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", time.Minute)
	_ = mc.Set(ctx, "b", "2", time.Minute)
	var s string
	_ = mc.Get(ctx, "a", &s)
	_ = mc.Set(ctx, "c", "3", time.Minute)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok || mc.Len() != 2 {
		t.Fatalf("a and c should remain, len=%d", mc.Len())
	}
}
