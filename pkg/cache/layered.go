package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// LayeredCache keeps a short-lived process copy (L1) in front of Redis (L2).
// Redis stays the source of truth: writes go there first and L1 never outlives the Redis TTL.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := defaultLayeredConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:    redisCache,
		l1TTL: cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.l1.Set(ctx, key, value, lc.capTTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.l1.Get(ctx, key, dest); err == nil {
		lc.l1Hits.Add(1)
		return nil
	}

	data, ttl, err := lc.l2.GetRaw(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			lc.misses.Add(1)
		}
		return err
	}
	lc.l2Hits.Add(1)
	_ = lc.l1.Set(ctx, key, data, lc.capTTL(ttl))
	return decode(data, dest)
}

func (lc *LayeredCache) capTTL(remote time.Duration) time.Duration {
	if remote > 0 && remote < lc.l1TTL {
		return remote
	}
	return lc.l1TTL
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.l2.Exists(ctx, keys...)
}

// TryLock and Unlock bypass L1; a lock only means something when every replica sees it.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

func (lc *LayeredCache) Health(ctx context.Context) error { return lc.l2.Health(ctx) }

func (lc *LayeredCache) Stats() Stats {
	return Stats{
		L1Hits:  lc.l1Hits.Load(),
		L2Hits:  lc.l2Hits.Load(),
		Misses:  lc.misses.Load(),
		Entries: lc.l1.Len(),
	}
}

func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	return lc.l2.Close()
}
