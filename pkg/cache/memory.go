package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// defaultMemoryTTL applies when Set is called without an expiration.
const defaultMemoryTTL = 7 * 24 * time.Hour

type memoryEntry struct {
	key      string
	data     []byte
	expireAt time.Time
}

// MemoryCache is an in-process Service with least-recently-used eviction.
// Values are held JSON-encoded, so readers never share memory with writers.
type MemoryCache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front is most recently used
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := defaultMemoryConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		now:     cfg.Clock,
		stop:    make(chan struct{}),
	}
	go mc.janitor(cfg.CleanupInterval)
	return mc
}

// lookupLocked returns the live entry for key, dropping it if expired.
func (mc *MemoryCache) lookupLocked(key string, now time.Time) *list.Element {
	el, ok := mc.index[key]
	if !ok {
		return nil
	}
	if now.After(el.Value.(*memoryEntry).expireAt) {
		mc.removeLocked(el)
		return nil
	}
	return el
}

func (mc *MemoryCache) removeLocked(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.index, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) putLocked(key string, data []byte, expireAt time.Time) {
	if el, ok := mc.index[key]; ok {
		e := el.Value.(*memoryEntry)
		e.data, e.expireAt = data, expireAt
		mc.order.MoveToFront(el)
		return
	}
	for mc.maxSize > 0 && mc.order.Len() >= mc.maxSize {
		mc.removeLocked(mc.order.Back())
	}
	mc.index[key] = mc.order.PushFront(&memoryEntry{key: key, data: data, expireAt: expireAt})
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	encoded, err := encode(value)
	if err != nil {
		return err
	}
	data := make([]byte, len(encoded))
	copy(data, encoded)

	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}

	mc.mu.Lock()
	mc.putLocked(key, data, mc.now().Add(expiration))
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el := mc.lookupLocked(key, mc.now())
	if el == nil {
		mc.mu.Unlock()
		mc.misses.Add(1)
		return ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	data := el.Value.(*memoryEntry).data
	mc.mu.Unlock()

	mc.hits.Add(1)
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.index[k]; ok {
			mc.removeLocked(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for _, k := range keys {
		if mc.lookupLocked(k, now) != nil {
			return true, nil
		}
	}
	return false, nil
}

// TryLock claims key for ttl unless a live entry already holds it.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	if mc.lookupLocked(key, now) != nil {
		return false, nil
	}
	mc.putLocked(key, []byte(`"locked"`), now.Add(ttl))
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Len counts stored entries, including expired ones the janitor has not reached.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) Stats() Stats {
	return Stats{L1Hits: mc.hits.Load(), Misses: mc.misses.Load(), Entries: mc.Len()}
}

func (mc *MemoryCache) purgeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for el := mc.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*memoryEntry).expireAt) {
			mc.removeLocked(el)
		}
		el = prev
	}
}

func (mc *MemoryCache) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			mc.purgeExpired()
		case <-mc.stop:
			return
		}
	}
}

// Close stops the janitor goroutine.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}
