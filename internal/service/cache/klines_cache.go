package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/logger"
)

// KlinesStats are the cache counters. APICallsSaved equals Hits.
type KlinesStats struct {
	Requests      int64   `json:"requests"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	APICallsSaved int64   `json:"api_calls_saved"`
	HitRatePct    float64 `json:"hit_rate_pct"`
	Entries       int     `json:"entries"`
}

// KlinesCache caches klines keyed by (symbol, interval, limit). Stored and returned
// slices never alias each other or the caller's data.
type KlinesCache struct {
	store   *TTLCache[models.Klines]
	group   singleflight.Group
	metrics repository.Metrics
	log     *logger.Logger
	ttl     func(models.Interval) time.Duration

	requests atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

func NewKlinesCache(metrics repository.Metrics, log *logger.Logger) *KlinesCache {
	return &KlinesCache{
		store:   NewTTLCache[models.Klines](),
		metrics: metrics,
		log:     log.Component("klines_cache"),
		ttl:     models.DefaultKlinesTTL,
	}
}

// WithClock replaces time.Now, for tests.
func (c *KlinesCache) WithClock(now func() time.Time) *KlinesCache {
	c.store.WithClock(now)
	return c
}

func klinesKey(symbol string, interval models.Interval, limit int) string {
	return fmt.Sprintf("%s|%s|%d", symbol, interval, limit)
}

// Get returns a private copy of the cached klines.
func (c *KlinesCache) Get(symbol string, interval models.Interval, limit int) (models.Klines, bool) {
	c.requests.Add(1)
	v, ok := c.store.Get(klinesKey(symbol, interval, limit))
	if !ok {
		c.misses.Add(1)
		c.metrics.RecordCacheRequest("klines", false)
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.RecordCacheRequest("klines", true)
	return v.Clone(), true
}

// Set stores a copy of klines. ttl <= 0 selects the interval tier default.
func (c *KlinesCache) Set(symbol string, interval models.Interval, limit int, klines models.Klines, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl(interval)
	}
	c.store.Set(klinesKey(symbol, interval, limit), klines.Clone(), ttl)
}

// GetOrLoad returns cached klines or calls load once per key across concurrent callers.
func (c *KlinesCache) GetOrLoad(ctx context.Context, symbol string, interval models.Interval, limit int,
	load func(ctx context.Context) (models.Klines, error)) (models.Klines, error) {
	if k, ok := c.Get(symbol, interval, limit); ok {
		return k, nil
	}
	key := klinesKey(symbol, interval, limit)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		k, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(symbol, interval, limit, k, 0)
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	// shared result: hand each caller its own copy
	return v.(models.Klines).Clone(), nil
}

func (c *KlinesCache) Stats() KlinesStats {
	s := KlinesStats{
		Requests: c.requests.Load(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Entries:  c.store.Len(),
	}
	s.APICallsSaved = s.Hits
	if s.Requests > 0 {
		s.HitRatePct = float64(s.Hits) / float64(s.Requests) * 100
	}
	return s
}

// Sweep evicts expired entries.
func (c *KlinesCache) Sweep() {
	if n := c.store.Sweep(); n > 0 {
		c.log.Debug("evicted expired klines", logger.Int("count", n))
	}
}
