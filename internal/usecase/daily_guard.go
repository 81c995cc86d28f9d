package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/util"
)

// DailyGuard enforces one confirmation per (symbol, direction) per trading day.
// A trading day starts at the reset hour in the configured zone.
type DailyGuard struct {
	mu            sync.Mutex
	keys          map[models.DailyKey]time.Time
	lastResetDate string

	// persistence state, guarded by mu
	store          repository.GuardStore
	dirty          bool
	flushing       bool
	savedResetDate string

	loc       *time.Location
	resetHour int
	now       Clock
	log       *logger.Logger
}

func NewDailyGuard(store repository.GuardStore, loc *time.Location, resetHour int, log *logger.Logger) *DailyGuard {
	if loc == nil {
		loc = time.UTC
	}
	g := &DailyGuard{
		keys:      make(map[models.DailyKey]time.Time),
		store:     store,
		loc:       loc,
		resetHour: resetHour,
		now:       time.Now,
		log:       log.Component("daily_guard"),
	}
	g.lastResetDate = g.previousTradingDay(g.now())
	return g
}

func (g *DailyGuard) WithClock(now Clock) *DailyGuard {
	g.now = now
	g.mu.Lock()
	g.lastResetDate = g.previousTradingDay(now())
	g.mu.Unlock()
	return g
}

// previousTradingDay names the trading day before the one containing t. Until a
// reset date is restored, the reset that opened t's trading day counts as outstanding.
func (g *DailyGuard) previousTradingDay(t time.Time) string {
	return g.TradingDay(g.LastBoundary(t).Add(-time.Second))
}

func (g *DailyGuard) Location() *time.Location { return g.loc }
func (g *DailyGuard) ResetHour() int           { return g.resetHour }

// LastBoundary is the most recent reset instant at or before t.
func (g *DailyGuard) LastBoundary(t time.Time) time.Time {
	return util.LastBoundary(t, g.loc, g.resetHour)
}

// NextBoundary is the first reset instant strictly after t.
func (g *DailyGuard) NextBoundary(t time.Time) time.Time {
	return util.NextBoundary(t, g.loc, g.resetHour)
}

// TradingDay names the trading day containing t by the local date of its opening boundary.
func (g *DailyGuard) TradingDay(t time.Time) string {
	return g.LastBoundary(t).Format(util.DateLayout)
}

// TryAdd inserts key unless already present. Check and insert are atomic.
func (g *DailyGuard) TryAdd(ctx context.Context, key models.DailyKey) bool {
	g.mu.Lock()
	if _, ok := g.keys[key]; ok {
		g.mu.Unlock()
		return false
	}
	g.keys[key] = g.now()
	g.mu.Unlock()

	g.persist(ctx)
	return true
}

func (g *DailyGuard) Contains(key models.DailyKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.keys[key]
	return ok
}

// Remove undoes a TryAdd whose confirmation could not complete.
func (g *DailyGuard) Remove(ctx context.Context, key models.DailyKey) {
	g.mu.Lock()
	delete(g.keys, key)
	g.mu.Unlock()
	g.persist(ctx)
}

// Reset empties the set and stamps the current trading day as reset.
func (g *DailyGuard) Reset(ctx context.Context) int {
	day := g.TradingDay(g.now())
	g.mu.Lock()
	n := len(g.keys)
	g.keys = make(map[models.DailyKey]time.Time)
	g.lastResetDate = day
	g.mu.Unlock()

	g.persist(ctx)
	g.log.Info("daily set reset", logger.Int("cleared", n), logger.String("date", day))
	return n
}

// ResetDue reports whether the reset that opened t's trading day has not run yet.
func (g *DailyGuard) ResetDue(t time.Time) bool {
	return g.LastResetDate() < g.TradingDay(t)
}

func (g *DailyGuard) LastResetDate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastResetDate
}

func (g *DailyGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}

// Entries returns the keys in insertion order.
func (g *DailyGuard) Entries() []models.DailyKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entriesLocked()
}

func (g *DailyGuard) entriesLocked() []models.DailyKey {
	out := make([]models.DailyKey, 0, len(g.keys))
	for k := range g.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := g.keys[out[i]], g.keys[out[j]]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].String() < out[j].String()
	})
	return out
}

func (g *DailyGuard) Status() models.DailyStatus {
	entries := g.Entries()
	return models.DailyStatus{
		Count:          len(entries),
		Entries:        entries,
		LastResetDate:  g.LastResetDate(),
		ResetTimeLocal: fmt.Sprintf("%02d:00", g.resetHour),
		Timezone:       g.loc.String(),
		NextReset:      g.NextBoundary(g.now()),
	}
}

// Restore loads the current trading day's keys and the last reset date from the store.
// Keys saved for the current trading day mean its reset already ran.
func (g *DailyGuard) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	now := g.now()
	day := g.TradingDay(now)
	keys, err := g.store.LoadDaily(ctx, day)
	if err != nil {
		return fmt.Errorf("restore daily set: %w", err)
	}
	resetDate, err := g.store.LoadResetDate(ctx)
	if err != nil {
		return fmt.Errorf("restore reset date: %w", err)
	}

	g.mu.Lock()
	for i, k := range keys {
		if _, ok := g.keys[k]; !ok {
			// keep stored order stable
			g.keys[k] = now.Add(time.Duration(i) - time.Duration(len(keys)))
		}
	}
	if len(keys) > 0 && resetDate < day {
		resetDate = day
	}
	if resetDate > g.lastResetDate {
		g.lastResetDate = resetDate
	}
	g.savedResetDate = resetDate
	last := g.lastResetDate
	g.mu.Unlock()

	g.log.Info("daily set restored", logger.Int("entries", len(keys)), logger.String("last_reset", last))
	return nil
}

// persist writes the current state. Callers that find a write in flight leave it
// to that writer, which loops until nothing is dirty; no lock is held while writing.
func (g *DailyGuard) persist(ctx context.Context) {
	if g.store == nil {
		return
	}
	g.mu.Lock()
	g.dirty = true
	if g.flushing {
		g.mu.Unlock()
		return
	}
	g.flushing = true
	for g.dirty {
		g.dirty = false
		keys := g.entriesLocked()
		resetDate := g.lastResetDate
		saveReset := resetDate != g.savedResetDate
		g.mu.Unlock()

		day := g.TradingDay(g.now())
		if err := g.store.SaveDaily(ctx, day, keys); err != nil {
			g.log.Warn("daily set persist failed", logger.Error(err))
		}
		if saveReset {
			if err := g.store.SaveResetDate(ctx, resetDate); err != nil {
				g.log.Warn("reset date persist failed", logger.Error(err))
				saveReset = false
			}
		}

		g.mu.Lock()
		if saveReset {
			g.savedResetDate = resetDate
		}
	}
	g.flushing = false
	g.mu.Unlock()
}
