package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	pkgcache "SignalFlow/pkg/cache"
	"SignalFlow/pkg/logger"
)

const (
	schedulerPoll    = time.Minute
	cleanupRetention = 24 * time.Hour
	resetLockTTL     = 10 * time.Minute
)

// CleanupReport counts what one cleanup removed.
type CleanupReport struct {
	Signals   int64 `json:"signals"`
	Confirmed int64 `json:"confirmed"`
	Decided   int   `json:"decided"`
}

// Cleanup purges stale signals, history and decided candidates.
type Cleanup struct {
	signals repository.SignalStore
	history repository.EvaluationLog
	pending *PendingStore
	guard   *DailyGuard
	log     *logger.Logger
}

func NewCleanup(signals repository.SignalStore, history repository.EvaluationLog, pending *PendingStore,
	guard *DailyGuard, log *logger.Logger) *Cleanup {
	return &Cleanup{signals: signals, history: history, pending: pending, guard: guard, log: log.Component("cleanup")}
}

// Run removes non-confirmed records older than 24h and confirmed records from before
// the most recent reset boundary.
func (c *Cleanup) Run(ctx context.Context, now time.Time) (CleanupReport, error) {
	var rep CleanupReport
	cutoff := now.Add(-cleanupRetention)
	boundary := c.guard.LastBoundary(now)

	n, err := c.signals.DeleteSignalsBefore(ctx,
		[]models.SignalStatus{models.StatusPending, models.StatusRejected, models.StatusExpired},
		models.FieldCreatedAt, cutoff)
	if err != nil {
		return rep, fmt.Errorf("delete stale signals: %w", err)
	}
	rep.Signals = n

	n, err = c.signals.DeleteSignalsBefore(ctx,
		[]models.SignalStatus{models.StatusConfirmed}, models.FieldConfirmedAt, boundary)
	if err != nil {
		return rep, fmt.Errorf("delete confirmed signals: %w", err)
	}
	rep.Confirmed = n

	if err := c.history.Purge(ctx, cutoff); err != nil {
		c.log.Warn("history purge failed", logger.Error(err))
	}

	rep.Decided = c.pending.PurgeDecided(func(cand *models.Candidate) bool {
		if cand.Decision.Outcome == models.DecisionConfirmed {
			return cand.Decision.Timestamp.Before(boundary)
		}
		return cand.CreatedAt.Before(cutoff)
	})

	c.log.Info("cleanup complete",
		logger.Int64("signals_removed", rep.Signals),
		logger.Int64("confirmed_removed", rep.Confirmed),
		logger.Int("decided_removed", rep.Decided))
	return rep, nil
}

// Scheduler fires the daily reset once per trading day, at or after the reset hour.
type Scheduler struct {
	guard   *DailyGuard
	cleanup *Cleanup
	lock    pkgcache.Service
	events  EventSink
	poll    time.Duration
	now     Clock
	log     *logger.Logger
}

func NewScheduler(guard *DailyGuard, cleanup *Cleanup, lock pkgcache.Service, events EventSink, log *logger.Logger) *Scheduler {
	return &Scheduler{
		guard:   guard,
		cleanup: cleanup,
		lock:    lock,
		events:  events,
		poll:    schedulerPoll,
		now:     time.Now,
		log:     log.Component("scheduler"),
	}
}

func (s *Scheduler) WithClock(now Clock) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) Run(ctx context.Context) {
	runEvery(ctx, s.log, "scheduler", s.poll, func(ctx context.Context) error {
		_, err := s.Check(ctx)
		return err
	})
}

// Due reports whether the reset boundary opening t's trading day has not run yet.
// A process started after a boundary it missed fires once on its first poll.
func (s *Scheduler) Due(t time.Time) bool {
	return s.guard.ResetDue(t)
}

// Check runs the reset when due and reports whether it fired. Cleanup errors are
// logged; the reset itself always completes.
func (s *Scheduler) Check(ctx context.Context) (bool, error) {
	now := s.now()
	if !s.Due(now) {
		return false, nil
	}
	date := s.guard.TradingDay(now)

	cleared := s.guard.Reset(ctx)

	runCleanup := true
	if s.lock != nil {
		key := pkgcache.GenerateKeyWithParams("scheduler", "reset", date)
		ok, err := s.lock.TryLock(ctx, key, resetLockTTL)
		if err != nil {
			s.log.Warn("reset lock unavailable, cleaning up locally", logger.Error(err))
		} else if !ok {
			runCleanup = false
			s.log.Info("cleanup already ran on another instance", logger.String("date", date))
		}
	}
	if runCleanup {
		if _, err := s.cleanup.Run(ctx, now); err != nil {
			s.log.Error("cleanup failed", logger.Error(err))
		}
	}

	s.events.Dispatch(models.SignalEvent{
		ID:    "daily_reset-" + date,
		Kind:  models.EventDailyReset,
		Count: cleared,
		At:    now,
	})
	s.log.Info("daily reset fired", logger.String("date", date), logger.Int("cleared", cleared))
	return true, nil
}
