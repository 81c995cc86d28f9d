package usecase

import (
	"context"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/internal/service/cache"
	pkgcache "SignalFlow/pkg/cache"
	"SignalFlow/pkg/logger"
)

const queryStoreTimeout = 5 * time.Second

// SignalQueryService is the read surface plus the admin overrides.
type SignalQueryService struct {
	pending *PendingStore
	engine  *ConfirmationEngine
	guard   *DailyGuard
	monitor *Monitor
	pairs   *PairsSelector
	leader  *MarketLeaderAnalyzer
	klines  *cache.KlinesCache
	store   pkgcache.Service
	signals repository.SignalStore
	log     *logger.Logger
}

func NewSignalQueryService(pending *PendingStore, engine *ConfirmationEngine, guard *DailyGuard, monitor *Monitor,
	pairs *PairsSelector, leader *MarketLeaderAnalyzer, klines *cache.KlinesCache, store pkgcache.Service,
	signals repository.SignalStore, log *logger.Logger) *SignalQueryService {
	return &SignalQueryService{
		pending: pending,
		engine:  engine,
		guard:   guard,
		monitor: monitor,
		pairs:   pairs,
		leader:  leader,
		klines:  klines,
		store:   store,
		signals: signals,
		log:     log.Component("query"),
	}
}

func (q *SignalQueryService) ListPending() []models.PendingView {
	list := q.pending.List()
	out := make([]models.PendingView, len(list))
	for i, c := range list {
		out[i] = models.NewPendingView(c)
	}
	return out
}

// ListConfirmed reads the store and falls back to in-process history when it is unavailable.
func (q *SignalQueryService) ListConfirmed(ctx context.Context, limit int) []models.ConfirmedView {
	recs, err := q.listStore(ctx, []models.SignalStatus{models.StatusConfirmed}, limit)
	if err == nil {
		out := make([]models.ConfirmedView, 0, len(recs))
		for _, r := range recs {
			out = append(out, confirmedViewFromRecord(r))
		}
		return out
	}
	q.log.Warn("store unavailable, serving in-process confirmed list", logger.Error(err))
	decided := q.pending.Decided(limit, models.DecisionConfirmed)
	out := make([]models.ConfirmedView, 0, len(decided))
	for _, c := range decided {
		out = append(out, models.NewConfirmedView(models.ConfirmedSignal{
			Candidate:           *c,
			ConfirmedAt:         c.Decision.Timestamp,
			ConfirmationReasons: c.Decision.Reasons,
		}))
	}
	return out
}

// ListRejected returns rejected and expired candidates, newest first.
func (q *SignalQueryService) ListRejected(ctx context.Context, limit int) []models.RejectedView {
	recs, err := q.listStore(ctx, []models.SignalStatus{models.StatusRejected, models.StatusExpired}, limit)
	if err == nil {
		out := make([]models.RejectedView, 0, len(recs))
		for _, r := range recs {
			out = append(out, rejectedViewFromRecord(r))
		}
		return out
	}
	q.log.Warn("store unavailable, serving in-process rejected list", logger.Error(err))
	decided := q.pending.Decided(limit, models.DecisionRejected, models.DecisionExpired)
	out := make([]models.RejectedView, 0, len(decided))
	for _, c := range decided {
		out = append(out, models.NewRejectedView(c))
	}
	return out
}

func (q *SignalQueryService) listStore(ctx context.Context, statuses []models.SignalStatus, limit int) ([]models.SignalRecord, error) {
	sctx, cancel := context.WithTimeout(ctx, queryStoreTimeout)
	defer cancel()
	return q.signals.ListSignals(sctx, models.SignalFilter{Statuses: statuses, Limit: limit})
}

func confirmedViewFromRecord(r models.SignalRecord) models.ConfirmedView {
	v := models.ConfirmedView{
		ID:                  r.ID,
		Symbol:              r.Symbol,
		Direction:           r.Type,
		EntryPrice:          r.EntryPrice,
		TargetPrice:         r.TargetPrice,
		ProjectionPct:       r.ProjectionPct,
		QualityScore:        r.QualityScore,
		QualityClass:        r.QualityClass,
		CreatedAt:           r.CreatedAt,
		ConfirmationReasons: r.ConfirmationReasons,
	}
	if r.ConfirmedAt != nil {
		v.ConfirmedAt = *r.ConfirmedAt
		v.ProcessingMinutes = r.ConfirmedAt.Sub(r.CreatedAt).Minutes()
	}
	if r.Decision != nil {
		v.Manual = r.Decision.Manual
	}
	return v
}

func rejectedViewFromRecord(r models.SignalRecord) models.RejectedView {
	v := models.RejectedView{
		ID:           r.ID,
		Symbol:       r.Symbol,
		Direction:    r.Type,
		EntryPrice:   r.EntryPrice,
		QualityScore: r.QualityScore,
		CreatedAt:    r.CreatedAt,
	}
	if r.DecidedAt != nil {
		v.DecidedAt = *r.DecidedAt
	}
	if r.Decision != nil {
		v.Outcome = r.Decision.Outcome
		v.Reasons = r.Decision.Reasons
		v.Attempts = r.Decision.Attempts
		v.Lesson = r.Decision.Lesson
	}
	return v
}

func (q *SignalQueryService) ConfirmationMetrics() models.ConfirmationMetrics {
	m := q.pending.Metrics()
	m.Active = q.engine.Active()
	return m
}

func (q *SignalQueryService) DailyStatus() models.DailyStatus { return q.guard.Status() }

func (q *SignalQueryService) MonitoredSignals(limit int) []*models.MonitoredSignal {
	return truncate(q.monitor.List(models.MonitorActive), limit)
}

// ExpiredSignals lists monitored signals that left the active state.
func (q *SignalQueryService) ExpiredSignals(limit int) []*models.MonitoredSignal {
	done := append(q.monitor.List(models.MonitorExpired), q.monitor.List(models.MonitorCompleted)...)
	return truncate(done, limit)
}

func (q *SignalQueryService) MonitoringStats() models.MonitorStats { return q.monitor.Stats() }

func (q *SignalQueryService) Pairs(ctx context.Context, n int) (models.PairUniverse, error) {
	if _, err := q.pairs.Top(ctx, n); err != nil {
		return models.PairUniverse{}, err
	}
	u := q.pairs.Universe()
	if n > 0 && n < len(u.Symbols) {
		u.Symbols = u.Symbols[:n]
		u.Scores = u.Scores[:n]
	}
	return u, nil
}

func (q *SignalQueryService) Leader(ctx context.Context) (LeaderAnalysis, error) {
	return q.leader.Analyze(ctx)
}

// CacheStatsView reports the klines cache and, when it counts hits, the shared key/value cache.
type CacheStatsView struct {
	Klines cache.KlinesStats `json:"klines"`
	Store  *pkgcache.Stats   `json:"store,omitempty"`
}

func (q *SignalQueryService) CacheStats() CacheStatsView {
	view := CacheStatsView{Klines: q.klines.Stats()}
	if r, ok := q.store.(pkgcache.StatsReporter); ok {
		s := r.Stats()
		view.Store = &s
	}
	return view
}

func (q *SignalQueryService) ManualConfirm(ctx context.Context, id string) (models.ConfirmedView, error) {
	sig, err := q.engine.ManualConfirm(ctx, id)
	if err != nil {
		return models.ConfirmedView{}, err
	}
	return models.NewConfirmedView(*sig), nil
}

func (q *SignalQueryService) ManualReject(ctx context.Context, id, reason string) (models.RejectedView, error) {
	c, err := q.engine.ManualReject(ctx, id, reason)
	if err != nil {
		return models.RejectedView{}, err
	}
	return models.NewRejectedView(c), nil
}

func truncate[T any](xs []T, limit int) []T {
	if limit > 0 && len(xs) > limit {
		return xs[:limit]
	}
	return xs
}
