package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/logger"
)

const (
	snapshotBars    = 5
	sideEffectLimit = 10 * time.Second
)

// ConfirmedSink receives signals that passed confirmation.
type ConfirmedSink interface {
	Add(ctx context.Context, s models.ConfirmedSignal) error
}

// EventSink receives lifecycle events. Dispatch must not block.
type EventSink interface {
	Dispatch(ev models.SignalEvent)
}

type EngineConfig struct {
	CheckInterval time.Duration
	MaxAttempts   int
	Predicates    PredicateConfig
}

// ConfirmationEngine drives pending candidates to a terminal decision.
type ConfirmationEngine struct {
	store   *PendingStore
	market  *MarketData
	leader  LeaderSource
	guard   *DailyGuard
	signals repository.SignalStore
	history repository.EvaluationLog
	monitor ConfirmedSink
	events  EventSink
	cfg     EngineConfig
	metrics repository.Metrics
	now     Clock
	log     *logger.Logger

	running chan struct{}
}

func NewConfirmationEngine(store *PendingStore, market *MarketData, leader LeaderSource, guard *DailyGuard,
	signals repository.SignalStore, history repository.EvaluationLog, monitor ConfirmedSink, events EventSink,
	cfg EngineConfig, metrics repository.Metrics, log *logger.Logger) *ConfirmationEngine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 12
	}
	return &ConfirmationEngine{
		store:   store,
		market:  market,
		leader:  leader,
		guard:   guard,
		signals: signals,
		history: history,
		monitor: monitor,
		events:  events,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		log:     log.Component("confirmation"),
		running: make(chan struct{}, 1),
	}
}

func (e *ConfirmationEngine) WithClock(now Clock) *ConfirmationEngine {
	e.now = now
	return e
}

// Active reports whether the tick loop is running.
func (e *ConfirmationEngine) Active() bool { return len(e.running) > 0 }

func (e *ConfirmationEngine) Run(ctx context.Context) {
	e.running <- struct{}{}
	defer func() { <-e.running }()
	runEvery(ctx, e.log, "confirmation", e.cfg.CheckInterval, func(ctx context.Context) error {
		return e.Tick(ctx)
	})
}

// Accept registers a scanner candidate as pending.
func (e *ConfirmationEngine) Accept(ctx context.Context, c *models.Candidate) (*models.Candidate, error) {
	if c == nil || c.Symbol == "" {
		return nil, errs.Invalid("symbol", "required")
	}
	if c.Direction != models.Long && c.Direction != models.Short {
		return nil, errs.Invalid("direction", "must be LONG or SHORT")
	}
	if c.EntryPrice <= 0 {
		return nil, errs.Invalid("entry_price", "must be positive")
	}

	stored, err := e.store.Add(c)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordCandidate(string(stored.QualityClass))
	e.metrics.SetPending(e.store.Len())
	e.persist(ctx, stored)
	e.events.Dispatch(e.event(models.EventCandidate, stored, nil))
	e.log.Info("candidate accepted",
		logger.String("id", stored.ID),
		logger.String("symbol", stored.Symbol),
		logger.String("direction", string(stored.Direction)),
		logger.Float64("quality", stored.QualityScore))
	return stored, nil
}

// Tick evaluates every pending candidate once, oldest first.
func (e *ConfirmationEngine) Tick(ctx context.Context) error {
	ids := e.store.IDs()
	if len(ids) == 0 {
		e.metrics.SetPending(0)
		return nil
	}

	var leader *LeaderAnalysis
	if la, err := e.leader.Analyze(ctx); err != nil {
		e.log.Warn("leader analysis unavailable for tick", logger.Error(err))
	} else {
		leader = &la
	}

	var tickErr error
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.evaluate(ctx, id, leader); err != nil {
			if errs.IsInvariant(err) {
				tickErr = err
			}
			e.log.Error("candidate evaluation failed", logger.String("id", id), logger.Error(err))
		}
	}
	e.metrics.SetPending(e.store.Len())
	return tickErr
}

func (e *ConfirmationEngine) evaluate(ctx context.Context, id string, leader *LeaderAnalysis) error {
	c, ok := e.store.Get(id)
	if !ok {
		return nil
	}
	now := e.now()

	if now.After(c.ExpiresAt) {
		_, err := e.finish(ctx, c.ID, models.DecisionExpired, []string{models.ReasonTimeout}, false)
		return err
	}

	if c.Attempts+1 > e.cfg.MaxAttempts {
		rec := models.EvaluationRecord{Timestamp: now, Action: models.ActionExpire}
		if err := e.append(ctx, c, rec); err != nil {
			return err
		}
		_, err := e.finish(ctx, c.ID, models.DecisionExpired, []string{models.ReasonMaxAttempts}, false)
		return err
	}

	snap, err := e.snapshot(ctx, c.Symbol, leader)
	if err != nil {
		e.metrics.RecordFetchError("snapshot", fetchKind(err))
		rec := models.EvaluationRecord{Timestamp: now, Action: models.ActionWait, FetchError: err.Error()}
		e.log.Debug("snapshot unavailable, waiting", logger.String("symbol", c.Symbol), logger.Error(err))
		return e.append(ctx, c, rec)
	}

	preds := EvaluatePredicates(c.Direction, c.EntryPrice, snap, e.cfg.Predicates)
	conf, rej, confReasons, rejReasons := Tally(preds)
	rec := models.EvaluationRecord{
		Timestamp:     now,
		Snapshot:      snap,
		Predicates:    preds,
		Confirmations: conf,
		Rejections:    rej,
		Action:        DecideAction(conf, rej),
	}
	if err := e.append(ctx, c, rec); err != nil {
		return err
	}

	switch rec.Action {
	case models.ActionReject:
		_, err = e.finish(ctx, c.ID, models.DecisionRejected, rejReasons, false)
	case models.ActionConfirm:
		_, err = e.confirm(ctx, c.ID, confReasons, false)
		if errs.IsDuplicate(err) {
			err = nil
		}
	}
	return err
}

func (e *ConfirmationEngine) append(ctx context.Context, c *models.Candidate, rec models.EvaluationRecord) error {
	if err := e.store.Append(c.ID, rec); err != nil {
		if errors.Is(err, errs.ErrAlreadyTerminal) || errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	rec.Attempt = c.Attempts + 1
	e.recordEvaluation(ctx, c, rec)
	return nil
}

// snapshot gathers the last 1h bars, the 24h ticker and the leader view.
func (e *ConfirmationEngine) snapshot(ctx context.Context, symbol string, leader *LeaderAnalysis) (models.MarketSnapshot, error) {
	bars, err := e.market.Klines(ctx, symbol, models.Interval1h, snapshotBars)
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	if len(bars) == 0 {
		return models.MarketSnapshot{}, &errs.DataInsufficientError{Symbol: symbol, Interval: string(models.Interval1h), Need: 1}
	}
	tickers, err := e.market.Provider().Get24hTickers(ctx, []string{symbol})
	if err != nil {
		return models.MarketSnapshot{}, err
	}

	snap := models.MarketSnapshot{
		At:          e.now(),
		LastClose:   bars.Last().Close,
		Closes:      bars.Closes(),
		Volumes:     bars.Volumes(),
		LeaderTrend: models.Neutral,
	}
	if t, ok := tickers[symbol]; ok {
		snap.LastPrice = t.LastPrice
		snap.PriceChangePct = t.PriceChangePct
		snap.QuoteVolume = t.Volume
	}
	if leader != nil {
		snap.LeaderTrend = leader.Trend
		snap.LeaderStrength = leader.Strength / 100
	}
	return snap, nil
}

// ManualConfirm confirms a pending candidate without predicate thresholds.
// The daily guard still applies; a duplicate leaves the candidate pending.
func (e *ConfirmationEngine) ManualConfirm(ctx context.Context, id string) (*models.ConfirmedSignal, error) {
	if _, err := e.store.Lookup(id); err != nil {
		return nil, err
	}
	return e.confirm(ctx, id, []string{models.ReasonManual}, true)
}

// ManualReject rejects a pending candidate.
func (e *ConfirmationEngine) ManualReject(ctx context.Context, id, reason string) (*models.Candidate, error) {
	if _, err := e.store.Lookup(id); err != nil {
		return nil, err
	}
	reasons := []string{models.ReasonManual}
	if reason != "" && reason != models.ReasonManual {
		reasons = append(reasons, reason)
	}
	return e.finish(ctx, id, models.DecisionRejected, reasons, true)
}

func (e *ConfirmationEngine) confirm(ctx context.Context, id string, reasons []string, manual bool) (*models.ConfirmedSignal, error) {
	c, ok := e.store.Get(id)
	if !ok {
		_, err := e.store.Lookup(id)
		return nil, err
	}
	key := models.DailyKey{Symbol: c.Symbol, Direction: c.Direction}
	if !e.guard.TryAdd(ctx, key) {
		dup := &errs.DuplicateConfirmationError{Symbol: c.Symbol, Direction: string(c.Direction)}
		if manual {
			return nil, dup
		}
		if _, err := e.finish(ctx, id, models.DecisionRejected, []string{models.ReasonDuplicateOfDay}, false); err != nil {
			return nil, err
		}
		return nil, dup
	}

	decided, err := e.store.Decide(id, e.decision(c, models.DecisionConfirmed, reasons, manual))
	if err != nil {
		e.guard.Remove(ctx, key)
		return nil, err
	}
	e.afterDecision(ctx, decided)

	sig := models.ConfirmedSignal{
		Candidate:           *decided,
		ConfirmedAt:         decided.Decision.Timestamp,
		ConfirmationReasons: append([]string(nil), reasons...),
	}
	if err := e.monitor.Add(ctx, sig); err != nil {
		e.log.Error("monitor registration failed", logger.String("id", id), logger.Error(err))
	}
	return &sig, nil
}

func (e *ConfirmationEngine) finish(ctx context.Context, id string, outcome models.DecisionOutcome, reasons []string, manual bool) (*models.Candidate, error) {
	c, ok := e.store.Get(id)
	if !ok {
		_, err := e.store.Lookup(id)
		return nil, err
	}
	decided, err := e.store.Decide(id, e.decision(c, outcome, reasons, manual))
	if err != nil {
		return nil, err
	}
	e.afterDecision(ctx, decided)
	return decided, nil
}

// decision derives the terminal record from the candidate's last checks.
func (e *ConfirmationEngine) decision(c *models.Candidate, outcome models.DecisionOutcome, reasons []string, manual bool) models.DecisionRecord {
	now := e.now()
	d := models.DecisionRecord{
		Timestamp:      now,
		Outcome:        outcome,
		Reasons:        append([]string(nil), reasons...),
		ProcessingTime: now.Sub(c.CreatedAt),
		Attempts:       c.Attempts,
		Manual:         manual,
	}
	for i := len(c.Checks) - 1; i >= 0; i-- {
		chk := c.Checks[i]
		if chk.FetchError != "" || chk.Snapshot.LastClose == 0 {
			continue
		}
		d.Confirmations = chk.Confirmations
		d.Rejections = chk.Rejections
		if c.EntryPrice > 0 {
			d.PriceMovePct = (chk.Snapshot.LastClose/c.EntryPrice - 1) * 100 * c.Direction.Sign()
		}
		break
	}
	d.Lesson = Lesson(d)
	return d
}

func (e *ConfirmationEngine) afterDecision(ctx context.Context, c *models.Candidate) {
	d := c.Decision
	e.metrics.RecordDecision(string(d.Outcome))
	e.metrics.SetPending(e.store.Len())
	e.persist(ctx, c)

	hctx, cancel := context.WithTimeout(ctx, sideEffectLimit)
	if err := e.history.RecordDecision(hctx, c); err != nil {
		e.log.Warn("decision history write failed", logger.String("id", c.ID), logger.Error(err))
	}
	cancel()

	kind := models.EventRejected
	switch d.Outcome {
	case models.DecisionConfirmed:
		kind = models.EventConfirmed
	case models.DecisionExpired:
		kind = models.EventExpired
	}
	e.events.Dispatch(e.event(kind, c, d.Reasons))

	e.log.Info("candidate decided",
		logger.String("id", c.ID),
		logger.String("symbol", c.Symbol),
		logger.String("direction", string(c.Direction)),
		logger.String("outcome", string(d.Outcome)),
		logger.Strings("reasons", d.Reasons),
		logger.Int("attempts", d.Attempts),
		logger.String("lesson", d.Lesson))
}

func (e *ConfirmationEngine) persist(ctx context.Context, c *models.Candidate) {
	sctx, cancel := context.WithTimeout(ctx, sideEffectLimit)
	defer cancel()
	if err := e.signals.InsertSignal(sctx, models.NewSignalRecord(c)); err != nil {
		e.metrics.RecordError("store")
		e.log.Warn("signal persist failed", logger.String("id", c.ID), logger.Error(err))
	}
}

func (e *ConfirmationEngine) recordEvaluation(ctx context.Context, c *models.Candidate, rec models.EvaluationRecord) {
	hctx, cancel := context.WithTimeout(ctx, sideEffectLimit)
	defer cancel()
	if err := e.history.RecordEvaluation(hctx, c, rec); err != nil {
		e.log.Warn("evaluation history write failed", logger.String("id", c.ID), logger.Error(err))
	}
}

func (e *ConfirmationEngine) event(kind models.EventKind, c *models.Candidate, reasons []string) models.SignalEvent {
	return models.SignalEvent{
		ID:          fmt.Sprintf("%s-%s", c.ID, kind),
		Kind:        kind,
		SignalID:    c.ID,
		Symbol:      c.Symbol,
		Direction:   c.Direction,
		Quality:     c.QualityScore,
		Class:       c.QualityClass,
		EntryPrice:  c.EntryPrice,
		TargetPrice: c.TargetPrice,
		Reasons:     append([]string(nil), reasons...),
		At:          e.now(),
	}
}

// Lesson tags a decision for later review.
func Lesson(d models.DecisionRecord) string {
	if d.Manual {
		return "manual_override"
	}
	has := func(tag string) bool {
		for _, r := range d.Reasons {
			if r == tag {
				return true
			}
		}
		return false
	}
	switch d.Outcome {
	case models.DecisionConfirmed:
		if d.Attempts <= 2 {
			return "fast_confirmation"
		}
		return "steady_confirmation"
	case models.DecisionExpired:
		return "timeout_indecisive"
	}
	switch {
	case has(models.ReasonDuplicateOfDay):
		return "duplicate_of_day"
	case has(models.ReasonReversal):
		return "reversal_after_entry"
	case has(TagLeaderDivergence):
		return "leader_divergence"
	case has(TagLowVolume):
		return "low_volume"
	default:
		return "rejected"
	}
}

func fetchKind(err error) string {
	switch {
	case errs.IsTransient(err):
		return "transient"
	case errs.IsDataInsufficient(err):
		return "insufficient"
	case errs.IsValidation(err):
		return "validation"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "other"
	}
}
