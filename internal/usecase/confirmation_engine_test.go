package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/service/cache"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
)

type engineHarness struct {
	clock    *fakeClock
	provider *fakeProvider
	pending  *PendingStore
	guard    *DailyGuard
	signals  *recordingStore
	events   *eventRecorder
	monitor  *confirmedRecorder
	leader   *fakeLeader
	engine   *ConfirmationEngine
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	h := &engineHarness{
		clock:    newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
		provider: newFakeProvider(),
		signals:  newRecordingStore(),
		events:   &eventRecorder{},
		monitor:  &confirmedRecorder{},
		leader:   &fakeLeader{analysis: LeaderAnalysis{Trend: models.Neutral}},
	}
	klines := cache.NewKlinesCache(metrics.Nop{}, logger.Nop()).WithClock(h.clock.Now)
	market := NewMarketData(h.provider, klines)
	h.pending = NewPendingStore(4*time.Hour, loc, 21).WithClock(h.clock.Now)
	h.guard = NewDailyGuard(newMemGuardStore(), loc, 21, logger.Nop()).WithClock(h.clock.Now)
	h.engine = NewConfirmationEngine(h.pending, market, h.leader, h.guard, h.signals, &nopHistory{},
		h.monitor, h.events, EngineConfig{
			CheckInterval: 5 * time.Minute,
			MaxAttempts:   12,
			Predicates:    DefaultPredicateConfig(),
		}, metrics.Nop{}, logger.Nop()).WithClock(h.clock.Now)
	return h
}

func (h *engineHarness) bars(symbol string, closes, volumes []float64) {
	start := h.clock.Now().Add(-time.Duration(len(closes)) * time.Hour)
	k := series(start, time.Hour, closes, 100)
	for i := range k {
		if volumes != nil {
			k[i].Volume = volumes[i]
		}
	}
	h.provider.setKlines(symbol, models.Interval1h, k)
}

func (h *engineHarness) accept(t *testing.T, symbol string, dir models.Direction, entry float64) *models.Candidate {
	t.Helper()
	c, err := h.engine.Accept(context.Background(), &models.Candidate{
		Symbol:       symbol,
		Direction:    dir,
		EntryPrice:   entry,
		TargetPrice:  entry * (1 + dir.Sign()*0.06),
		QualityScore: 82,
		QualityClass: models.Premium,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return c
}

func (h *engineHarness) tick(t *testing.T) {
	t.Helper()
	h.clock.Advance(5 * time.Minute)
	if err := h.engine.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func decidedOf(t *testing.T, h *engineHarness, id string) *models.Candidate {
	t.Helper()
	c, err := h.pending.Lookup(id)
	if !errors.Is(err, errs.ErrAlreadyTerminal) {
		t.Fatalf("candidate %s still pending or missing: %v", id, err)
	}
	return c
}

func TestEngineConfirmsLong(t *testing.T) {
	h := newEngineHarness(t)
	h.leader.analysis = LeaderAnalysis{Trend: models.Bullish, Strength: 60}
	c := h.accept(t, "SOLUSDT", models.Long, 100)

	h.bars("SOLUSDT", []float64{99.6, 99.8, 100.0, 100.1, 100.2}, nil)
	h.tick(t)
	if _, ok := h.pending.Get(c.ID); !ok {
		t.Fatalf("candidate decided after first tick")
	}
	pv := models.NewPendingView(mustPending(t, h, c.ID))
	if pv.Confirmations != 2 || pv.Rejections != 0 {
		t.Fatalf("tick 1 counts = %d/%d, want 2/0", pv.Confirmations, pv.Rejections)
	}

	h.bars("SOLUSDT", []float64{99.8, 100.0, 100.1, 100.2, 100.7}, []float64{100, 100, 100, 150, 150})
	h.tick(t)

	got := decidedOf(t, h, c.ID)
	if got.Decision.Outcome != models.DecisionConfirmed {
		t.Fatalf("outcome = %s, want CONFIRMED", got.Decision.Outcome)
	}
	if got.Attempts != 2 || len(got.Checks) != 2 {
		t.Fatalf("attempts=%d checks=%d, want 2/2", got.Attempts, len(got.Checks))
	}
	if !contains(got.Decision.Reasons, TagBreakout) || !contains(got.Decision.Reasons, TagVolumeSurge) {
		t.Fatalf("reasons = %v", got.Decision.Reasons)
	}
	if got.Decision.Lesson != "fast_confirmation" {
		t.Fatalf("lesson = %q", got.Decision.Lesson)
	}
	if !h.guard.Contains(models.DailyKey{Symbol: "SOLUSDT", Direction: models.Long}) {
		t.Fatalf("daily guard missing confirmed key")
	}
	rec, ok := h.signals.get(c.ID)
	if !ok || rec.Status != models.StatusConfirmed || rec.ConfirmedAt == nil {
		t.Fatalf("stored record = %+v", rec)
	}
	if len(h.monitor.signals) != 1 || h.monitor.signals[0].ID != c.ID {
		t.Fatalf("monitor did not receive the signal")
	}
}

func TestEngineRejectsReversal(t *testing.T) {
	h := newEngineHarness(t)
	h.leader.analysis = LeaderAnalysis{Trend: models.Bearish, Strength: 60}
	c := h.accept(t, "ADAUSDT", models.Long, 100)

	h.bars("ADAUSDT", []float64{100, 100, 100, 100, 99.3}, nil)
	h.tick(t)
	if _, ok := h.pending.Get(c.ID); !ok {
		t.Fatalf("rejected on first tick with a single rejection")
	}

	h.bars("ADAUSDT", []float64{100, 100, 100, 99.3, 98.8}, nil)
	h.tick(t)

	got := decidedOf(t, h, c.ID)
	if got.Decision.Outcome != models.DecisionRejected {
		t.Fatalf("outcome = %s, want REJECTED", got.Decision.Outcome)
	}
	if !contains(got.Decision.Reasons, models.ReasonReversal) {
		t.Fatalf("reasons = %v, want REVERSAL", got.Decision.Reasons)
	}
	if got.Decision.Lesson != "reversal_after_entry" {
		t.Fatalf("lesson = %q", got.Decision.Lesson)
	}
	if got.Decision.PriceMovePct >= 0 {
		t.Fatalf("price move = %v, want negative", got.Decision.PriceMovePct)
	}
	if h.guard.Len() != 0 {
		t.Fatalf("rejected candidate reached the daily guard")
	}
}

func TestEngineDuplicateOfDay(t *testing.T) {
	h := newEngineHarness(t)
	h.leader.analysis = LeaderAnalysis{Trend: models.Bullish, Strength: 60}
	rising := []float64{99.8, 100.0, 100.1, 100.2, 100.7}
	surge := []float64{100, 100, 100, 150, 150}

	first := h.accept(t, "SOLUSDT", models.Long, 100)
	h.bars("SOLUSDT", rising, surge)
	h.tick(t)
	if decidedOf(t, h, first.ID).Decision.Outcome != models.DecisionConfirmed {
		t.Fatalf("first candidate not confirmed")
	}

	h.clock.Advance(30 * time.Minute)
	second := h.accept(t, "SOLUSDT", models.Long, 100)
	h.bars("SOLUSDT", rising, surge)
	h.tick(t)

	got := decidedOf(t, h, second.ID)
	if got.Decision.Outcome != models.DecisionRejected {
		t.Fatalf("outcome = %s, want REJECTED", got.Decision.Outcome)
	}
	if len(got.Decision.Reasons) != 1 || got.Decision.Reasons[0] != models.ReasonDuplicateOfDay {
		t.Fatalf("reasons = %v", got.Decision.Reasons)
	}
	if h.guard.Len() != 1 {
		t.Fatalf("daily count = %d, want 1", h.guard.Len())
	}
	if len(h.monitor.signals) != 1 {
		t.Fatalf("monitor got %d signals, want 1", len(h.monitor.signals))
	}
}

func TestEngineExpiresAfterMaxAttempts(t *testing.T) {
	h := newEngineHarness(t)
	c := h.accept(t, "XRPUSDT", models.Long, 100)
	h.bars("XRPUSDT", []float64{100, 100, 100, 100, 100}, nil)

	for i := 0; i < 12; i++ {
		h.tick(t)
	}
	cur := mustPending(t, h, c.ID)
	if cur.Attempts != 12 {
		t.Fatalf("attempts = %d, want 12", cur.Attempts)
	}

	h.tick(t)
	got := decidedOf(t, h, c.ID)
	if got.Decision.Outcome != models.DecisionExpired {
		t.Fatalf("outcome = %s, want EXPIRED", got.Decision.Outcome)
	}
	if got.Decision.Reasons[0] != models.ReasonMaxAttempts {
		t.Fatalf("reasons = %v", got.Decision.Reasons)
	}
	if got.Attempts != 13 || len(got.Checks) != 13 {
		t.Fatalf("attempts=%d checks=%d, want 13/13", got.Attempts, len(got.Checks))
	}
	if got.Decision.Lesson != "timeout_indecisive" {
		t.Fatalf("lesson = %q", got.Decision.Lesson)
	}
}

func TestEngineExpiresOnWallClock(t *testing.T) {
	h := newEngineHarness(t)
	c := h.accept(t, "XRPUSDT", models.Long, 100)
	h.bars("XRPUSDT", []float64{100, 100, 100, 100, 100}, nil)
	h.tick(t)

	h.clock.Advance(4 * time.Hour)
	h.tick(t)

	got := decidedOf(t, h, c.ID)
	if got.Decision.Outcome != models.DecisionExpired || got.Decision.Reasons[0] != models.ReasonTimeout {
		t.Fatalf("decision = %+v", got.Decision)
	}
	if got.Attempts != len(got.Checks) {
		t.Fatalf("attempts=%d checks=%d", got.Attempts, len(got.Checks))
	}
}

func TestEngineFetchFailureWaits(t *testing.T) {
	h := newEngineHarness(t)
	c := h.accept(t, "DOGEUSDT", models.Short, 0.2)
	h.provider.klinesErr[klinesKeyOf("DOGEUSDT", models.Interval1h)] = &errs.TransientFetchError{Op: "klines", Status: 503}

	h.tick(t)

	cur := mustPending(t, h, c.ID)
	if cur.Attempts != 1 || len(cur.Checks) != 1 {
		t.Fatalf("attempts=%d checks=%d", cur.Attempts, len(cur.Checks))
	}
	chk := cur.Checks[0]
	if chk.Action != models.ActionWait || chk.FetchError == "" || len(chk.Predicates) != 0 {
		t.Fatalf("check = %+v", chk)
	}
}

func TestEngineManualOverrides(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	a := h.accept(t, "BNBUSDT", models.Long, 600)
	b := h.accept(t, "AVAXUSDT", models.Short, 30)

	sig, err := h.engine.ManualConfirm(ctx, a.ID)
	if err != nil {
		t.Fatalf("manual confirm: %v", err)
	}
	if !sig.Decision.Manual || sig.ConfirmationReasons[0] != models.ReasonManual {
		t.Fatalf("signal = %+v", sig.Decision)
	}

	before := decidedOf(t, h, a.ID)
	if _, err := h.engine.ManualConfirm(ctx, a.ID); !errors.Is(err, errs.ErrAlreadyTerminal) {
		t.Fatalf("second confirm err = %v, want ErrAlreadyTerminal", err)
	}
	if _, err := h.engine.ManualReject(ctx, a.ID, "late"); !errors.Is(err, errs.ErrAlreadyTerminal) {
		t.Fatalf("reject after confirm err = %v", err)
	}
	after := decidedOf(t, h, a.ID)
	if after.Decision.Outcome != before.Decision.Outcome || !after.Decision.Timestamp.Equal(before.Decision.Timestamp) {
		t.Fatalf("terminal decision mutated")
	}

	rej, err := h.engine.ManualReject(ctx, b.ID, "news risk")
	if err != nil {
		t.Fatalf("manual reject: %v", err)
	}
	if rej.Decision.Outcome != models.DecisionRejected || rej.Decision.Lesson != "manual_override" {
		t.Fatalf("decision = %+v", rej.Decision)
	}
	if len(rej.Decision.Reasons) != 2 || rej.Decision.Reasons[1] != "news risk" {
		t.Fatalf("reasons = %v", rej.Decision.Reasons)
	}

	if _, err := h.engine.ManualConfirm(ctx, "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestManualConfirmRespectsDailyGuard(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	h.guard.TryAdd(ctx, models.DailyKey{Symbol: "BNBUSDT", Direction: models.Long})
	c := h.accept(t, "BNBUSDT", models.Long, 600)

	_, err := h.engine.ManualConfirm(ctx, c.ID)
	if !errs.IsDuplicate(err) {
		t.Fatalf("err = %v, want duplicate", err)
	}
	if _, ok := h.pending.Get(c.ID); !ok {
		t.Fatalf("candidate left pending after refused manual confirm")
	}
}

func TestAcceptDeduplicatesPending(t *testing.T) {
	h := newEngineHarness(t)
	h.accept(t, "SOLUSDT", models.Long, 100)
	_, err := h.engine.Accept(context.Background(), &models.Candidate{
		Symbol: "SOLUSDT", Direction: models.Long, EntryPrice: 101,
	})
	if !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("err = %v, want ErrAlreadyPending", err)
	}
	if _, err := h.engine.Accept(context.Background(), &models.Candidate{Symbol: "SOLUSDT", Direction: models.Short}); !errs.IsValidation(err) {
		t.Fatalf("zero entry err = %v, want validation", err)
	}
}

func TestDecideActionRejectFirst(t *testing.T) {
	tests := []struct {
		conf, rej int
		want      models.Action
	}{
		{3, 2, models.ActionReject},
		{4, 0, models.ActionConfirm},
		{3, 1, models.ActionConfirm},
		{2, 1, models.ActionWait},
		{0, 2, models.ActionReject},
	}
	for _, tt := range tests {
		if got := DecideAction(tt.conf, tt.rej); got != tt.want {
			t.Errorf("DecideAction(%d, %d) = %s, want %s", tt.conf, tt.rej, got, tt.want)
		}
	}
}

func mustPending(t *testing.T, h *engineHarness, id string) *models.Candidate {
	t.Helper()
	c, ok := h.pending.Get(id)
	if !ok {
		t.Fatalf("candidate %s not pending", id)
	}
	return c
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
