package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func newTestMonitor(p *fakeProvider, store *recordingStore, events *eventRecorder, clock *fakeClock) *Monitor {
	return NewMonitor(p, newTestLeverage(p), store, events, MonitorConfig{
		UpdateInterval:  5 * time.Minute,
		MonitoringDays:  15,
		SimInvestment:   1000,
		SimTargetValue:  4000,
		ProfitTargetPct: 300,
	}, metrics.Nop{}, logger.Nop()).WithClock(clock.Now)
}

func confirmedAt(id, symbol string, dir models.Direction, entry float64, at time.Time) models.ConfirmedSignal {
	return models.ConfirmedSignal{
		Candidate: models.Candidate{
			ID: id, Symbol: symbol, Direction: dir, EntryPrice: entry,
			QualityScore: 85, QualityClass: models.PremiumPlus, CreatedAt: at.Add(-time.Hour),
		},
		ConfirmedAt:         at,
		ConfirmationReasons: []string{TagBreakout},
	}
}

func TestMonitorCompletesOnLeveragedProfit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	p := newFakeProvider()
	p.brackets = map[string][]models.LeverageBracket{"ARBUSDT": {{Bracket: 1, InitialLeverage: 100}, {Bracket: 2, InitialLeverage: 50}}}
	store := newRecordingStore()
	events := &eventRecorder{}
	m := newTestMonitor(p, store, events, clock)

	if err := m.Add(ctx, confirmedAt("s1", "ARBUSDT", models.Long, 50, clock.Now())); err != nil {
		t.Fatalf("add: %v", err)
	}
	p.setPrice("ARBUSDT", 51.5)
	clock.Advance(5 * time.Minute)
	if err := m.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}

	s, ok := m.Get("s1")
	if !ok {
		t.Fatalf("signal missing")
	}
	if s.MaxLeverage != 100 {
		t.Fatalf("max leverage = %d, want 100", s.MaxLeverage)
	}
	if !approx(s.CurrentProfit, 300) {
		t.Fatalf("current profit = %v, want 300", s.CurrentProfit)
	}
	if s.Status != models.MonitorCompleted || s.CompletedAt == nil {
		t.Fatalf("status = %s, want COMPLETED", s.Status)
	}
	if !approx(s.SimPositionSize, 20) || !approx(s.SimCurrentValue, 1030) || !approx(s.SimPnL, 30) {
		t.Fatalf("sim = size %v value %v pnl %v", s.SimPositionSize, s.SimCurrentValue, s.SimPnL)
	}
	if got := events.kinds(); len(got) != 1 || got[0] != models.EventMonitorCompleted {
		t.Fatalf("events = %v", got)
	}

	// terminal signals are no longer updated
	p.setPrice("ARBUSDT", 40)
	clock.Advance(5 * time.Minute)
	_ = m.Update(ctx)
	s, _ = m.Get("s1")
	if s.CurrentPrice != 51.5 || len(s.PriceHistory) != 1 {
		t.Fatalf("completed signal changed: price %v history %d", s.CurrentPrice, len(s.PriceHistory))
	}
	if _, ok := store.monitored["s1"]; !ok {
		t.Fatalf("monitored signal not persisted")
	}
}

func TestMonitorShortTracksMaxAndExpires(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	p := newFakeProvider()
	m := newTestMonitor(p, newRecordingStore(), &eventRecorder{}, clock)

	if err := m.Add(ctx, confirmedAt("s2", "LINKUSDT", models.Short, 20, start)); err != nil {
		t.Fatalf("add: %v", err)
	}

	steps := []struct {
		after time.Duration
		price float64
	}{
		{time.Hour, 19.8},
		{24 * time.Hour, 20.1},
		{15*24*time.Hour + time.Minute, 20.05},
	}
	for _, st := range steps {
		clock.Set(start.Add(st.after))
		p.setPrice("LINKUSDT", st.price)
		if err := m.Update(ctx); err != nil {
			t.Fatalf("update: %v", err)
		}
		s, _ := m.Get("s2")
		if s.MaxProfitReached < s.CurrentProfit {
			t.Fatalf("max profit %v below current %v", s.MaxProfitReached, s.CurrentProfit)
		}
		if !approx(s.SimPnL, s.SimCurrentValue-s.SimInvestment) {
			t.Fatalf("sim pnl %v != value %v - investment", s.SimPnL, s.SimCurrentValue)
		}
	}

	s, _ := m.Get("s2")
	if s.MaxLeverage != 75 {
		t.Fatalf("fallback leverage = %d, want 75", s.MaxLeverage)
	}
	// first observation: -1% move short = +1% * 75
	if !approx(s.MaxProfitReached, 75) {
		t.Fatalf("max profit = %v, want 75", s.MaxProfitReached)
	}
	if s.DaysMonitored != 15 || s.Status != models.MonitorExpired {
		t.Fatalf("days=%d status=%s", s.DaysMonitored, s.Status)
	}
	if !approx(s.SimMaxValue, 1000.0/20*20.1) {
		t.Fatalf("sim max value = %v", s.SimMaxValue)
	}
}

func TestMonitorSkipsFailedFetch(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	p := newFakeProvider()
	m := newTestMonitor(p, newRecordingStore(), &eventRecorder{}, clock)
	_ = m.Add(ctx, confirmedAt("a", "OPUSDT", models.Long, 2, clock.Now()))
	_ = m.Add(ctx, confirmedAt("b", "APTUSDT", models.Long, 10, clock.Now()))

	p.setPrice("APTUSDT", 10.1)
	p.priceErr["OPUSDT"] = &errs.TransientFetchError{Op: "ticker", Status: 503}
	if err := m.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	a, _ := m.Get("a")
	b, _ := m.Get("b")
	if len(a.PriceHistory) != 0 || a.SimPositionSize != 0 {
		t.Fatalf("failed fetch still updated signal a")
	}
	if len(b.PriceHistory) != 1 {
		t.Fatalf("signal b not updated")
	}
}

func TestMonitorHistoryBounded(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	p := newFakeProvider()
	m := newTestMonitor(p, newRecordingStore(), &eventRecorder{}, clock)
	_ = m.Add(ctx, confirmedAt("h", "NEARUSDT", models.Long, 5, clock.Now()))

	for i := 0; i < 120; i++ {
		clock.Advance(time.Minute)
		p.setPrice("NEARUSDT", 5+float64(i%3)*0.001)
		_ = m.Update(ctx)
	}
	s, _ := m.Get("h")
	if len(s.PriceHistory) != 100 {
		t.Fatalf("history = %d, want 100", len(s.PriceHistory))
	}
	if !s.PriceHistory[99].Timestamp.Equal(clock.Now()) {
		t.Fatalf("newest point not last")
	}
}

func TestMonitorStatsAndRestore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	p := newFakeProvider()
	store := newRecordingStore()
	m := newTestMonitor(p, store, &eventRecorder{}, clock)
	_ = m.Add(ctx, confirmedAt("x", "BTCUSDT", models.Long, 100, clock.Now()))
	_ = m.Add(ctx, confirmedAt("y", "SOLUSDT", models.Long, 100, clock.Now().Add(time.Minute)))

	p.setPrice("BTCUSDT", 103)
	p.setPrice("SOLUSDT", 99)
	_ = m.Update(ctx)

	st := m.Stats()
	if st.Total != 2 || st.Completed != 1 || st.Active != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.BestSymbol != "BTCUSDT" || st.SuccessRatePct != 100 {
		t.Fatalf("best=%s success=%v", st.BestSymbol, st.SuccessRatePct)
	}

	restored := newTestMonitor(p, store, &eventRecorder{}, clock)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	active := restored.List(models.MonitorActive)
	if len(active) != 1 || active[0].ID != "y" {
		t.Fatalf("restored active = %d", len(active))
	}
}

func TestMonitorSimBalancedBeforeFirstTick(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	p := newFakeProvider()
	store := newRecordingStore()
	m := newTestMonitor(p, store, &eventRecorder{}, clock)

	if err := m.Add(ctx, confirmedAt("n1", "DOGEUSDT", models.Long, 0.2, clock.Now())); err != nil {
		t.Fatalf("add: %v", err)
	}
	p.priceErr["DOGEUSDT"] = &errs.TransientFetchError{Op: "ticker", Status: 503}
	_ = m.Update(ctx)

	list := m.List("")
	if len(list) != 1 {
		t.Fatalf("list = %d signals", len(list))
	}
	s := list[0]
	if s.SimInvestment != 1000 || s.SimCurrentValue != 1000 || s.SimPnL != 0 || s.SimMaxValue != 1000 {
		t.Fatalf("sim = investment %v value %v pnl %v max %v",
			s.SimInvestment, s.SimCurrentValue, s.SimPnL, s.SimMaxValue)
	}
	if !approx(s.SimPnL, s.SimCurrentValue-s.SimInvestment) {
		t.Fatalf("sim pnl %v != value %v - investment %v", s.SimPnL, s.SimCurrentValue, s.SimInvestment)
	}
}
