package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/logger"
)

type MonitorConfig struct {
	UpdateInterval  time.Duration
	MonitoringDays  int
	SimInvestment   float64
	SimTargetValue  float64
	ProfitTargetPct float64
	Workers         int
	HistorySize     int
}

type monitorEntry struct {
	mu  sync.Mutex
	sig *models.MonitoredSignal
}

// Monitor tracks confirmed signals against the leveraged profit target and the simulation.
type Monitor struct {
	mu      sync.RWMutex
	signals map[string]*monitorEntry

	provider repository.MarketDataProvider
	leverage *LeverageResolver
	store    repository.SignalStore
	events   EventSink
	cfg      MonitorConfig
	metrics  repository.Metrics
	now      Clock
	log      *logger.Logger
}

func NewMonitor(provider repository.MarketDataProvider, leverage *LeverageResolver, store repository.SignalStore,
	events EventSink, cfg MonitorConfig, metrics repository.Metrics, log *logger.Logger) *Monitor {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return &Monitor{
		signals:  make(map[string]*monitorEntry),
		provider: provider,
		leverage: leverage,
		store:    store,
		events:   events,
		cfg:      cfg,
		metrics:  metrics,
		now:      time.Now,
		log:      log.Component("monitor"),
	}
}

func (m *Monitor) WithClock(now Clock) *Monitor {
	m.now = now
	return m
}

// Add registers a confirmed signal. Registering the same id twice is a no-op.
func (m *Monitor) Add(ctx context.Context, s models.ConfirmedSignal) error {
	if s.EntryPrice <= 0 {
		return errs.Invalid("entry_price", "must be positive")
	}
	lev, fromVenue := m.leverage.MaxLeverage(ctx, s.Symbol)
	ms := &models.MonitoredSignal{
		ConfirmedSignal: s.Clone(),
		MaxLeverage:     lev,
		CurrentPrice:    s.EntryPrice,
		Status:          models.MonitorActive,
		LastUpdate:      m.now(),
	}
	seedSim(ms, m.cfg.SimInvestment)

	m.mu.Lock()
	if _, ok := m.signals[s.ID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.signals[s.ID] = &monitorEntry{sig: ms}
	m.mu.Unlock()

	m.persist(ctx, ms)
	m.publishGauges()
	m.log.Info("signal monitoring started",
		logger.String("id", s.ID),
		logger.String("symbol", s.Symbol),
		logger.Int("max_leverage", lev),
		logger.Bool("venue_leverage", fromVenue))
	return nil
}

// Restore reloads active signals from the store after a restart.
func (m *Monitor) Restore(ctx context.Context) error {
	list, err := m.store.ListMonitored(ctx, models.MonitorActive)
	if err != nil {
		return fmt.Errorf("restore monitored signals: %w", err)
	}
	m.mu.Lock()
	for _, s := range list {
		if _, ok := m.signals[s.ID]; !ok {
			c := s.Clone()
			if c.SimPositionSize == 0 {
				inv := c.SimInvestment
				if inv == 0 {
					inv = m.cfg.SimInvestment
				}
				seedSim(c, inv)
			}
			m.signals[s.ID] = &monitorEntry{sig: c}
		}
	}
	m.mu.Unlock()
	m.publishGauges()
	m.log.Info("monitored signals restored", logger.Int("signals", len(list)))
	return nil
}

func (m *Monitor) Run(ctx context.Context) {
	runEvery(ctx, m.log, "monitor", m.cfg.UpdateInterval, m.Update)
}

// Update refreshes prices for all active signals. Fetches are bounded by the update
// interval; signals whose price did not arrive are skipped until the next tick.
func (m *Monitor) Update(ctx context.Context) error {
	bySymbol := make(map[string][]*monitorEntry)
	m.mu.RLock()
	for _, e := range m.signals {
		e.mu.Lock()
		active := e.sig.Status == models.MonitorActive
		sym := e.sig.Symbol
		e.mu.Unlock()
		if active {
			bySymbol[sym] = append(bySymbol[sym], e)
		}
	}
	m.mu.RUnlock()
	if len(bySymbol) == 0 {
		m.publishGauges()
		return nil
	}

	budget := ctx
	if m.cfg.UpdateInterval > 0 {
		var cancel context.CancelFunc
		budget, cancel = context.WithTimeout(ctx, m.cfg.UpdateInterval)
		defer cancel()
	}

	var (
		pmu    sync.Mutex
		prices = make(map[string]float64, len(bySymbol))
	)
	g, gctx := errgroup.WithContext(budget)
	g.SetLimit(m.cfg.Workers)
	for sym := range bySymbol {
		sym := sym
		g.Go(func() error {
			t, err := m.provider.GetTicker(gctx, sym)
			if err != nil {
				m.metrics.RecordFetchError("ticker", fetchKind(err))
				m.log.Debug("price fetch failed, skipping", logger.String("symbol", sym), logger.Error(err))
				return nil
			}
			pmu.Lock()
			prices[sym] = t.Price
			pmu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	now := m.now()
	updated := 0
	for sym, entries := range bySymbol {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			continue
		}
		for _, e := range entries {
			e.mu.Lock()
			changed := m.apply(e.sig, price, now)
			snap := e.sig.Clone()
			e.mu.Unlock()

			updated++
			m.persist(ctx, snap)
			if changed {
				m.announce(snap)
			}
		}
	}
	m.publishGauges()
	m.log.Info("monitor pass complete", logger.Int("symbols", len(bySymbol)), logger.Int("updated", updated))
	return nil
}

// apply folds one price observation into s and reports a status transition.
// seedSim values an unpriced simulation at its investment, so simPnL is zero and
// matches simCurrentValue - simInvestment before the first tick.
func seedSim(s *models.MonitoredSignal, investment float64) {
	s.SimInvestment = investment
	s.SimCurrentValue = investment
	s.SimMaxValue = investment
	s.SimPnL = 0
}

func (m *Monitor) apply(s *models.MonitoredSignal, price float64, now time.Time) bool {
	if s.Status != models.MonitorActive {
		return false
	}
	first := s.SimPositionSize == 0

	s.CurrentPrice = price
	s.CurrentPct = (price/s.EntryPrice - 1) * 100 * s.Direction.Sign()
	s.CurrentProfit = s.CurrentPct * float64(s.MaxLeverage)
	if first || s.CurrentProfit > s.MaxProfitReached {
		s.MaxProfitReached = s.CurrentProfit
	}

	if first {
		s.SimPositionSize = s.SimInvestment / s.EntryPrice
	}
	s.SimCurrentValue = s.SimPositionSize * price
	s.SimPnL = s.SimCurrentValue - s.SimInvestment
	if s.SimCurrentValue > s.SimMaxValue {
		s.SimMaxValue = s.SimCurrentValue
	}

	s.PriceHistory = append(s.PriceHistory, models.PricePoint{
		Timestamp: now, Price: price, Pct: s.CurrentPct, Profit: s.CurrentProfit,
	})
	if over := len(s.PriceHistory) - m.cfg.HistorySize; over > 0 {
		s.PriceHistory = append([]models.PricePoint(nil), s.PriceHistory[over:]...)
	}

	s.DaysMonitored = int(math.Floor(now.Sub(s.ConfirmedAt).Hours() / 24))
	s.LastUpdate = now

	switch {
	case s.SimCurrentValue >= m.cfg.SimTargetValue || s.CurrentProfit >= m.cfg.ProfitTargetPct:
		s.Status = models.MonitorCompleted
	case s.DaysMonitored >= m.cfg.MonitoringDays:
		s.Status = models.MonitorExpired
	default:
		return false
	}
	at := now
	s.CompletedAt = &at
	return true
}

func (m *Monitor) announce(s *models.MonitoredSignal) {
	kind := models.EventMonitorCompleted
	if s.Status == models.MonitorExpired {
		kind = models.EventMonitorExpired
	}
	m.events.Dispatch(models.SignalEvent{
		ID:          fmt.Sprintf("%s-%s", s.ID, kind),
		Kind:        kind,
		SignalID:    s.ID,
		Symbol:      s.Symbol,
		Direction:   s.Direction,
		Quality:     s.QualityScore,
		Class:       s.QualityClass,
		EntryPrice:  s.EntryPrice,
		TargetPrice: s.TargetPrice,
		Profit:      s.MaxProfitReached,
		SimValue:    s.SimCurrentValue,
		At:          s.LastUpdate,
	})
	m.log.Info("signal monitoring finished",
		logger.String("id", s.ID),
		logger.String("symbol", s.Symbol),
		logger.String("status", string(s.Status)),
		logger.Float64("max_profit", s.MaxProfitReached),
		logger.Float64("sim_value", s.SimCurrentValue))
}

func (m *Monitor) persist(ctx context.Context, s *models.MonitoredSignal) {
	sctx, cancel := context.WithTimeout(ctx, sideEffectLimit)
	defer cancel()
	if err := m.store.UpsertMonitored(sctx, s); err != nil {
		m.metrics.RecordError("store")
		m.log.Warn("monitored signal persist failed", logger.String("id", s.ID), logger.Error(err))
	}
}

// Get returns a consistent copy of one signal.
func (m *Monitor) Get(id string) (*models.MonitoredSignal, bool) {
	m.mu.RLock()
	e, ok := m.signals[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sig.Clone(), true
}

// List returns copies of signals with the given status, newest confirmation first.
// An empty status lists everything.
func (m *Monitor) List(status models.MonitorStatus) []*models.MonitoredSignal {
	m.mu.RLock()
	entries := make([]*monitorEntry, 0, len(m.signals))
	for _, e := range m.signals {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]*models.MonitoredSignal, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if status == "" || e.sig.Status == status {
			out = append(out, e.sig.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConfirmedAt.Equal(out[j].ConfirmedAt) {
			return out[i].ConfirmedAt.After(out[j].ConfirmedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Monitor) Stats() models.MonitorStats {
	all := m.List("")
	st := models.MonitorStats{Total: len(all), ByClass: make(map[models.QualityClass]int)}
	var sumMax, sumCur float64
	for i, s := range all {
		switch s.Status {
		case models.MonitorActive:
			st.Active++
		case models.MonitorCompleted:
			st.Completed++
		case models.MonitorExpired:
			st.Expired++
		}
		st.ByClass[s.QualityClass]++
		sumMax += s.MaxProfitReached
		sumCur += s.CurrentProfit
		st.TotalSimPnL += s.SimPnL
		if i == 0 || s.MaxProfitReached > st.BestMaxProfit {
			st.BestMaxProfit = s.MaxProfitReached
			st.BestSymbol = s.Symbol
		}
	}
	if st.Total > 0 {
		st.AvgMaxProfit = sumMax / float64(st.Total)
		st.AvgCurrentProfit = sumCur / float64(st.Total)
	}
	if done := st.Completed + st.Expired; done > 0 {
		st.SuccessRatePct = float64(st.Completed) / float64(done) * 100
	}
	return st
}

func (m *Monitor) publishGauges() {
	st := m.Stats()
	m.metrics.SetMonitored(string(models.MonitorActive), st.Active)
	m.metrics.SetMonitored(string(models.MonitorCompleted), st.Completed)
	m.metrics.SetMonitored(string(models.MonitorExpired), st.Expired)
}
