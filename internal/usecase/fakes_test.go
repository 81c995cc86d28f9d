package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/service/cache"
	pkgcache "SignalFlow/pkg/cache"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeProvider struct {
	mu        sync.Mutex
	info      *models.ExchangeInfo
	brackets  map[string][]models.LeverageBracket
	tickers   map[string]models.Ticker24h
	klines    map[string]models.Klines
	prices    map[string]float64
	klinesErr map[string]error
	priceErr  map[string]error
	calls     map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		info:      &models.ExchangeInfo{},
		tickers:   make(map[string]models.Ticker24h),
		klines:    make(map[string]models.Klines),
		prices:    make(map[string]float64),
		klinesErr: make(map[string]error),
		priceErr:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func klinesKeyOf(symbol string, interval models.Interval) string {
	return symbol + "|" + string(interval)
}

func (p *fakeProvider) setKlines(symbol string, interval models.Interval, k models.Klines) {
	p.mu.Lock()
	p.klines[klinesKeyOf(symbol, interval)] = k
	p.mu.Unlock()
}

func (p *fakeProvider) setPrice(symbol string, price float64) {
	p.mu.Lock()
	p.prices[symbol] = price
	p.mu.Unlock()
}

func (p *fakeProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakeProvider) GetExchangeInfo(ctx context.Context) (*models.ExchangeInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["exchangeInfo"]++
	return p.info, nil
}

func (p *fakeProvider) GetLeverageBrackets(ctx context.Context, symbol string) (map[string][]models.LeverageBracket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["brackets"]++
	if p.brackets == nil {
		return nil, errs.Invalid("credentials", "not configured")
	}
	if symbol == "" {
		return p.brackets, nil
	}
	b, ok := p.brackets[symbol]
	if !ok {
		return nil, errs.Invalid("symbol", "unknown")
	}
	return map[string][]models.LeverageBracket{symbol: b}, nil
}

func (p *fakeProvider) Get24hTickers(ctx context.Context, symbols []string) (map[string]models.Ticker24h, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["tickers"]++
	out := make(map[string]models.Ticker24h)
	if len(symbols) == 0 {
		for k, v := range p.tickers {
			out[k] = v
		}
		return out, nil
	}
	for _, s := range symbols {
		if t, ok := p.tickers[s]; ok {
			out[s] = t
		} else {
			out[s] = models.Ticker24h{Symbol: s}
		}
	}
	return out, nil
}

func (p *fakeProvider) GetKlines(ctx context.Context, symbol string, interval models.Interval, limit int) (models.Klines, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["klines"]++
	key := klinesKeyOf(symbol, interval)
	if err := p.klinesErr[key]; err != nil {
		return nil, err
	}
	k, ok := p.klines[key]
	if !ok {
		return nil, fmt.Errorf("no klines for %s", key)
	}
	if limit > 0 && len(k) > limit {
		k = k[len(k)-limit:]
	}
	return k.Clone(), nil
}

func (p *fakeProvider) GetTicker(ctx context.Context, symbol string) (models.PriceTicker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["ticker"]++
	if err := p.priceErr[symbol]; err != nil {
		return models.PriceTicker{}, err
	}
	price, ok := p.prices[symbol]
	if !ok {
		return models.PriceTicker{}, &errs.TransientFetchError{Op: "ticker", Err: fmt.Errorf("no price")}
	}
	return models.PriceTicker{Symbol: symbol, Price: price}, nil
}

// recordingStore is an in-process SignalStore that keeps every write.
type recordingStore struct {
	mu        sync.Mutex
	signals   map[string]models.SignalRecord
	monitored map[string]*models.MonitoredSignal
	deletes   []models.TimeField
	fail      error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		signals:   make(map[string]models.SignalRecord),
		monitored: make(map[string]*models.MonitoredSignal),
	}
}

func (s *recordingStore) Init(ctx context.Context) error { return nil }
func (s *recordingStore) Close() error                   { return nil }

func (s *recordingStore) InsertSignal(ctx context.Context, rec models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.signals[rec.ID] = rec
	return nil
}

func (s *recordingStore) DeleteSignal(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signals, id)
	return nil
}

func (s *recordingStore) ListSignals(ctx context.Context, f models.SignalFilter) ([]models.SignalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	want := make(map[models.SignalStatus]bool)
	for _, st := range f.Statuses {
		want[st] = true
	}
	var out []models.SignalRecord
	for _, r := range s.signals {
		if len(want) == 0 || want[r.Status] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *recordingStore) DeleteSignalsBefore(ctx context.Context, statuses []models.SignalStatus, field models.TimeField, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, field)
	want := make(map[models.SignalStatus]bool)
	for _, st := range statuses {
		want[st] = true
	}
	var n int64
	for id, r := range s.signals {
		if !want[r.Status] {
			continue
		}
		ts := r.CreatedAt
		if field == models.FieldConfirmedAt {
			if r.ConfirmedAt == nil {
				continue
			}
			ts = *r.ConfirmedAt
		}
		if ts.Before(before) {
			delete(s.signals, id)
			n++
		}
	}
	return n, nil
}

func (s *recordingStore) UpsertMonitored(ctx context.Context, m *models.MonitoredSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitored[m.ID] = m.Clone()
	return nil
}

func (s *recordingStore) ListMonitored(ctx context.Context, status models.MonitorStatus) ([]*models.MonitoredSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.MonitoredSignal
	for _, m := range s.monitored {
		if status == "" || m.Status == status {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (s *recordingStore) get(id string) (models.SignalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.signals[id]
	return r, ok
}

type nopHistory struct {
	mu    sync.Mutex
	evals int
	decs  int
}

func (h *nopHistory) RecordEvaluation(ctx context.Context, c *models.Candidate, rec models.EvaluationRecord) error {
	h.mu.Lock()
	h.evals++
	h.mu.Unlock()
	return nil
}

func (h *nopHistory) RecordDecision(ctx context.Context, c *models.Candidate) error {
	h.mu.Lock()
	h.decs++
	h.mu.Unlock()
	return nil
}

func (h *nopHistory) Purge(ctx context.Context, before time.Time) error { return nil }
func (h *nopHistory) Close() error                                      { return nil }

type eventRecorder struct {
	mu     sync.Mutex
	events []models.SignalEvent
}

func (r *eventRecorder) Dispatch(ev models.SignalEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type confirmedRecorder struct {
	mu      sync.Mutex
	signals []models.ConfirmedSignal
}

func (r *confirmedRecorder) Add(ctx context.Context, s models.ConfirmedSignal) error {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
	return nil
}

type fakeLeader struct {
	analysis LeaderAnalysis
	err      error
	corr     float64
	known    bool
}

func (f *fakeLeader) Analyze(ctx context.Context) (LeaderAnalysis, error) { return f.analysis, f.err }

func (f *fakeLeader) Correlation(ctx context.Context, symbol string) (float64, bool, error) {
	return f.corr, f.known, nil
}

type memGuardStore struct {
	mu        sync.Mutex
	days      map[string][]models.DailyKey
	lastReset string
}

func newMemGuardStore() *memGuardStore {
	return &memGuardStore{days: make(map[string][]models.DailyKey)}
}

func (s *memGuardStore) LoadDaily(ctx context.Context, date string) ([]models.DailyKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DailyKey(nil), s.days[date]...), nil
}

func (s *memGuardStore) SaveDaily(ctx context.Context, date string, keys []models.DailyKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[date] = append([]models.DailyKey(nil), keys...)
	return nil
}

func (s *memGuardStore) LoadResetDate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReset, nil
}

func (s *memGuardStore) SaveResetDate(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReset = date
	return nil
}

func newTestMarket(p *fakeProvider) *MarketData {
	return NewMarketData(p, cache.NewKlinesCache(metrics.Nop{}, logger.Nop()))
}

func newTestLeverage(p *fakeProvider) *LeverageResolver {
	return NewLeverageResolver(p, pkgcache.NewMemoryCache(), LeverageTiers{
		Major:   []string{"BTCUSDT", "ETHUSDT"},
		HighCap: []string{"SOLUSDT"},
		MidCap:  []string{"LINKUSDT"},
	}, logger.Nop())
}

// series builds hourly klines from closes with a constant volume.
func series(start time.Time, step time.Duration, closes []float64, volume float64) models.Klines {
	out := make(models.Klines, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = models.Kline{
			OpenTime: start.Add(time.Duration(i) * step),
			Open:     open,
			High:     maxf(open, c) * 1.001,
			Low:      minf(open, c) * 0.999,
			Close:    c,
			Volume:   volume,
		}
	}
	return out
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
