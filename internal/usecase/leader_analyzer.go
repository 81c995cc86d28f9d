package usecase

import (
	"context"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/service/cache"
	"SignalFlow/internal/services/indicators"
	"SignalFlow/pkg/logger"
)

const (
	leaderAnalysisTTL    = 5 * time.Minute
	leaderCorrelationTTL = time.Hour
	leaderKlinesLimit    = 100
	correlationMinSample = 10
	correlationMaxSample = 100

	// UnknownCorrelation is reported when there is not enough aligned data.
	UnknownCorrelation = 0.5
)

// LeaderAnalysis is the consolidated multi-timeframe view of the leader.
type LeaderAnalysis struct {
	Symbol          string                  `json:"symbol"`
	Trend           models.Trend            `json:"trend"`
	Strength        float64                 `json:"strength"`
	Momentum        models.Trend            `json:"momentum"`
	MomentumAligned bool                    `json:"momentum_aligned"`
	VolatilityPct   float64                 `json:"volatility_pct"`
	H4              indicators.TrendReading `json:"h4"`
	H1              indicators.TrendReading `json:"h1"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

type correlation struct {
	value float64
	known bool
}

// MarketLeaderAnalyzer produces the leader view and symbol-to-leader correlations.
type MarketLeaderAnalyzer struct {
	market *MarketData
	leader string
	latest *cache.TTLCache[LeaderAnalysis]
	corr   *cache.TTLCache[correlation]
	now    Clock
	log    *logger.Logger
}

func NewMarketLeaderAnalyzer(market *MarketData, leader string, log *logger.Logger) *MarketLeaderAnalyzer {
	if leader == "" {
		leader = "BTCUSDT"
	}
	return &MarketLeaderAnalyzer{
		market: market,
		leader: leader,
		latest: cache.NewTTLCache[LeaderAnalysis](),
		corr:   cache.NewTTLCache[correlation](),
		now:    time.Now,
		log:    log.Component("leader"),
	}
}

func (a *MarketLeaderAnalyzer) WithClock(now Clock) *MarketLeaderAnalyzer {
	a.now = now
	a.latest.WithClock(now)
	a.corr.WithClock(now)
	return a
}

func (a *MarketLeaderAnalyzer) Symbol() string { return a.leader }

// Analyze returns the cached consolidated analysis, recomputing it after five minutes.
func (a *MarketLeaderAnalyzer) Analyze(ctx context.Context) (LeaderAnalysis, error) {
	if v, ok := a.latest.Get(a.leader); ok {
		return v, nil
	}

	h4k, err := a.market.KlinesAtLeast(ctx, a.leader, models.Interval4h, leaderKlinesLimit, indicators.EMASlow)
	if err != nil {
		return LeaderAnalysis{}, err
	}
	h1k, err := a.market.KlinesAtLeast(ctx, a.leader, models.Interval1h, leaderKlinesLimit, indicators.EMASlow)
	if err != nil {
		return LeaderAnalysis{}, err
	}

	res := Consolidate(indicators.AnalyzeTrend(h4k), indicators.AnalyzeTrend(h1k))
	res.Symbol = a.leader
	res.UpdatedAt = a.now()
	a.latest.Set(a.leader, res, leaderAnalysisTTL)
	a.log.Debug("leader analysis refreshed",
		logger.String("trend", string(res.Trend)), logger.Float64("strength", res.Strength))
	return res, nil
}

// Consolidate weighs the 4h reading 0.7 and the 1h reading 0.3. The trend needs
// a weighted vote of at least 0.5; the 1h reading is the momentum.
func Consolidate(h4, h1 indicators.TrendReading) LeaderAnalysis {
	vote := 0.7*trendSign(h4.Trend) + 0.3*trendSign(h1.Trend)
	trend := models.Neutral
	switch {
	case vote >= 0.5:
		trend = models.Bullish
	case vote <= -0.5:
		trend = models.Bearish
	}
	return LeaderAnalysis{
		Trend:           trend,
		Strength:        0.7*h4.Strength + 0.3*h1.Strength,
		Momentum:        h1.Trend,
		MomentumAligned: trend != models.Neutral && h1.Trend == trend,
		VolatilityPct:   (h4.ATRPct + h1.ATRPct) / 2,
		H4:              h4,
		H1:              h1,
	}
}

func trendSign(t models.Trend) float64 {
	switch t {
	case models.Bullish:
		return 1
	case models.Bearish:
		return -1
	default:
		return 0
	}
}

// Correlation returns the Pearson correlation of 1h returns against the leader.
// known is false when the value is the 0.5 placeholder.
func (a *MarketLeaderAnalyzer) Correlation(ctx context.Context, symbol string) (float64, bool, error) {
	if symbol == a.leader {
		return 1, true, nil
	}
	if c, ok := a.corr.Get(symbol); ok {
		return c.value, c.known, nil
	}

	lk, err := a.market.Klines(ctx, a.leader, models.Interval1h, leaderKlinesLimit)
	if err != nil {
		return UnknownCorrelation, false, err
	}
	sk, err := a.market.Klines(ctx, symbol, models.Interval1h, leaderKlinesLimit)
	if err != nil {
		return UnknownCorrelation, false, err
	}

	value, known := CorrelateKlines(sk, lk)
	a.corr.Set(symbol, correlation{value: value, known: known}, leaderCorrelationTTL)
	return value, known, nil
}

// CorrelateKlines aligns two series on open time and correlates their returns over
// the most recent samples.
func CorrelateKlines(a, b models.Klines) (float64, bool) {
	idx := make(map[int64]float64, len(b))
	for _, k := range b {
		idx[k.OpenTime.UnixMilli()] = k.Close
	}
	var ca, cb []float64
	for _, k := range a {
		if c, ok := idx[k.OpenTime.UnixMilli()]; ok {
			ca = append(ca, k.Close)
			cb = append(cb, c)
		}
	}

	ra, rb := indicators.PctReturns(ca), indicators.PctReturns(cb)
	if len(ra) > correlationMaxSample {
		ra = ra[len(ra)-correlationMaxSample:]
		rb = rb[len(rb)-correlationMaxSample:]
	}
	if len(ra) < correlationMinSample {
		return UnknownCorrelation, false
	}
	r, ok := indicators.Pearson(ra, rb)
	if !ok {
		return UnknownCorrelation, false
	}
	return r, true
}
