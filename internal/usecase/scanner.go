package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/internal/services/indicators"
	"SignalFlow/internal/services/scoring"
	"SignalFlow/pkg/logger"
)

const (
	scanKlinesLimit = 100
	scanMinRows     = 50
)

// UniverseSource supplies the symbols to scan.
type UniverseSource interface {
	Top(ctx context.Context, n int) ([]string, error)
}

// LeaderSource supplies the leader view and correlations.
type LeaderSource interface {
	Analyze(ctx context.Context) (LeaderAnalysis, error)
	Correlation(ctx context.Context, symbol string) (float64, bool, error)
}

// CandidateSink receives generated candidates.
type CandidateSink interface {
	Accept(ctx context.Context, c *models.Candidate) (*models.Candidate, error)
}

type ScannerConfig struct {
	Interval         time.Duration
	Workers          int
	MaxPairs         int
	QualityThreshold float64
}

// Scanner evaluates the pair universe on a fixed cadence and hands candidates on.
type Scanner struct {
	pairs   UniverseSource
	market  *MarketData
	leader  LeaderSource
	sink    CandidateSink
	cfg     ScannerConfig
	metrics repository.Metrics
	now     Clock
	log     *logger.Logger
}

func NewScanner(pairs UniverseSource, market *MarketData, leader LeaderSource, sink CandidateSink,
	cfg ScannerConfig, metrics repository.Metrics, log *logger.Logger) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	return &Scanner{
		pairs:   pairs,
		market:  market,
		leader:  leader,
		sink:    sink,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		log:     log.Component("scanner"),
	}
}

func (s *Scanner) WithClock(now Clock) *Scanner {
	s.now = now
	return s
}

// Run scans until ctx is done.
func (s *Scanner) Run(ctx context.Context) {
	runEvery(ctx, s.log, "scanner", s.cfg.Interval, func(ctx context.Context) error {
		_, err := s.Scan(ctx)
		return err
	})
}

// Scan runs one pass and returns the candidates handed to the sink.
func (s *Scanner) Scan(ctx context.Context) ([]*models.Candidate, error) {
	start := time.Now()
	symbols, err := s.pairs.Top(ctx, s.cfg.MaxPairs)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	var leader *LeaderAnalysis
	if la, err := s.leader.Analyze(ctx); err != nil {
		s.log.Warn("leader analysis unavailable", logger.Error(err))
	} else {
		leader = &la
	}

	jobs := make(chan string)
	var (
		mu      sync.Mutex
		results []*models.Candidate
		wg      sync.WaitGroup
	)
	workers := s.cfg.Workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				c, err := s.evaluateSafe(ctx, sym, leader)
				if err != nil {
					s.logSkip(sym, err)
					continue
				}
				if c == nil {
					continue
				}
				accepted, err := s.sink.Accept(ctx, c)
				if err != nil {
					s.log.Debug("candidate not accepted", logger.String("symbol", sym), logger.Error(err))
					continue
				}
				mu.Lock()
				results = append(results, accepted)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, sym := range symbols {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- sym:
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	s.metrics.RecordScanPass(elapsed, len(symbols), len(results))
	s.log.Info("scan pass complete",
		logger.Int("symbols", len(symbols)),
		logger.Int("candidates", len(results)),
		logger.Duration("duration_ms", elapsed))
	return results, ctx.Err()
}

func (s *Scanner) evaluateSafe(ctx context.Context, symbol string, leader *LeaderAnalysis) (c *models.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Invariant("scanner", "panic evaluating %s: %v", symbol, r)
		}
	}()
	return s.Evaluate(ctx, symbol, leader)
}

func (s *Scanner) logSkip(symbol string, err error) {
	switch {
	case errs.IsDataInsufficient(err), errs.IsValidation(err):
		s.log.Debug("symbol skipped", logger.String("symbol", symbol), logger.Error(err))
	case errs.IsTransient(err):
		s.metrics.RecordFetchError("klines", "transient")
		s.log.Warn("symbol fetch failed", logger.String("symbol", symbol), logger.Error(err))
	default:
		s.metrics.RecordError("scan")
		s.log.Error("symbol evaluation failed", logger.String("symbol", symbol), logger.Error(err))
	}
}

// Evaluate analyzes one symbol. It returns nil without error when the quality is below threshold.
func (s *Scanner) Evaluate(ctx context.Context, symbol string, leader *LeaderAnalysis) (*models.Candidate, error) {
	h4, err := s.market.KlinesAtLeast(ctx, symbol, models.Interval4h, scanKlinesLimit, scanMinRows)
	if err != nil {
		return nil, err
	}
	trend := indicators.AnalyzeTrend(h4)

	h1, err := s.market.KlinesAtLeast(ctx, symbol, models.Interval1h, scanKlinesLimit, scanMinRows)
	if err != nil {
		return nil, err
	}
	entry := scoring.AnalyzeEntry(h1)

	dir := models.Short
	if trend.Trend == models.Bullish {
		dir = models.Long
	}

	res := scoring.Score(dir, trend, entry)
	class, ok := models.ClassifyQuality(res.Quality, s.cfg.QualityThreshold)
	if !ok {
		return nil, nil
	}

	entryPrice := entry.Close
	target, projection := scoring.TargetPrice(dir, entryPrice, entry.ATR, entry.Close, trend.Normalized(), res.Quality)

	c := &models.Candidate{
		Symbol:        symbol,
		Direction:     dir,
		EntryPrice:    entryPrice,
		TargetPrice:   target,
		ProjectionPct: projection,
		QualityScore:  res.Quality,
		QualityClass:  class,
		LeaderTrend:   models.Neutral,
		GenerationReasons: models.GenerationReasons{
			Scores:          res.Scores,
			Trend4h:         trend.Trend,
			TrendStrength:   trend.Strength,
			EMA20:           entry.EMA20,
			EMA50:           entry.EMA50,
			RSI:             entry.RSI,
			ATR:             entry.ATR,
			MACDHist:        trend.MACD.Hist,
			PriceChange3Pct: entry.PriceChange3Pct,
			VolumeRatio:     entry.VolumeRatio,
			LevelDistPct:    res.LevelDistPct,
			CandlePattern:   res.Pattern,
			Triggers:        res.Triggers,
		},
	}
	if leader != nil {
		c.LeaderTrend = leader.Trend
	}

	corr, known, err := s.leader.Correlation(ctx, symbol)
	if err != nil {
		s.log.Debug("correlation unavailable", logger.String("symbol", symbol), logger.Error(err))
	}
	c.LeaderCorrelation, c.CorrelationKnown = corr, known
	if err != nil {
		c.LeaderCorrelation, c.CorrelationKnown = UnknownCorrelation, false
	}
	return c, nil
}
