package usecase

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/logger"
)

type PairsConfig struct {
	MaxPairs    int
	MinLeverage int
	QuoteAsset  string
	Refresh     time.Duration
}

// PairsSelector maintains the ranked trading universe.
type PairsSelector struct {
	provider repository.MarketDataProvider
	leverage *LeverageResolver
	cfg      PairsConfig
	now      Clock
	log      *logger.Logger

	mu       sync.RWMutex
	universe models.PairUniverse
	group    singleflight.Group
}

func NewPairsSelector(provider repository.MarketDataProvider, leverage *LeverageResolver, cfg PairsConfig, log *logger.Logger) *PairsSelector {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &PairsSelector{
		provider: provider,
		leverage: leverage,
		cfg:      cfg,
		now:      time.Now,
		log:      log.Component("pairs"),
	}
}

func (s *PairsSelector) WithClock(now Clock) *PairsSelector {
	s.now = now
	return s
}

// Top returns the first n symbols of the universe, refreshing it when stale.
// A failed refresh keeps serving the previous universe when there is one.
func (s *PairsSelector) Top(ctx context.Context, n int) ([]string, error) {
	s.mu.RLock()
	u := s.universe
	s.mu.RUnlock()

	if len(u.Symbols) == 0 || s.now().Sub(time.UnixMilli(u.RefreshedAt)) >= s.cfg.Refresh {
		if err := s.Refresh(ctx); err != nil {
			if len(u.Symbols) == 0 {
				return nil, err
			}
			s.log.Warn("pairs refresh failed, serving previous universe", logger.Error(err))
		}
		s.mu.RLock()
		u = s.universe
		s.mu.RUnlock()
	}

	if n <= 0 || n > len(u.Symbols) {
		n = len(u.Symbols)
	}
	return append([]string(nil), u.Symbols[:n]...), nil
}

// Universe returns a copy of the last computed universe.
func (s *PairsSelector) Universe() models.PairUniverse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.PairUniverse{
		Symbols:     append([]string(nil), s.universe.Symbols...),
		Scores:      append([]models.PairScore(nil), s.universe.Scores...),
		RefreshedAt: s.universe.RefreshedAt,
	}
}

// Refresh recomputes the universe. Concurrent callers share one computation.
func (s *PairsSelector) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		u, err := s.compute(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.universe = u
		s.mu.Unlock()
		s.log.Info("pairs universe refreshed", logger.Int("pairs", len(u.Symbols)))
		return nil, nil
	})
	return err
}

func (s *PairsSelector) compute(ctx context.Context) (models.PairUniverse, error) {
	info, err := s.provider.GetExchangeInfo(ctx)
	if err != nil {
		return models.PairUniverse{}, err
	}

	var eligible []string
	for _, si := range info.Symbols {
		if si.Status != models.SymbolStatusTrading || si.ContractType != models.ContractTypePerpetual {
			continue
		}
		if si.QuoteAsset != "" {
			if si.QuoteAsset != s.cfg.QuoteAsset {
				continue
			}
		} else if !strings.HasSuffix(si.Symbol, s.cfg.QuoteAsset) {
			continue
		}
		eligible = append(eligible, si.Symbol)
	}

	tickers, err := s.provider.Get24hTickers(ctx, eligible)
	if err != nil {
		return models.PairUniverse{}, err
	}

	levs := s.leverage.All(ctx)
	scores := make([]models.PairScore, 0, len(eligible))
	for _, sym := range eligible {
		t, ok := tickers[sym]
		if !ok {
			continue
		}
		lev, ok := levs[sym]
		if !ok {
			lev = s.leverage.Fallback(sym)
		}
		if lev < s.cfg.MinLeverage {
			continue
		}
		scores = append(scores, models.PairScore{
			Symbol:         sym,
			Score:          PairScore(t.Volume, t.PriceChangePct),
			Volume:         t.Volume,
			PriceChangePct: t.PriceChangePct,
			MaxLeverage:    lev,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Symbol < scores[j].Symbol
	})
	if s.cfg.MaxPairs > 0 && len(scores) > s.cfg.MaxPairs {
		scores = scores[:s.cfg.MaxPairs]
	}

	symbols := make([]string, len(scores))
	for i := range scores {
		symbols[i] = scores[i].Symbol
	}
	return models.PairUniverse{Symbols: symbols, Scores: scores, RefreshedAt: s.now().UnixMilli()}, nil
}

// PairScore ranks a pair by liquidity and recent movement.
func PairScore(quoteVolume, priceChangePct float64) float64 {
	if quoteVolume < 0 {
		quoteVolume = 0
	}
	return 0.7*math.Log10(quoteVolume+1) + 0.3*math.Abs(priceChangePct)
}
