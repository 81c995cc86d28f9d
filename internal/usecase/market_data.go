package usecase

import (
	"context"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/internal/service/cache"
)

// MarketData fronts the provider with the klines cache.
type MarketData struct {
	provider repository.MarketDataProvider
	cache    *cache.KlinesCache
}

func NewMarketData(provider repository.MarketDataProvider, klines *cache.KlinesCache) *MarketData {
	return &MarketData{provider: provider, cache: klines}
}

func (m *MarketData) Provider() repository.MarketDataProvider { return m.provider }

// Klines returns cached or freshly fetched klines.
func (m *MarketData) Klines(ctx context.Context, symbol string, interval models.Interval, limit int) (models.Klines, error) {
	return m.cache.GetOrLoad(ctx, symbol, interval, limit, func(ctx context.Context) (models.Klines, error) {
		return m.provider.GetKlines(ctx, symbol, interval, limit)
	})
}

// KlinesAtLeast fetches klines and fails with DataInsufficientError below min rows.
func (m *MarketData) KlinesAtLeast(ctx context.Context, symbol string, interval models.Interval, limit, min int) (models.Klines, error) {
	k, err := m.Klines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if len(k) < min {
		return nil, &errs.DataInsufficientError{Symbol: symbol, Interval: string(interval), Have: len(k), Need: min}
	}
	return k, nil
}
