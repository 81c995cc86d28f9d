package usecase

import (
	"context"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	pkgcache "SignalFlow/pkg/cache"
	"SignalFlow/pkg/logger"
)

const (
	leverageCacheTTL  = time.Hour
	leverageMajor     = 125
	leverageHighCap   = 100
	leverageMidCap    = 75
	leverageDefault   = 50
	leverageKeyPrefix = "leverage"
)

// LeverageTiers lists the curated coin groups used when brackets are unavailable.
type LeverageTiers struct {
	Major   []string
	HighCap []string
	MidCap  []string
}

// LeverageResolver returns a symbol's maximum initial leverage, cached for an hour.
type LeverageResolver struct {
	provider repository.MarketDataProvider
	cache    pkgcache.Service
	tiers    map[string]int
	log      *logger.Logger
}

func NewLeverageResolver(provider repository.MarketDataProvider, cache pkgcache.Service, tiers LeverageTiers, log *logger.Logger) *LeverageResolver {
	m := make(map[string]int)
	for _, s := range tiers.MidCap {
		m[s] = leverageMidCap
	}
	for _, s := range tiers.HighCap {
		m[s] = leverageHighCap
	}
	for _, s := range tiers.Major {
		m[s] = leverageMajor
	}
	return &LeverageResolver{provider: provider, cache: cache, tiers: m, log: log.Component("leverage")}
}

// Fallback is the conservative tier value for a symbol.
func (r *LeverageResolver) Fallback(symbol string) int {
	if v, ok := r.tiers[symbol]; ok {
		return v
	}
	return leverageDefault
}

// MaxLeverage returns the venue leverage and whether it came from the venue (false means fallback).
func (r *LeverageResolver) MaxLeverage(ctx context.Context, symbol string) (int, bool) {
	key := pkgcache.GenerateKey(leverageKeyPrefix, symbol)
	var cached int
	if err := r.cache.Get(ctx, key, &cached); err == nil && cached > 0 {
		return cached, true
	}

	brackets, err := r.provider.GetLeverageBrackets(ctx, symbol)
	if err != nil {
		r.log.Debug("leverage brackets unavailable, using tier fallback",
			logger.String("symbol", symbol), logger.Error(err))
		return r.Fallback(symbol), false
	}
	lev := models.MaxLeverage(brackets[symbol])
	if lev <= 0 {
		return r.Fallback(symbol), false
	}
	if err := r.cache.Set(ctx, key, lev, leverageCacheTTL); err != nil {
		r.log.Warn("leverage cache write failed", logger.String("symbol", symbol), logger.Error(err))
	}
	return lev, true
}

// All returns leverage for every symbol the venue reports, warming the cache.
// On provider failure it returns nil and the caller applies Fallback per symbol.
func (r *LeverageResolver) All(ctx context.Context) map[string]int {
	brackets, err := r.provider.GetLeverageBrackets(ctx, "")
	if err != nil {
		r.log.Debug("bulk leverage brackets unavailable", logger.Error(err))
		return nil
	}
	out := make(map[string]int, len(brackets))
	for sym, b := range brackets {
		lev := models.MaxLeverage(b)
		if lev <= 0 {
			continue
		}
		out[sym] = lev
		_ = r.cache.Set(ctx, pkgcache.GenerateKey(leverageKeyPrefix, sym), lev, leverageCacheTTL)
	}
	return out
}
