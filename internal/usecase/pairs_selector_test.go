package usecase

import (
	"context"
	"reflect"
	"testing"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/pkg/logger"
)

func pairsProvider() *fakeProvider {
	p := newFakeProvider()
	perp := func(sym, quote string) models.SymbolInfo {
		return models.SymbolInfo{Symbol: sym, Status: models.SymbolStatusTrading, ContractType: models.ContractTypePerpetual, QuoteAsset: quote}
	}
	p.info = &models.ExchangeInfo{Symbols: []models.SymbolInfo{
		perp("BTCUSDT", "USDT"),
		perp("ETHUSDT", "USDT"),
		perp("SOLUSDT", "USDT"),
		perp("ZZZUSDT", "USDT"),
		perp("AAAUSDT", "USDT"),
		perp("LOWLEVUSDT", "USDT"),
		perp("ETHBTC", "BTC"),
		{Symbol: "OLDUSDT", Status: "SETTLING", ContractType: models.ContractTypePerpetual, QuoteAsset: "USDT"},
		{Symbol: "BTCUSDT_260626", Status: models.SymbolStatusTrading, ContractType: "CURRENT_QUARTER", QuoteAsset: "USDT"},
	}}
	p.tickers = map[string]models.Ticker24h{
		"BTCUSDT":        {Symbol: "BTCUSDT", Volume: 1e9, PriceChangePct: 2},
		"ETHUSDT":        {Symbol: "ETHUSDT", Volume: 5e8, PriceChangePct: -5},
		"SOLUSDT":        {Symbol: "SOLUSDT", Volume: 1e8, PriceChangePct: 10},
		"ZZZUSDT":        {Symbol: "ZZZUSDT", Volume: 1e6, PriceChangePct: 1},
		"AAAUSDT":        {Symbol: "AAAUSDT", Volume: 1e6, PriceChangePct: -1},
		"LOWLEVUSDT":     {Symbol: "LOWLEVUSDT", Volume: 1e10, PriceChangePct: 0},
		"ETHBTC":         {Symbol: "ETHBTC", Volume: 1e12, PriceChangePct: 0},
		"OLDUSDT":        {Symbol: "OLDUSDT", Volume: 1e12, PriceChangePct: 0},
		"BTCUSDT_260626": {Symbol: "BTCUSDT_260626", Volume: 1e12, PriceChangePct: 0},
	}
	lev := func(n int) []models.LeverageBracket { return []models.LeverageBracket{{Bracket: 1, InitialLeverage: n}} }
	p.brackets = map[string][]models.LeverageBracket{
		"BTCUSDT": lev(125), "ETHUSDT": lev(100), "SOLUSDT": lev(50),
		"ZZZUSDT": lev(75), "AAAUSDT": lev(75), "LOWLEVUSDT": lev(20),
	}
	return p
}

func TestPairsSelectorRanksAndFilters(t *testing.T) {
	p := pairsProvider()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	s := NewPairsSelector(p, newTestLeverage(p), PairsConfig{
		MaxPairs: 100, MinLeverage: 50, QuoteAsset: "USDT", Refresh: 20 * time.Minute,
	}, logger.Nop()).WithClock(clock.Now)

	got, err := s.Top(context.Background(), 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []string{"SOLUSDT", "ETHUSDT", "BTCUSDT", "AAAUSDT", "ZZZUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("top = %v, want %v", got, want)
	}

	top2, _ := s.Top(context.Background(), 2)
	if !reflect.DeepEqual(top2, want[:2]) {
		t.Fatalf("top2 = %v", top2)
	}
	if n := p.count("exchangeInfo"); n != 1 {
		t.Fatalf("exchange info calls = %d, want 1 while fresh", n)
	}

	clock.Advance(20 * time.Minute)
	if _, err := s.Top(context.Background(), 2); err != nil {
		t.Fatalf("top after refresh interval: %v", err)
	}
	if n := p.count("exchangeInfo"); n != 2 {
		t.Fatalf("exchange info calls = %d, want 2 after refresh interval", n)
	}
	if lev := s.Universe().Scores[0].MaxLeverage; lev != 50 {
		t.Fatalf("SOLUSDT leverage = %d", lev)
	}
}

func TestPairsSelectorFallbackLeverage(t *testing.T) {
	p := pairsProvider()
	p.brackets = nil
	s := NewPairsSelector(p, newTestLeverage(p), PairsConfig{
		MaxPairs: 3, MinLeverage: 50, QuoteAsset: "USDT", Refresh: time.Minute,
	}, logger.Nop())

	got, err := s.Top(context.Background(), 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	// without brackets every pair gets at least the default tier of 50
	want := []string{"SOLUSDT", "ETHUSDT", "LOWLEVUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("top = %v, want %v", got, want)
	}
}

func TestPairScore(t *testing.T) {
	if a, b := PairScore(1e6, 1), PairScore(1e6, -1); a != b {
		t.Fatalf("score must use absolute change: %v vs %v", a, b)
	}
	if got := PairScore(9, 0); got != 0.7 {
		t.Fatalf("PairScore(9, 0) = %v, want 0.7", got)
	}
}
