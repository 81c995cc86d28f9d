package models

// SymbolInfo is one entry of the venue's exchange info.
type SymbolInfo struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	ContractType string `json:"contractType"`
	QuoteAsset   string `json:"quoteAsset"`
}

type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

const (
	SymbolStatusTrading   = "TRADING"
	ContractTypePerpetual = "PERPETUAL"
)

// LeverageBracket is one notional tier of a symbol's leverage schedule.
type LeverageBracket struct {
	Bracket         int     `json:"bracket"`
	InitialLeverage int     `json:"initialLeverage"`
	NotionalCap     float64 `json:"notionalCap"`
	NotionalFloor   float64 `json:"notionalFloor"`
}

// MaxLeverage returns the highest initial leverage across brackets, 0 when empty.
func MaxLeverage(brackets []LeverageBracket) int {
	max := 0
	for _, b := range brackets {
		if b.InitialLeverage > max {
			max = b.InitialLeverage
		}
	}
	return max
}

// Ticker24h is the rolling 24h statistics of a symbol. Volume is the quote notional.
type Ticker24h struct {
	Symbol         string  `json:"symbol"`
	Volume         float64 `json:"volume"`
	PriceChangePct float64 `json:"priceChangePercent"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	LastPrice      float64 `json:"lastPrice"`
}

type PriceTicker struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// PairUniverse is the ranked trading universe with its refresh instant.
type PairUniverse struct {
	Symbols     []string    `json:"symbols"`
	Scores      []PairScore `json:"scores"`
	RefreshedAt int64       `json:"refreshed_at"`
}

type PairScore struct {
	Symbol         string  `json:"symbol"`
	Score          float64 `json:"score"`
	Volume         float64 `json:"volume"`
	PriceChangePct float64 `json:"price_change_pct"`
	MaxLeverage    int     `json:"max_leverage"`
}
