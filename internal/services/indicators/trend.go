package indicators

import (
	"math"

	"SignalFlow/internal/domain/models"
)

// TrendReading is the EMA/MACD/RSI/ATR view of one timeframe.
type TrendReading struct {
	Trend    models.Trend `json:"trend"`
	Strength float64      `json:"strength"`
	Close    float64      `json:"close"`
	EMA20    float64      `json:"ema20"`
	EMA50    float64      `json:"ema50"`
	RSI      float64      `json:"rsi"`
	MACD     MACDValue    `json:"macd"`
	ATR      float64      `json:"atr"`
	ATRPct   float64      `json:"atr_pct"`
}

// Normalized is Strength scaled to [0, 1], the unit the scorer and target model take.
func (r TrendReading) Normalized() float64 {
	return r.Strength / 100
}

// ClassifyTrend applies the EMA20/EMA50 band rules.
func ClassifyTrend(close, ema20, ema50 float64) models.Trend {
	switch {
	case close > ema20*1.005 && ema20 > ema50*1.01:
		return models.Bullish
	case close < ema20*0.995 && ema20 < ema50*0.99:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// TrendStrength is min(100, |close - ema20| / close * 1000).
func TrendStrength(close, ema20 float64) float64 {
	if close <= 0 {
		return 0
	}
	return math.Min(100, math.Abs(close-ema20)/close*1000)
}

// AnalyzeTrend computes a reading for a kline series. Series shorter than the slow EMA are NEUTRAL.
func AnalyzeTrend(k models.Klines) TrendReading {
	closes := k.Closes()
	r := TrendReading{Trend: models.Neutral, Close: k.Last().Close, RSI: 50}
	if len(closes) < EMASlow {
		return r
	}
	r.EMA20 = EMA(closes, EMAFast)
	r.EMA50 = EMA(closes, EMASlow)
	r.RSI = RSI(closes, RSIPeriod)
	r.MACD = MACD(closes)
	r.ATR = ATR(k.Highs(), k.Lows(), closes, ATRPeriod)
	if r.Close > 0 {
		r.ATRPct = r.ATR / r.Close * 100
	}
	r.Trend = ClassifyTrend(r.Close, r.EMA20, r.EMA50)
	r.Strength = TrendStrength(r.Close, r.EMA20)
	return r
}
