// Package scoring computes the 100-point quality score and the target price of a candidate.
package scoring

import (
	"math"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/services/indicators"
)

// EntryReading is the 1h entry context.
type EntryReading struct {
	Close           float64
	PrevClose       float64
	EMA20           float64
	EMA50           float64
	RSI             float64
	ATR             float64
	PriceChange3Pct float64
	VolumeRatio     float64
	Open            float64
	High            float64
	Low             float64
	SwingLows       []float64
	SwingHighs      []float64
}

// AnalyzeEntry builds the entry reading from 1h klines.
func AnalyzeEntry(k models.Klines) EntryReading {
	closes := k.Closes()
	last := k.Last()
	e := EntryReading{
		Close:           last.Close,
		Open:            last.Open,
		High:            last.High,
		Low:             last.Low,
		EMA20:           indicators.EMA(closes, indicators.EMAFast),
		EMA50:           indicators.EMA(closes, indicators.EMASlow),
		RSI:             indicators.RSI(closes, indicators.RSIPeriod),
		ATR:             indicators.ATR(k.Highs(), k.Lows(), closes, indicators.ATRPeriod),
		PriceChange3Pct: indicators.PctChange(closes, 3),
		VolumeRatio:     indicators.VolumeRatio(k.Volumes(), 5, 20),
		SwingLows:       indicators.SwingLows(k.Lows()),
		SwingHighs:      indicators.SwingHighs(k.Highs()),
	}
	if len(closes) >= 2 {
		e.PrevClose = closes[len(closes)-2]
	}
	return e
}

// Result is the full scoring output. Pattern names the candle shape, if any.
type Result struct {
	Scores       models.SubScores
	Quality      float64
	LevelDistPct float64
	Pattern      string
	Triggers     []string
}

// Score is a pure function of the trend and entry readings.
func Score(dir models.Direction, trend indicators.TrendReading, entry EntryReading) Result {
	var res Result
	res.Scores.Trend = trendScore(dir, trend, &res.Triggers)
	res.Scores.Entry = entryScore(dir, entry, &res.Triggers)
	res.Scores.RSI = rsiScore(dir, entry.RSI)
	res.Scores.Pattern, res.LevelDistPct, res.Pattern = patternScore(dir, entry, &res.Triggers)
	res.Quality = res.Scores.Total()
	return res
}

func trendScore(dir models.Direction, t indicators.TrendReading, triggers *[]string) float64 {
	score := math.Min(math.Abs(t.Normalized())*50, 15)

	if dir == models.Long {
		if t.EMA20 > 0 && t.Close >= t.EMA20*0.98 {
			score += 10
			*triggers = append(*triggers, "ema_alignment")
		}
		if t.MACD.MACD-t.MACD.Signal > 0 {
			score += 10
			*triggers = append(*triggers, "macd_bullish")
		}
	} else {
		if t.EMA20 > 0 && t.Close <= t.EMA20*1.02 {
			score += 10
			*triggers = append(*triggers, "ema_alignment")
		}
		if t.MACD.MACD-t.MACD.Signal < 0 {
			score += 10
			*triggers = append(*triggers, "macd_bearish")
		}
	}
	return math.Min(score, 35)
}

func entryScore(dir models.Direction, e EntryReading, triggers *[]string) float64 {
	score := 0.0
	change := e.PriceChange3Pct * dir.Sign()
	lastMove := (e.Close - e.PrevClose) * dir.Sign()
	switch {
	case change > 0 && lastMove > 0:
		score += 15
		*triggers = append(*triggers, "momentum_strong")
	case change > 0:
		score += 10
		*triggers = append(*triggers, "momentum_mild")
	}

	switch {
	case e.VolumeRatio > 1.2:
		score += 10
		*triggers = append(*triggers, "volume_surge")
	case e.VolumeRatio > 1.0:
		score += 5
	}
	return math.Min(score, 25)
}

func rsiScore(dir models.Direction, r float64) float64 {
	if r < 30 || r > 70 {
		return 5
	}
	if (dir == models.Long && r <= 50) || (dir == models.Short && r >= 50) {
		return 20
	}
	return 15
}

func patternScore(dir models.Direction, e EntryReading, triggers *[]string) (float64, float64, string) {
	score := 0.0
	dist := -1.0

	var level float64
	var ok bool
	if dir == models.Long {
		level, ok = indicators.NearestBelow(e.SwingLows, e.Close)
	} else {
		level, ok = indicators.NearestAbove(e.SwingHighs, e.Close)
	}
	if ok && e.Close > 0 {
		dist = math.Abs(e.Close-level) / e.Close * 100
		switch {
		case dist >= 2 && dist <= 5:
			score += 10
			*triggers = append(*triggers, "level_proximity")
		case dist <= 8:
			score += 5
		}
	}

	pattern := ""
	shape := indicators.Shape(e.Open, e.High, e.Low, e.Close)
	reversal := shape.Hammer()
	name := "hammer"
	if dir == models.Short {
		reversal = shape.ShootingStar()
		name = "shooting_star"
	}
	switch {
	case reversal:
		score += 10
		pattern = name
		*triggers = append(*triggers, name)
	case shape.Doji():
		score += 5
		pattern = "doji"
	}
	return math.Min(score, 20), dist, pattern
}
