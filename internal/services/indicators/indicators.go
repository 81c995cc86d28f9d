// Package indicators wraps go-talib with length guards so callers never index
// into a lookback region. All functions are total: short input yields zero values.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

const (
	EMAFast    = 20
	EMASlow    = 50
	RSIPeriod  = 14
	ATRPeriod  = 14
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// EMA returns the last EMA value, 0 when fewer than period closes exist.
func EMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	return last(talib.Ema(closes, period))
}

// RSI returns the last RSI value, 50 (neutral) on insufficient data.
func RSI(closes []float64, period int) float64 {
	if period <= 1 || len(closes) <= period {
		return 50
	}
	v := last(talib.Rsi(closes, period))
	if math.IsNaN(v) {
		return 50
	}
	return v
}

type MACDValue struct {
	MACD   float64
	Signal float64
	Hist   float64
}

// MACD returns the last MACD line, signal and histogram.
func MACD(closes []float64) MACDValue {
	if len(closes) < MACDSlow+MACDSignal {
		return MACDValue{}
	}
	m, s, h := talib.Macd(closes, MACDFast, MACDSlow, MACDSignal)
	return MACDValue{MACD: last(m), Signal: last(s), Hist: last(h)}
}

// ATR returns the last average true range.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n <= period || len(highs) != n || len(lows) != n {
		return 0
	}
	return last(talib.Atr(highs, lows, closes, period))
}

// PctChange is (closes[-1] - closes[-1-bars]) / closes[-1-bars] * 100.
func PctChange(closes []float64, bars int) float64 {
	n := len(closes)
	if bars <= 0 || n <= bars {
		return 0
	}
	base := closes[n-1-bars]
	if base == 0 {
		return 0
	}
	return (closes[n-1] - base) / base * 100
}

// Mean of the slice, 0 when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// VolumeRatio is mean(last short) / mean(last long), 0 when undefined.
func VolumeRatio(volumes []float64, short, long int) float64 {
	if len(volumes) < long || short <= 0 || long <= 0 {
		return 0
	}
	den := Mean(volumes[len(volumes)-long:])
	if den == 0 {
		return 0
	}
	return Mean(volumes[len(volumes)-short:]) / den
}

// PctReturns computes r_t = C_t / C_{t-1} - 1. Non-positive prices give 0.
func PctReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// Pearson returns the correlation coefficient of two equal-length series.
// ok is false when either series has zero variance or lengths differ.
func Pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0, false
	}
	ma, mb := Mean(a), Mean(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0, false
	}
	r := cov / math.Sqrt(va*vb)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
