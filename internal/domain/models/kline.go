package models

import "time"

// Kline is one OHLCV bar.
type Kline struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Klines is ordered oldest first.
type Klines []Kline

// Clone returns an independent copy. Kline has no reference fields so a slice copy is deep.
func (k Klines) Clone() Klines {
	if k == nil {
		return nil
	}
	out := make(Klines, len(k))
	copy(out, k)
	return out
}

func (k Klines) Last() Kline {
	if len(k) == 0 {
		return Kline{}
	}
	return k[len(k)-1]
}

func (k Klines) Closes() []float64 {
	out := make([]float64, len(k))
	for i, b := range k {
		out[i] = b.Close
	}
	return out
}

func (k Klines) Highs() []float64 {
	out := make([]float64, len(k))
	for i, b := range k {
		out[i] = b.High
	}
	return out
}

func (k Klines) Lows() []float64 {
	out := make([]float64, len(k))
	for i, b := range k {
		out[i] = b.Low
	}
	return out
}

func (k Klines) Volumes() []float64 {
	out := make([]float64, len(k))
	for i, b := range k {
		out[i] = b.Volume
	}
	return out
}
