package indicators

import (
	"math"
	"testing"
	"time"

	"SignalFlow/internal/domain/models"
)

func TestClassifyTrendBands(t *testing.T) {
	cases := []struct {
		name                string
		close, ema20, ema50 float64
		want                models.Trend
	}{
		{"bullish", 102, 101, 99, models.Bullish},
		{"close inside band", 101.2, 101, 99, models.Neutral},
		{"emas too close", 102, 100, 99.5, models.Neutral},
		{"bearish", 97, 98, 100, models.Bearish},
		{"bearish band edge", 97.6, 98, 100, models.Neutral},
	}
	for _, c := range cases {
		if got := ClassifyTrend(c.close, c.ema20, c.ema50); got != c.want {
			t.Errorf("%s: got %s want %s", c.name, got, c.want)
		}
	}
}

func TestTrendStrengthCapped(t *testing.T) {
	if got := TrendStrength(100, 99); math.Abs(got-10) > 1e-9 {
		t.Fatalf("strength = %v, want 10", got)
	}
	if got := TrendStrength(100, 50); got != 100 {
		t.Fatalf("strength = %v, want cap 100", got)
	}
	if got := TrendStrength(0, 1); got != 0 {
		t.Fatalf("zero close should give 0")
	}
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	r, ok := Pearson(a, b)
	if !ok || math.Abs(r-1) > 1e-12 {
		t.Fatalf("r = %v ok=%v", r, ok)
	}
	c := []float64{5, 4, 3, 2, 1}
	if r, _ := Pearson(a, c); math.Abs(r+1) > 1e-12 {
		t.Fatalf("r = %v, want -1", r)
	}
	if _, ok := Pearson(a, []float64{1, 1, 1, 1, 1}); ok {
		t.Fatalf("zero variance must not be ok")
	}
}

func TestSwingsAndNearest(t *testing.T) {
	lows := []float64{10, 9, 8, 9, 10, 11, 10, 9.5, 10, 11}
	sw := SwingLows(lows)
	if len(sw) != 2 || sw[0] != 8 || sw[1] != 9.5 {
		t.Fatalf("swing lows = %v", sw)
	}
	if lvl, ok := NearestBelow(sw, 10); !ok || lvl != 9.5 {
		t.Fatalf("nearest below = %v %v", lvl, ok)
	}
	if _, ok := NearestAbove(sw, 10); ok {
		t.Fatalf("no level above 10")
	}
}

func TestCandleShapes(t *testing.T) {
	hammer := Shape(100, 100.5, 97, 100.2)
	if !hammer.Hammer() {
		t.Fatalf("expected hammer: %+v", hammer)
	}
	doji := Shape(100, 101, 99, 100.1)
	if !doji.Doji() {
		t.Fatalf("expected doji: %+v", doji)
	}
	flat := Shape(100, 100, 100, 100)
	if flat.Hammer() || flat.Doji() || flat.ShootingStar() {
		t.Fatalf("zero range bar has no pattern")
	}
}

func TestAnalyzeTrendOnRisingSeries(t *testing.T) {
	k := make(models.Klines, 100)
	start := time.Unix(0, 0)
	for i := range k {
		p := 100 * math.Pow(1.01, float64(i))
		k[i] = models.Kline{OpenTime: start.Add(time.Duration(i) * time.Hour), Open: p * 0.998, High: p * 1.004, Low: p * 0.996, Close: p, Volume: 1000}
	}
	r := AnalyzeTrend(k)
	if r.Trend != models.Bullish {
		t.Fatalf("trend = %s, reading %+v", r.Trend, r)
	}
	if r.EMA20 <= r.EMA50 || r.Strength <= 0 || r.ATR <= 0 {
		t.Fatalf("unexpected reading %+v", r)
	}
	if r.MACD.MACD <= 0 {
		t.Fatalf("macd should be positive on a rising series: %+v", r.MACD)
	}
	if short := AnalyzeTrend(k[:10]); short.Trend != models.Neutral {
		t.Fatalf("short series must be neutral")
	}
}

func TestVolumeRatioAndPctChange(t *testing.T) {
	vols := make([]float64, 20)
	for i := range vols {
		vols[i] = 100
	}
	for i := 15; i < 20; i++ {
		vols[i] = 200
	}
	// last5 mean 200, last20 mean 125
	if got := VolumeRatio(vols, 5, 20); math.Abs(got-1.6) > 1e-12 {
		t.Fatalf("ratio = %v", got)
	}
	if got := PctChange([]float64{100, 101, 102, 103}, 3); math.Abs(got-3) > 1e-12 {
		t.Fatalf("pct change = %v", got)
	}
	if PctChange([]float64{1}, 3) != 0 {
		t.Fatalf("short series should be 0")
	}
}
