package indicators

// swingWindow is the half-width of the centered window used to detect swings.
const swingWindow = 2

// SwingLows returns lows that are the minimum of their 5-bar centered window.
func SwingLows(lows []float64) []float64 {
	var out []float64
	for i := swingWindow; i < len(lows)-swingWindow; i++ {
		isLow := true
		for j := i - swingWindow; j <= i+swingWindow; j++ {
			if j != i && lows[j] < lows[i] {
				isLow = false
				break
			}
		}
		if isLow {
			out = append(out, lows[i])
		}
	}
	return out
}

// SwingHighs returns highs that are the maximum of their 5-bar centered window.
func SwingHighs(highs []float64) []float64 {
	var out []float64
	for i := swingWindow; i < len(highs)-swingWindow; i++ {
		isHigh := true
		for j := i - swingWindow; j <= i+swingWindow; j++ {
			if j != i && highs[j] > highs[i] {
				isHigh = false
				break
			}
		}
		if isHigh {
			out = append(out, highs[i])
		}
	}
	return out
}

// NearestBelow returns the greatest level strictly below price.
func NearestBelow(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l < price && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

// NearestAbove returns the smallest level strictly above price.
func NearestAbove(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l > price && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}

// Candle shape of a single bar.
type Candle struct {
	Body        float64
	Range       float64
	UpperShadow float64
	LowerShadow float64
}

func Shape(open, high, low, close float64) Candle {
	top, bottom := close, open
	if open > close {
		top, bottom = open, close
	}
	return Candle{
		Body:        top - bottom,
		Range:       high - low,
		UpperShadow: high - top,
		LowerShadow: bottom - low,
	}
}

// Hammer: lower shadow longer than twice the body.
func (c Candle) Hammer() bool { return c.Range > 0 && c.LowerShadow > 2*c.Body }

// ShootingStar: upper shadow longer than twice the body.
func (c Candle) ShootingStar() bool { return c.Range > 0 && c.UpperShadow > 2*c.Body }

// Doji: body under 30% of range.
func (c Candle) Doji() bool { return c.Range > 0 && c.Body < 0.3*c.Range }
