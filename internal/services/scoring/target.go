package scoring

import (
	"math"

	"SignalFlow/internal/domain/models"
)

const (
	targetBasePct = 6.0
	targetMinPct  = 6.0
	targetMaxPct  = 20.0
)

// TargetPrice projects the profit target from entry. trendStrength is the normalized
// 4h strength in [0, 1]. Returns the target and |target - entry| / entry in percent.
func TargetPrice(dir models.Direction, entry, atr, close, trendStrength, quality float64) (float64, float64) {
	volBonus := 0.0
	if close > 0 {
		volBonus = math.Min(atr/close*400, 8)
	}
	trendBonus := math.Min(math.Abs(trendStrength)*100, 3)
	qualityBonus := math.Max(0, math.Min((quality-80)/20, 1))

	pct := targetBasePct + volBonus + trendBonus + qualityBonus
	pct = math.Max(targetMinPct, math.Min(pct, targetMaxPct))

	target := entry * (1 + dir.Sign()*pct/100)
	if dir == models.Long && target <= entry {
		target = entry * 1.06
	}
	if dir == models.Short && target >= entry {
		target = entry * 0.94
	}
	if entry == 0 {
		return target, 0
	}
	return target, math.Abs(target-entry) / entry * 100
}
