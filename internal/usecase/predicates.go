package usecase

import (
	"fmt"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/services/indicators"
)

// Predicate reason tags.
const (
	TagBreakout         = "BREAKOUT"
	TagVolumeSurge      = "VOLUME_SURGE"
	TagLeaderAligned    = "LEADER_ALIGNED"
	TagMomentum         = "MOMENTUM"
	TagLowVolume        = "LOW_VOLUME"
	TagLeaderDivergence = "LEADER_DIVERGENCE"
)

type PredicateConfig struct {
	BreakoutMinPct    float64
	BreakoutRejectPct float64
	VolumeMinRatio    float64
	VolumeRejectRatio float64
	LeaderMinStrength float64
}

func DefaultPredicateConfig() PredicateConfig {
	return PredicateConfig{
		BreakoutMinPct:    0.5,
		BreakoutRejectPct: 1.0,
		VolumeMinRatio:    1.2,
		VolumeRejectRatio: 0.8,
		LeaderMinStrength: 0.5,
	}
}

// EvaluatePredicates runs the four confirmation predicates. It never fails:
// missing data yields a neutral outcome.
func EvaluatePredicates(dir models.Direction, entry float64, snap models.MarketSnapshot, cfg PredicateConfig) []models.PredicateResult {
	return []models.PredicateResult{
		breakout(dir, entry, snap.LastClose, cfg),
		volume(snap.Volumes, cfg),
		leaderAlignment(dir, snap.LeaderTrend, snap.LeaderStrength, cfg),
		momentum(dir, snap.Closes),
	}
}

// Tally counts votes and collects the reason tags of each side.
func Tally(results []models.PredicateResult) (confirmations, rejections int, confirmReasons, rejectReasons []string) {
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeConfirmed:
			confirmations++
			confirmReasons = append(confirmReasons, r.Reason)
		case models.OutcomeRejected:
			rejections++
			rejectReasons = append(rejectReasons, r.Reason)
		}
	}
	return
}

func neutral(name models.PredicateName, reason string, v float64) models.PredicateResult {
	return models.PredicateResult{Name: name, Outcome: models.OutcomeNeutral, Reason: reason, Value: v}
}

func breakout(dir models.Direction, entry, last float64, cfg PredicateConfig) models.PredicateResult {
	if entry <= 0 || last <= 0 {
		return neutral(models.PredicateBreakout, "no price", 0)
	}
	move := (last/entry - 1) * 100 * dir.Sign()
	r := models.PredicateResult{Name: models.PredicateBreakout, Value: move}
	up := entry * (1 + cfg.BreakoutMinPct/100)
	down := entry * (1 - cfg.BreakoutRejectPct/100)
	if dir == models.Short {
		up = entry * (1 - cfg.BreakoutMinPct/100)
		down = entry * (1 + cfg.BreakoutRejectPct/100)
	}
	switch {
	case dir == models.Long && last >= up, dir == models.Short && last <= up:
		r.Outcome, r.Reason = models.OutcomeConfirmed, TagBreakout
	case dir == models.Long && last <= down, dir == models.Short && last >= down:
		r.Outcome, r.Reason = models.OutcomeRejected, models.ReasonReversal
	default:
		r.Outcome, r.Reason = models.OutcomeNeutral, fmt.Sprintf("move %.2f%%", move)
	}
	return r
}

func volume(vols []float64, cfg PredicateConfig) models.PredicateResult {
	if len(vols) < 5 {
		return neutral(models.PredicateVolume, "insufficient bars", 0)
	}
	vols = vols[len(vols)-5:]
	base := indicators.Mean(vols[:3])
	if base <= 0 {
		return neutral(models.PredicateVolume, "no base volume", 0)
	}
	ratio := indicators.Mean(vols[3:]) / base
	r := models.PredicateResult{Name: models.PredicateVolume, Value: ratio}
	switch {
	case ratio >= cfg.VolumeMinRatio:
		r.Outcome, r.Reason = models.OutcomeConfirmed, TagVolumeSurge
	case ratio < cfg.VolumeRejectRatio:
		r.Outcome, r.Reason = models.OutcomeRejected, TagLowVolume
	default:
		r.Outcome, r.Reason = models.OutcomeNeutral, fmt.Sprintf("ratio %.2f", ratio)
	}
	return r
}

// leaderAlignment compares against the leader trend. strength is normalized to [0, 1].
func leaderAlignment(dir models.Direction, trend models.Trend, strength float64, cfg PredicateConfig) models.PredicateResult {
	r := models.PredicateResult{Name: models.PredicateLeader, Value: strength}
	switch {
	case trend.Aligned(dir):
		r.Outcome, r.Reason = models.OutcomeConfirmed, TagLeaderAligned
	case trend.Opposes(dir) && strength > cfg.LeaderMinStrength:
		r.Outcome, r.Reason = models.OutcomeRejected, TagLeaderDivergence
	default:
		r.Outcome, r.Reason = models.OutcomeNeutral, string(trend)
	}
	return r
}

// momentum confirms when at least two of the last three moves favor the direction. It never rejects.
func momentum(dir models.Direction, closes []float64) models.PredicateResult {
	if len(closes) < 4 {
		return neutral(models.PredicateMomentum, "insufficient bars", 0)
	}
	closes = closes[len(closes)-4:]
	favorable := 0
	for i := 1; i < len(closes); i++ {
		if (closes[i]-closes[i-1])*dir.Sign() > 0 {
			favorable++
		}
	}
	r := models.PredicateResult{Name: models.PredicateMomentum, Value: float64(favorable)}
	if favorable >= 2 {
		r.Outcome, r.Reason = models.OutcomeConfirmed, TagMomentum
	} else {
		r.Outcome, r.Reason = models.OutcomeNeutral, fmt.Sprintf("%d of 3 favorable", favorable)
	}
	return r
}

// DecideAction applies the thresholds. Rejection is checked first.
func DecideAction(confirmations, rejections int) models.Action {
	switch {
	case rejections >= 2:
		return models.ActionReject
	case confirmations >= 3:
		return models.ActionConfirm
	default:
		return models.ActionWait
	}
}
