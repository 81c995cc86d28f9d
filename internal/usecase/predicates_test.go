package usecase

import (
	"testing"

	"SignalFlow/internal/domain/models"
)

func outcomeOf(results []models.PredicateResult, name models.PredicateName) models.PredicateOutcome {
	for _, r := range results {
		if r.Name == name {
			return r.Outcome
		}
	}
	return ""
}

func TestBreakoutExactlyAtThreshold(t *testing.T) {
	cfg := DefaultPredicateConfig()
	for _, entry := range []float64{0.0731, 1.2345, 2.5, 17.3, 100, 612.44, 3021.7, 65123.9} {
		long := entry * (1 + cfg.BreakoutMinPct/100)
		if got := breakout(models.Long, entry, long, cfg); got.Outcome != models.OutcomeConfirmed {
			t.Errorf("long entry %v at +%.1f%%: outcome %s", entry, cfg.BreakoutMinPct, got.Outcome)
		}
		short := entry * (1 - cfg.BreakoutMinPct/100)
		if got := breakout(models.Short, entry, short, cfg); got.Outcome != models.OutcomeConfirmed {
			t.Errorf("short entry %v at -%.1f%%: outcome %s", entry, cfg.BreakoutMinPct, got.Outcome)
		}
		reversal := entry * (1 - cfg.BreakoutRejectPct/100)
		if got := breakout(models.Long, entry, reversal, cfg); got.Outcome != models.OutcomeRejected {
			t.Errorf("long entry %v at -%.1f%%: outcome %s", entry, cfg.BreakoutRejectPct, got.Outcome)
		}
	}
}

func TestBreakoutThresholds(t *testing.T) {
	cfg := DefaultPredicateConfig()
	tests := []struct {
		name string
		dir  models.Direction
		last float64
		want models.PredicateOutcome
	}{
		{"long past +0.5%", models.Long, 100.51, models.OutcomeConfirmed},
		{"long below breakout", models.Long, 100.4, models.OutcomeNeutral},
		{"long past -1%", models.Long, 98.99, models.OutcomeRejected},
		{"long small dip", models.Long, 99.2, models.OutcomeNeutral},
		{"short past -0.5%", models.Short, 99.45, models.OutcomeConfirmed},
		{"short reversal", models.Short, 101.2, models.OutcomeRejected},
		{"no price", models.Long, 0, models.OutcomeNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := breakout(tt.dir, 100, tt.last, cfg)
			if got.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s (reason %q)", got.Outcome, tt.want, got.Reason)
			}
			if got.Outcome == models.OutcomeRejected && got.Reason != models.ReasonReversal {
				t.Fatalf("reject reason = %q", got.Reason)
			}
		})
	}
}

func TestVolumePredicate(t *testing.T) {
	cfg := DefaultPredicateConfig()
	tests := []struct {
		vols []float64
		want models.PredicateOutcome
	}{
		{[]float64{100, 100, 100, 120, 120}, models.OutcomeConfirmed},
		{[]float64{100, 100, 100, 110, 110}, models.OutcomeNeutral},
		{[]float64{100, 100, 100, 70, 70}, models.OutcomeRejected},
		{[]float64{100, 100, 100, 80, 80}, models.OutcomeNeutral},
		{[]float64{0, 0, 0, 80, 80}, models.OutcomeNeutral},
		{[]float64{100, 100}, models.OutcomeNeutral},
	}
	for _, tt := range tests {
		if got := volume(tt.vols, cfg); got.Outcome != tt.want {
			t.Errorf("volume(%v) = %s, want %s", tt.vols, got.Outcome, tt.want)
		}
	}
}

func TestLeaderAlignmentPredicate(t *testing.T) {
	cfg := DefaultPredicateConfig()
	if got := leaderAlignment(models.Short, models.Bearish, 0.1, cfg); got.Outcome != models.OutcomeConfirmed {
		t.Fatalf("aligned short = %s", got.Outcome)
	}
	if got := leaderAlignment(models.Long, models.Bearish, 0.5, cfg); got.Outcome != models.OutcomeNeutral {
		t.Fatalf("opposed at exactly 0.5 strength = %s, want neutral", got.Outcome)
	}
	if got := leaderAlignment(models.Long, models.Bearish, 0.51, cfg); got.Outcome != models.OutcomeRejected {
		t.Fatalf("opposed strong leader = %s", got.Outcome)
	}
	if got := leaderAlignment(models.Long, models.Neutral, 0.9, cfg); got.Outcome != models.OutcomeNeutral {
		t.Fatalf("neutral leader = %s", got.Outcome)
	}
}

func TestMomentumNeverRejects(t *testing.T) {
	if got := momentum(models.Long, []float64{100, 101, 100.5, 101.5}); got.Outcome != models.OutcomeConfirmed {
		t.Fatalf("2 of 3 up = %s", got.Outcome)
	}
	if got := momentum(models.Long, []float64{104, 103, 102, 101}); got.Outcome != models.OutcomeNeutral {
		t.Fatalf("all down long = %s, want neutral", got.Outcome)
	}
	if got := momentum(models.Short, []float64{104, 103, 102, 101}); got.Outcome != models.OutcomeConfirmed {
		t.Fatalf("all down short = %s", got.Outcome)
	}
	if got := momentum(models.Long, []float64{100, 101}); got.Outcome != models.OutcomeNeutral {
		t.Fatalf("short input = %s", got.Outcome)
	}
}

func TestTally(t *testing.T) {
	snap := models.MarketSnapshot{
		LastClose:      98.9,
		Closes:         []float64{101, 100, 99.5, 98.9},
		Volumes:        []float64{100, 100, 100, 50, 50},
		LeaderTrend:    models.Bearish,
		LeaderStrength: 0.8,
	}
	res := EvaluatePredicates(models.Long, 100, snap, DefaultPredicateConfig())
	conf, rej, _, rejReasons := Tally(res)
	if conf != 0 || rej != 3 {
		t.Fatalf("tally = %d/%d", conf, rej)
	}
	if outcomeOf(res, models.PredicateMomentum) != models.OutcomeNeutral {
		t.Fatalf("momentum rejected")
	}
	if rejReasons[0] != models.ReasonReversal || rejReasons[1] != TagLowVolume || rejReasons[2] != TagLeaderDivergence {
		t.Fatalf("reject reasons = %v", rejReasons)
	}
}
