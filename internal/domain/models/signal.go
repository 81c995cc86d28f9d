package models

import (
	"strings"
	"time"
)

// Direction is the canonical trade side.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// ParseDirection accepts the canonical tags plus BUY/SELL, case-insensitive.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, true
	case "SHORT", "SELL":
		return Short, true
	default:
		return "", false
	}
}

// Sign is +1 for LONG and -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Trend classifies a market's direction.
type Trend string

const (
	Bullish Trend = "BULLISH"
	Bearish Trend = "BEARISH"
	Neutral Trend = "NEUTRAL"
)

// Aligned reports whether a trade direction goes with the trend.
func (t Trend) Aligned(d Direction) bool {
	return (t == Bullish && d == Long) || (t == Bearish && d == Short)
}

// Opposes reports whether a trade direction goes against the trend.
func (t Trend) Opposes(d Direction) bool {
	return (t == Bullish && d == Short) || (t == Bearish && d == Long)
}

// QualityClass buckets the 0..100 quality score.
type QualityClass string

const (
	Standard    QualityClass = "STANDARD"
	Premium     QualityClass = "PREMIUM"
	PremiumPlus QualityClass = "PREMIUM_PLUS"
	Elite       QualityClass = "ELITE"
	ElitePlus   QualityClass = "ELITE_PLUS"
)

// ClassifyQuality maps a score to its class. Scores below threshold are not classified.
func ClassifyQuality(score, threshold float64) (QualityClass, bool) {
	switch {
	case score >= 95:
		return ElitePlus, true
	case score >= 90:
		return Elite, true
	case score >= 85:
		return PremiumPlus, true
	case score >= 80:
		return Premium, true
	case score >= threshold:
		return Standard, true
	default:
		return "", false
	}
}

// SubScores are the four capped components of the quality score.
type SubScores struct {
	Trend   float64 `json:"trend"`
	Entry   float64 `json:"entry"`
	RSI     float64 `json:"rsi"`
	Pattern float64 `json:"pattern"`
}

func (s SubScores) Total() float64 {
	return s.Trend + s.Entry + s.RSI + s.Pattern
}

// GenerationReasons is the indicator snapshot captured when a candidate is generated.
type GenerationReasons struct {
	Scores          SubScores         `json:"scores"`
	Trend4h         Trend             `json:"trend_4h"`
	TrendStrength   float64           `json:"trend_strength"`
	EMA20           float64           `json:"ema20"`
	EMA50           float64           `json:"ema50"`
	RSI             float64           `json:"rsi"`
	ATR             float64           `json:"atr"`
	MACDHist        float64           `json:"macd_hist"`
	PriceChange3Pct float64           `json:"price_change_3_pct"`
	VolumeRatio     float64           `json:"volume_ratio"`
	LevelDistPct    float64           `json:"level_dist_pct"`
	CandlePattern   string            `json:"candle_pattern,omitempty"`
	Triggers        []string          `json:"triggers,omitempty"`
	Extensions      map[string]string `json:"extensions,omitempty"`
}

func (g GenerationReasons) clone() GenerationReasons {
	out := g
	if g.Triggers != nil {
		out.Triggers = append([]string(nil), g.Triggers...)
	}
	if g.Extensions != nil {
		out.Extensions = make(map[string]string, len(g.Extensions))
		for k, v := range g.Extensions {
			out.Extensions[k] = v
		}
	}
	return out
}

// Candidate is a signal awaiting confirmation. Invariant: Attempts == len(Checks);
// Decision is nil while pending and immutable once set.
type Candidate struct {
	ID                string             `json:"id"`
	Symbol            string             `json:"symbol"`
	Direction         Direction          `json:"direction"`
	EntryPrice        float64            `json:"entry_price"`
	TargetPrice       float64            `json:"target_price"`
	ProjectionPct     float64            `json:"projection_pct"`
	QualityScore      float64            `json:"quality_score"`
	QualityClass      QualityClass       `json:"quality_class"`
	CreatedAt         time.Time          `json:"created_at"`
	ExpiresAt         time.Time          `json:"expires_at"`
	Attempts          int                `json:"attempts"`
	LeaderCorrelation float64            `json:"leader_correlation"`
	CorrelationKnown  bool               `json:"correlation_known"`
	LeaderTrend       Trend              `json:"leader_trend"`
	GenerationReasons GenerationReasons  `json:"generation_reasons"`
	Checks            []EvaluationRecord `json:"checks"`
	Decision          *DecisionRecord    `json:"decision,omitempty"`
}

func (c *Candidate) Pending() bool { return c.Decision == nil }

// Clone returns a deep copy.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	out.GenerationReasons = c.GenerationReasons.clone()
	if c.Checks != nil {
		out.Checks = make([]EvaluationRecord, len(c.Checks))
		for i := range c.Checks {
			out.Checks[i] = c.Checks[i].clone()
		}
	}
	if c.Decision != nil {
		d := c.Decision.clone()
		out.Decision = &d
	}
	return &out
}

// ConfirmedSignal is a candidate that passed confirmation and the daily guard.
type ConfirmedSignal struct {
	Candidate
	ConfirmedAt         time.Time `json:"confirmed_at"`
	ConfirmationReasons []string  `json:"confirmation_reasons"`
}

func (s ConfirmedSignal) Clone() ConfirmedSignal {
	out := s
	out.Candidate = *s.Candidate.Clone()
	out.ConfirmationReasons = append([]string(nil), s.ConfirmationReasons...)
	return out
}

// DailyKey identifies a (symbol, direction) confirmation within one local day.
type DailyKey struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
}

func (k DailyKey) String() string { return k.Symbol + ":" + string(k.Direction) }
