package models

import "time"

// PredicateName identifies one confirmation predicate.
type PredicateName string

const (
	PredicateBreakout PredicateName = "breakout"
	PredicateVolume   PredicateName = "volume"
	PredicateLeader   PredicateName = "leader_alignment"
	PredicateMomentum PredicateName = "momentum"
)

// PredicateOutcome is the vote of a single predicate.
type PredicateOutcome string

const (
	OutcomeConfirmed PredicateOutcome = "confirmed"
	OutcomeRejected  PredicateOutcome = "rejected"
	OutcomeNeutral   PredicateOutcome = "neutral"
)

type PredicateResult struct {
	Name    PredicateName    `json:"name"`
	Outcome PredicateOutcome `json:"outcome"`
	Reason  string           `json:"reason"`
	Value   float64          `json:"value"`
}

// Action is the engine's recommendation after one evaluation.
type Action string

const (
	ActionWait    Action = "wait"
	ActionConfirm Action = "confirm"
	ActionReject  Action = "reject"
	ActionExpire  Action = "expire"
)

// MarketSnapshot is the market state a candidate was evaluated against.
type MarketSnapshot struct {
	At             time.Time `json:"at"`
	LastClose      float64   `json:"last_close"`
	Closes         []float64 `json:"closes"`
	Volumes        []float64 `json:"volumes"`
	LastPrice      float64   `json:"last_price"`
	PriceChangePct float64   `json:"price_change_pct_24h"`
	QuoteVolume    float64   `json:"quote_volume_24h"`
	LeaderTrend    Trend     `json:"leader_trend"`
	LeaderStrength float64   `json:"leader_strength"`
}

// EvaluationRecord is one tick of the confirmation state machine for a candidate.
type EvaluationRecord struct {
	Attempt       int               `json:"attempt"`
	Timestamp     time.Time         `json:"timestamp"`
	Snapshot      MarketSnapshot    `json:"snapshot"`
	Predicates    []PredicateResult `json:"predicates"`
	Confirmations int               `json:"confirmations"`
	Rejections    int               `json:"rejections"`
	Action        Action            `json:"action"`
	FetchError    string            `json:"fetch_error,omitempty"`
}

func (r EvaluationRecord) clone() EvaluationRecord {
	out := r
	out.Snapshot.Closes = append([]float64(nil), r.Snapshot.Closes...)
	out.Snapshot.Volumes = append([]float64(nil), r.Snapshot.Volumes...)
	out.Predicates = append([]PredicateResult(nil), r.Predicates...)
	return out
}

// DecisionOutcome is the terminal state of a candidate.
type DecisionOutcome string

const (
	DecisionConfirmed DecisionOutcome = "CONFIRMED"
	DecisionRejected  DecisionOutcome = "REJECTED"
	DecisionExpired   DecisionOutcome = "EXPIRED"
)

// Decision reasons with fixed meaning.
const (
	ReasonTimeout        = "TIMEOUT"
	ReasonMaxAttempts    = "MAX_ATTEMPTS"
	ReasonDuplicateOfDay = "DUPLICATE_OF_DAY"
	ReasonReversal       = "REVERSAL"
	ReasonManual         = "MANUAL"
)

// DecisionRecord closes a candidate's pending lifetime.
type DecisionRecord struct {
	Timestamp      time.Time       `json:"timestamp"`
	Outcome        DecisionOutcome `json:"outcome"`
	Reasons        []string        `json:"reasons"`
	ProcessingTime time.Duration   `json:"processing_time"`
	Attempts       int             `json:"attempts"`
	Confirmations  int             `json:"confirmations"`
	Rejections     int             `json:"rejections"`
	PriceMovePct   float64         `json:"price_move_pct"`
	Lesson         string          `json:"lesson"`
	Manual         bool            `json:"manual"`
}

func (d DecisionRecord) clone() DecisionRecord {
	out := d
	out.Reasons = append([]string(nil), d.Reasons...)
	return out
}
