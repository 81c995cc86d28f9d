package models

import "time"

// SignalStatus is the persisted status column of the signals table.
type SignalStatus string

const (
	StatusPending   SignalStatus = "PENDING"
	StatusConfirmed SignalStatus = "CONFIRMED"
	StatusRejected  SignalStatus = "REJECTED"
	StatusExpired   SignalStatus = "EXPIRED"
)

// StatusFor maps a decision outcome to its row status.
func StatusFor(o DecisionOutcome) SignalStatus {
	switch o {
	case DecisionConfirmed:
		return StatusConfirmed
	case DecisionExpired:
		return StatusExpired
	default:
		return StatusRejected
	}
}

// SignalRecord is one row of the signals table. Timestamps are UTC.
type SignalRecord struct {
	ID                  string            `json:"id"`
	Symbol              string            `json:"symbol"`
	Type                Direction         `json:"type"`
	EntryPrice          float64           `json:"entry_price"`
	TargetPrice         float64           `json:"target_price"`
	ProjectionPct       float64           `json:"projection_pct"`
	QualityScore        float64           `json:"quality_score"`
	QualityClass        QualityClass      `json:"quality_class"`
	Status              SignalStatus      `json:"status"`
	CreatedAt           time.Time         `json:"created_at"`
	ConfirmedAt         *time.Time        `json:"confirmed_at,omitempty"`
	DecidedAt           *time.Time        `json:"decided_at,omitempty"`
	LeaderCorrelation   float64           `json:"leader_correlation"`
	LeaderTrend         Trend             `json:"leader_trend"`
	ConfirmationReasons []string          `json:"confirmation_reasons"`
	Decision            *DecisionRecord   `json:"decision,omitempty"`
	GenerationReasons   GenerationReasons `json:"generation_reasons"`
}

// NewSignalRecord builds the row for a candidate in its current state.
func NewSignalRecord(c *Candidate) SignalRecord {
	r := SignalRecord{
		ID:                c.ID,
		Symbol:            c.Symbol,
		Type:              c.Direction,
		EntryPrice:        c.EntryPrice,
		TargetPrice:       c.TargetPrice,
		ProjectionPct:     c.ProjectionPct,
		QualityScore:      c.QualityScore,
		QualityClass:      c.QualityClass,
		Status:            StatusPending,
		CreatedAt:         c.CreatedAt.UTC(),
		LeaderCorrelation: c.LeaderCorrelation,
		LeaderTrend:       c.LeaderTrend,
		GenerationReasons: c.GenerationReasons,
	}
	if c.Decision != nil {
		d := c.Decision.clone()
		r.Decision = &d
		r.Status = StatusFor(d.Outcome)
		at := d.Timestamp.UTC()
		r.DecidedAt = &at
		if d.Outcome == DecisionConfirmed {
			r.ConfirmedAt = &at
			r.ConfirmationReasons = append([]string(nil), d.Reasons...)
		}
	}
	return r
}

// TimeField selects which timestamp column a filter applies to.
type TimeField string

const (
	FieldCreatedAt   TimeField = "created_at"
	FieldConfirmedAt TimeField = "confirmed_at"
)

// SignalFilter selects rows. Zero values mean "no constraint".
type SignalFilter struct {
	Statuses      []SignalStatus
	Symbol        string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Ascending     bool
	Limit         int
}
