package models

import "time"

// PendingView is the read-side projection of a pending candidate.
type PendingView struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Direction     Direction         `json:"direction"`
	EntryPrice    float64           `json:"entry_price"`
	TargetPrice   float64           `json:"target_price"`
	ProjectionPct float64           `json:"projection_pct"`
	QualityScore  float64           `json:"quality_score"`
	QualityClass  QualityClass      `json:"quality_class"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Attempts      int               `json:"attempts"`
	Confirmations int               `json:"confirmations"`
	Rejections    int               `json:"rejections"`
	LastAction    Action            `json:"last_action,omitempty"`
	LeaderTrend   Trend             `json:"leader_trend"`
	LastChecks    []PredicateResult `json:"last_checks,omitempty"`
}

type ConfirmedView struct {
	ID                  string       `json:"id"`
	Symbol              string       `json:"symbol"`
	Direction           Direction    `json:"direction"`
	EntryPrice          float64      `json:"entry_price"`
	TargetPrice         float64      `json:"target_price"`
	ProjectionPct       float64      `json:"projection_pct"`
	QualityScore        float64      `json:"quality_score"`
	QualityClass        QualityClass `json:"quality_class"`
	CreatedAt           time.Time    `json:"created_at"`
	ConfirmedAt         time.Time    `json:"confirmed_at"`
	ConfirmationReasons []string     `json:"confirmation_reasons"`
	ProcessingMinutes   float64      `json:"processing_minutes"`
	Manual              bool         `json:"manual"`
}

type RejectedView struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Direction    Direction       `json:"direction"`
	EntryPrice   float64         `json:"entry_price"`
	QualityScore float64         `json:"quality_score"`
	CreatedAt    time.Time       `json:"created_at"`
	DecidedAt    time.Time       `json:"decided_at"`
	Outcome      DecisionOutcome `json:"outcome"`
	Reasons      []string        `json:"reasons"`
	Attempts     int             `json:"attempts"`
	Lesson       string          `json:"lesson,omitempty"`
}

type ConfirmationMetrics struct {
	Total                  int     `json:"total"`
	Confirmed              int     `json:"confirmed"`
	Rejected               int     `json:"rejected"`
	Expired                int     `json:"expired"`
	Pending                int     `json:"pending"`
	ConfirmationRatePct    float64 `json:"confirmation_rate_pct"`
	AvgConfirmationTimeMin float64 `json:"avg_confirmation_time_min"`
	Active                 bool    `json:"active"`
}

type DailyStatus struct {
	Count          int        `json:"count"`
	Entries        []DailyKey `json:"entries"`
	LastResetDate  string     `json:"last_reset_date"`
	ResetTimeLocal string     `json:"reset_time_local"`
	Timezone       string     `json:"timezone"`
	NextReset      time.Time  `json:"next_reset"`
}

// NewPendingView projects a candidate; counts come from the latest check.
func NewPendingView(c *Candidate) PendingView {
	v := PendingView{
		ID:            c.ID,
		Symbol:        c.Symbol,
		Direction:     c.Direction,
		EntryPrice:    c.EntryPrice,
		TargetPrice:   c.TargetPrice,
		ProjectionPct: c.ProjectionPct,
		QualityScore:  c.QualityScore,
		QualityClass:  c.QualityClass,
		CreatedAt:     c.CreatedAt,
		ExpiresAt:     c.ExpiresAt,
		Attempts:      c.Attempts,
		LeaderTrend:   c.LeaderTrend,
	}
	if n := len(c.Checks); n > 0 {
		last := c.Checks[n-1]
		v.Confirmations = last.Confirmations
		v.Rejections = last.Rejections
		v.LastAction = last.Action
		v.LastChecks = append([]PredicateResult(nil), last.Predicates...)
	}
	return v
}

func NewConfirmedView(s ConfirmedSignal) ConfirmedView {
	v := ConfirmedView{
		ID:                  s.ID,
		Symbol:              s.Symbol,
		Direction:           s.Direction,
		EntryPrice:          s.EntryPrice,
		TargetPrice:         s.TargetPrice,
		ProjectionPct:       s.ProjectionPct,
		QualityScore:        s.QualityScore,
		QualityClass:        s.QualityClass,
		CreatedAt:           s.CreatedAt,
		ConfirmedAt:         s.ConfirmedAt,
		ConfirmationReasons: append([]string(nil), s.ConfirmationReasons...),
		ProcessingMinutes:   s.ConfirmedAt.Sub(s.CreatedAt).Minutes(),
	}
	if s.Decision != nil {
		v.Manual = s.Decision.Manual
	}
	return v
}

func NewRejectedView(c *Candidate) RejectedView {
	v := RejectedView{
		ID:           c.ID,
		Symbol:       c.Symbol,
		Direction:    c.Direction,
		EntryPrice:   c.EntryPrice,
		QualityScore: c.QualityScore,
		CreatedAt:    c.CreatedAt,
		Attempts:     c.Attempts,
	}
	if c.Decision != nil {
		v.DecidedAt = c.Decision.Timestamp
		v.Outcome = c.Decision.Outcome
		v.Reasons = append([]string(nil), c.Decision.Reasons...)
		v.Lesson = c.Decision.Lesson
	}
	return v
}
