package models

import "time"

// MonitorStatus is the lifecycle of a monitored signal. Terminal states never revert.
type MonitorStatus string

const (
	MonitorActive    MonitorStatus = "MONITORING"
	MonitorCompleted MonitorStatus = "COMPLETED"
	MonitorExpired   MonitorStatus = "EXPIRED"
)

type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Pct       float64   `json:"pct"`
	Profit    float64   `json:"profit"`
}

// MonitoredSignal tracks a confirmed signal's leveraged and simulated performance.
type MonitoredSignal struct {
	ConfirmedSignal
	MaxLeverage      int           `json:"max_leverage"`
	CurrentPrice     float64       `json:"current_price"`
	CurrentPct       float64       `json:"current_pct"`
	CurrentProfit    float64       `json:"current_profit"`
	MaxProfitReached float64       `json:"max_profit_reached"`
	SimInvestment    float64       `json:"sim_investment"`
	SimPositionSize  float64       `json:"sim_position_size"`
	SimCurrentValue  float64       `json:"sim_current_value"`
	SimPnL           float64       `json:"sim_pnl"`
	SimMaxValue      float64       `json:"sim_max_value"`
	DaysMonitored    int           `json:"days_monitored"`
	Status           MonitorStatus `json:"status"`
	LastUpdate       time.Time     `json:"last_update"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	PriceHistory     []PricePoint  `json:"price_history"`
}

func (m *MonitoredSignal) Clone() *MonitoredSignal {
	if m == nil {
		return nil
	}
	out := *m
	out.ConfirmedSignal = m.ConfirmedSignal.Clone()
	out.PriceHistory = append([]PricePoint(nil), m.PriceHistory...)
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// MonitorStats aggregates the monitor's signal tables.
type MonitorStats struct {
	Total            int                  `json:"total"`
	Active           int                  `json:"active"`
	Completed        int                  `json:"completed"`
	Expired          int                  `json:"expired"`
	SuccessRatePct   float64              `json:"success_rate_pct"`
	AvgMaxProfit     float64              `json:"avg_max_profit"`
	AvgCurrentProfit float64              `json:"avg_current_profit"`
	BestSymbol       string               `json:"best_symbol,omitempty"`
	BestMaxProfit    float64              `json:"best_max_profit"`
	TotalSimPnL      float64              `json:"total_sim_pnl"`
	ByClass          map[QualityClass]int `json:"by_class"`
}
