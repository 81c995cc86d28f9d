package models

import "time"

type EventKind string

const (
	EventCandidate        EventKind = "candidate"
	EventConfirmed        EventKind = "confirmed"
	EventRejected         EventKind = "rejected"
	EventExpired          EventKind = "expired"
	EventMonitorCompleted EventKind = "monitor_completed"
	EventMonitorExpired   EventKind = "monitor_expired"
	EventDailyReset       EventKind = "daily_reset"
)

// SignalEvent is published to the event bus, the live feed and the notifier.
type SignalEvent struct {
	ID          string       `json:"id"`
	Kind        EventKind    `json:"kind"`
	SignalID    string       `json:"signal_id,omitempty"`
	Symbol      string       `json:"symbol,omitempty"`
	Direction   Direction    `json:"direction,omitempty"`
	Quality     float64      `json:"quality,omitempty"`
	Class       QualityClass `json:"class,omitempty"`
	EntryPrice  float64      `json:"entry_price,omitempty"`
	TargetPrice float64      `json:"target_price,omitempty"`
	Reasons     []string     `json:"reasons,omitempty"`
	Profit      float64      `json:"profit,omitempty"`
	SimValue    float64      `json:"sim_value,omitempty"`
	Count       int          `json:"count,omitempty"`
	At          time.Time    `json:"at"`
}
