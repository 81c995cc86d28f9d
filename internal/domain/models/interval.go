package models

import "time"

// Interval is a kline resolution as the venue names it.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval8h:  8 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval3d:  72 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// IsValidInterval returns true if i is a supported interval.
func IsValidInterval(i Interval) bool {
	_, ok := intervalDurations[i]
	return ok
}

// Duration returns the bar length, or 0 for unknown intervals.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// DefaultKlinesTTL is the cache lifetime for an interval tier:
// up to 3h bars 180s, up to 12h bars 600s, daily and above 1800s.
// Unknown intervals get the short tier.
func DefaultKlinesTTL(i Interval) time.Duration {
	d := i.Duration()
	switch {
	case d == 0 || d <= 3*time.Hour:
		return 180 * time.Second
	case d <= 12*time.Hour:
		return 600 * time.Second
	default:
		return 1800 * time.Second
	}
}
