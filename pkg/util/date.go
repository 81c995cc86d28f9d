package util

import "time"

// DateLayout is the calendar-date format used for per-day keys.
const DateLayout = "2006-01-02"

// LocalDate returns the calendar date of t in loc.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// DailyBoundary returns the wall-clock instant hour:00 on the local date of t.
// Around DST gaps time.Date normalizes the missing hour forward.
func DailyBoundary(t time.Time, loc *time.Location, hour int) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), hour, 0, 0, 0, loc)
}

// LastBoundary returns the most recent hour:00 local boundary at or before t.
func LastBoundary(t time.Time, loc *time.Location, hour int) time.Time {
	b := DailyBoundary(t, loc, hour)
	if b.After(t) {
		lt := t.In(loc).AddDate(0, 0, -1)
		b = time.Date(lt.Year(), lt.Month(), lt.Day(), hour, 0, 0, 0, loc)
	}
	return b
}

// NextBoundary returns the first hour:00 local boundary strictly after t.
func NextBoundary(t time.Time, loc *time.Location, hour int) time.Time {
	b := DailyBoundary(t, loc, hour)
	if !b.After(t) {
		lt := t.In(loc).AddDate(0, 0, 1)
		b = time.Date(lt.Year(), lt.Month(), lt.Day(), hour, 0, 0, 0, loc)
	}
	return b
}
