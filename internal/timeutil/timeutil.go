package timeutil

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("invalid date range")

// DayRange is an inclusive range of calendar days, both bounds normalized to
// midnight UTC.
type DayRange struct {
	start time.Time
	end   time.Time
}

// TruncateToDay normalizes the timestamp to midnight UTC. All usage counters
// key on UTC days so that the existence check and the write agree on "today"
// regardless of server locale.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDayRange builds an inclusive day range from arbitrary timestamps.
func NewDayRange(start, end time.Time) (DayRange, error) {
	s := TruncateToDay(start)
	e := TruncateToDay(end)
	if e.Before(s) {
		return DayRange{}, ErrInvalidRange
	}
	return DayRange{start: s, end: e}, nil
}

// LastNDays returns the range covering the n days ending with now's day.
func LastNDays(now time.Time, n int) DayRange {
	if n < 1 {
		n = 1
	}
	end := TruncateToDay(now)
	return DayRange{start: end.AddDate(0, 0, -(n - 1)), end: end}
}

// Start returns the first day of the range.
func (r DayRange) Start() time.Time { return r.start }

// End returns the last day of the range, inclusive.
func (r DayRange) End() time.Time { return r.end }

// Days returns the number of calendar days covered.
func (r DayRange) Days() int {
	return int(r.end.Sub(r.start)/(24*time.Hour)) + 1
}

// Contains reports whether the timestamp's day falls within the range.
func (r DayRange) Contains(ts time.Time) bool {
	day := TruncateToDay(ts)
	return !day.Before(r.start) && !day.After(r.end)
}
