package util

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used by upstream range queries.
const DateLayout = "2006-01-02"

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FromMillis converts an epoch-milliseconds timestamp to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// DateRange resolves optional start/end dates. A missing end is now, a
// missing start is lookback before end.
func DateRange(start, end string, now time.Time, lookback time.Duration) (time.Time, time.Time, error) {
	to := now
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		to = t
	}
	from := to.Add(-lookback)
	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is after end date %s", FormatDate(from), FormatDate(to))
	}
	return from, to, nil
}
