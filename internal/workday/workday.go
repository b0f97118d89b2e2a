// Package workday implements calendar arithmetic that skips weekends.
package workday

import (
	"errors"
	"time"
)

var ErrNegativeDays = errors.New("subtracting working days is not supported")

const day = 24 * time.Hour

// AddWorkingDays returns start plus n working days, skipping Saturdays and
// Sundays. The week day of start is taken in start's location.
//
// Days are added as fixed 24h periods, so when the span crosses a daylight
// saving transition the result, read as local wall-clock time, is off by the
// DST delta (e.g. one hour earlier than start's time of day).
func AddWorkingDays(start time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, ErrNegativeDays
	}
	if n == 0 {
		return start, nil
	}

	weekendDays := max(n/5-1, 0) * 2
	switch wd := start.Weekday(); wd {
	case time.Saturday:
		weekendDays += 2
	case time.Sunday:
		weekendDays++
	default:
		if int(time.Friday-wd) < n {
			weekendDays += 2
		}
	}

	return start.Add(time.Duration(n+weekendDays) * day), nil
}
