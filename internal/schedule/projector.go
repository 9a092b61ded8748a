// Package schedule projects weekly visit patterns onto concrete calendar
// dates. All date arithmetic happens at midnight in a single reference
// location to avoid off-by-one errors across offsets.
package schedule

import (
	"time"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
)

// Normalize truncates a timestamp to midnight in the reference location.
func Normalize(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Window returns the inclusive reconciliation window ending at cutoff.
func Window(cutoff time.Time, lookbackDays int, loc *time.Location) (time.Time, time.Time) {
	end := Normalize(cutoff, loc)
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return end.AddDate(0, 0, -lookbackDays), end
}

// Project returns, in ascending order, every calendar date in the inclusive
// window whose weekday belongs to the visit pattern. Both bounds are
// normalized to midnight in their own location before iterating; an empty
// pattern or an inverted window yields no dates.
func Project(pattern models.Weekdays, windowStart, windowEnd time.Time) []time.Time {
	if len(pattern) == 0 {
		return nil
	}
	start := time.Date(windowStart.Year(), windowStart.Month(), windowStart.Day(), 0, 0, 0, 0, windowStart.Location())
	end := time.Date(windowEnd.Year(), windowEnd.Month(), windowEnd.Day(), 0, 0, 0, 0, windowEnd.Location())

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if pattern.Contains(d.Weekday()) {
			dates = append(dates, d)
		}
	}
	return dates
}
