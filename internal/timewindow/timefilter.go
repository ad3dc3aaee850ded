package timewindow

import (
	"fmt"
	"time"
)

// TimeFilter narrows availability and schedule listings to a civil period.
// Values match the wire format of the scheduling service.
type TimeFilter string

const (
	FilterDay   TimeFilter = "DAY"
	FilterWeek  TimeFilter = "WEEK"
	FilterMonth TimeFilter = "MONTH"
	FilterAll   TimeFilter = "ALL"
)

// ParseTimeFilter validates a wire value.
func ParseTimeFilter(s string) (TimeFilter, error) {
	switch TimeFilter(s) {
	case FilterDay, FilterWeek, FilterMonth, FilterAll:
		return TimeFilter(s), nil
	}
	return "", fmt.Errorf("timewindow: unknown time filter %q", s)
}

// Range resolves the filter to a half-open [start, end) period around now,
// computed in now's location. Weeks start on Monday. FilterAll returns
// ok=false: no bound applies.
func (f TimeFilter) Range(now time.Time) (start, end time.Time, ok bool) {
	switch f {
	case FilterDay:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 0, 1), true
	case FilterWeek:
		offset := (int(now.Weekday()) + 6) % 7
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), true
	case FilterMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), true
	}
	return time.Time{}, time.Time{}, false
}

// Contains reports whether t falls inside the filter's period around now.
func (f TimeFilter) Contains(now, t time.Time) bool {
	start, end, ok := f.Range(now)
	if !ok {
		return true
	}
	return !t.Before(start) && t.Before(end)
}
