// Package timewindow represents appointment time slots as half-open UTC
// intervals and centralizes the conversion between wall-clock input in the
// fixed reference timezone and absolute instants.
package timewindow

import (
	"errors"
	"fmt"
	"time"
)

// ReferenceZone is the fixed civil offset all slots are authored and
// displayed in: Brasília time, UTC-3. America/Sao_Paulo abolished DST in
// 2019, and a fixed offset keeps behavior independent of tzdata updates.
// Device locale is never consulted; callers pass this zone explicitly.
var ReferenceZone = time.FixedZone("-03", -3*60*60)

// ErrInvalidRange is returned when a window's end does not fall strictly
// after its start.
var ErrInvalidRange = errors.New("timewindow: end must be after start")

// Date is a calendar date with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Window is a half-open interval [Start, End). Both instants are stored in
// UTC regardless of how the window was constructed.
type Window struct {
	Start time.Time
	End   time.Time
}

// FromLocalParts combines a calendar date with two wall-clock times,
// interprets them in zone and converts to UTC instants. Seconds and smaller
// units are zeroed, matching what the pickers produce.
func FromLocalParts(date Date, start, end TimeOfDay, zone *time.Location) (Window, error) {
	s := time.Date(date.Year, date.Month, date.Day, start.Hour, start.Minute, 0, 0, zone)
	e := time.Date(date.Year, date.Month, date.Day, end.Hour, end.Minute, 0, 0, zone)
	return FromInstants(s, e)
}

// FromInstants builds a window from two absolute instants, normalizing to UTC.
func FromInstants(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ErrInvalidRange
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Parts is the presentation projection of a window in some zone.
type Parts struct {
	Date    Date
	Start   TimeOfDay
	End     TimeOfDay
	Weekday time.Weekday
}

// DisplayParts projects the window back onto a civil date and two wall-clock
// times in zone. The date is taken from the start instant.
func (w Window) DisplayParts(zone *time.Location) Parts {
	s := w.Start.In(zone)
	e := w.End.In(zone)
	return Parts{
		Date:    Date{Year: s.Year(), Month: s.Month(), Day: s.Day()},
		Start:   TimeOfDay{Hour: s.Hour(), Minute: s.Minute()},
		End:     TimeOfDay{Hour: e.Hour(), Minute: e.Minute()},
		Weekday: s.Weekday(),
	}
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Equal reports whether two windows cover the same (start, end) instant pair.
// No other field participates in equality.
func (w Window) Equal(other Window) bool {
	return w.Start.Equal(other.Start) && w.End.Equal(other.End)
}

// Before orders windows by (start, end).
func (w Window) Before(other Window) bool {
	if !w.Start.Equal(other.Start) {
		return w.Start.Before(other.Start)
	}
	return w.End.Before(other.End)
}
