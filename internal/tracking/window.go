package tracking

import (
	"fmt"
	"time"
)

// DayLayout is the wire format of a calendar day.
const DayLayout = "2006-01-02"

// Window is a half-open [Start, End) interval of UTC instants.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the window from local midnight of day's calendar
// date in loc to the following local midnight. The window is 23 or 25
// hours long on daylight saving transitions.
func DayWindow(day time.Time, loc *time.Location) Window {
	y, m, d := day.Date()
	return Window{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc).UTC(),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc).UTC(),
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Today returns now expressed in loc, so that its calendar date is the
// local date.
func Today(now time.Time, loc *time.Location) time.Time {
	return now.In(loc)
}

// ParseDay parses a YYYY-MM-DD date. An empty string yields today's
// date in loc.
func ParseDay(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return Today(now, loc), nil
	}
	day, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day must be YYYY-MM-DD", ErrInvalidInput)
	}
	return day, nil
}
