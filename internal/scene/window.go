package scene

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format accepted for window bounds.
const DateLayout = "2006-01-02"

// Window is a closed interval of acquisition times. End is inclusive to the
// last instant of its calendar day when built with ParseWindow.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates that start does not follow end.
func NewWindow(start, end time.Time) (Window, error) {
	if end.Before(start) {
		return Window{}, fmt.Errorf("window end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Window{Start: start, End: end}, nil
}

// ParseWindow parses YYYY-MM-DD dates (UTC). RFC 3339 timestamps are also
// accepted and used as given.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseBound(start, false)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := parseBound(end, true)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	return NewWindow(s, e)
}

func parseBound(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Contains reports whether t falls inside the closed window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}
