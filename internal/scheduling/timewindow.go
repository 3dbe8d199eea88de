package scheduling

import (
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// TimeWindow is a calendar date plus a same-day [start, end) wall-clock
// interval. Start and End are minutes since midnight in the canonical
// timezone.
type TimeWindow struct {
	Date  string `json:"date"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// NewTimeWindow parses "YYYY-MM-DD", "HH:MM", "HH:MM" into a window.
func NewTimeWindow(date, start, end string) (TimeWindow, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return TimeWindow{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	s, err := parseClock(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return TimeWindow{}, err
	}
	w := TimeWindow{Date: date, Start: s, End: e}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Validate checks the start < end invariant.
func (w TimeWindow) Validate() error {
	if w.Start >= w.End {
		return errors.New("window start must be before end")
	}
	return nil
}

// Overlaps reports whether two windows intersect. Half-open semantics:
// back-to-back windows sharing only a boundary instant do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	if w.Date != other.Date {
		return false
	}
	return w.Start < other.End && other.Start < w.End
}

// DurationMinutes is the window length.
func (w TimeWindow) DurationMinutes() int {
	return w.End - w.Start
}

// StartAt resolves the window's start instant in loc.
func (w TimeWindow) StartAt(loc *time.Location) time.Time {
	return w.instant(w.Start, loc)
}

// EndAt resolves the window's end instant in loc.
func (w TimeWindow) EndAt(loc *time.Location) time.Time {
	return w.instant(w.End, loc)
}

func (w TimeWindow) instant(minutes int, loc *time.Location) time.Time {
	d, _ := time.ParseInLocation(dateLayout, w.Date, loc)
	return d.Add(time.Duration(minutes) * time.Minute)
}

// StartClock renders the start as "HH:MM".
func (w TimeWindow) StartClock() string { return clockString(w.Start) }

// EndClock renders the end as "HH:MM".
func (w TimeWindow) EndClock() string { return clockString(w.End) }

func clockString(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
