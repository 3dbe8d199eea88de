package scheduling

import "time"

// Clock supplies the current time in the canonical timezone. All schedule
// comparisons go through it so tests can simulate elapsed time.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type realClock struct {
	loc *time.Location
}

// NewClock builds a wall clock pinned to the named timezone.
func NewClock(tz string) (Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &realClock{loc: loc}, nil
}

func (c *realClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *realClock) Location() *time.Location { return c.loc }

// FakeClock is a manually-advanced clock for tests.
type FakeClock struct {
	Current time.Time
}

func (c *FakeClock) Now() time.Time           { return c.Current }
func (c *FakeClock) Location() *time.Location { return c.Current.Location() }

// Advance moves the fake clock forward.
func (c *FakeClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }
