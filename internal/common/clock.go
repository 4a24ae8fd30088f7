package common

import (
	"fmt"
	"time"
)

// DateKeyFormat is the layout of cache date keys.
const DateKeyFormat = "2006-01-02"

// Clock produces the calendar-date key used for freshness checks.
// The location is explicit: a host whose zone differs from the market's
// would otherwise flip dates near midnight.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a clock for the IANA zone name; empty means host local time.
func NewClock(timezone string) (*Clock, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
		}
		loc = l
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixedClock returns a clock whose current time is supplied by now. Used in tests.
func NewFixedClock(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc, now: now}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// TodayKey returns today's date as YYYY-MM-DD in the clock's location.
func (c *Clock) TodayKey() string {
	return c.Now().Format(DateKeyFormat)
}

// Location returns the configured location.
func (c *Clock) Location() *time.Location {
	return c.loc
}
