// Package clock provides the school-local notion of "now" (UTC+7, WIB) and the civil
// date/time-of-day types the attendance policy is expressed in.
package clock

import "time"

// WIB is the school's fixed zone (UTC+7, no DST). It never depends on time.Local.
var WIB = time.FixedZone("WIB", 7*60*60)

// NowFunc is the instant source; overridden in tests.
var NowFunc = time.Now

// Clock returns the current instant expressed in WIB.
type Clock interface {
	Now() time.Time
}

// SchoolClock reads NowFunc and converts it to WIB.
type SchoolClock struct{}

func (SchoolClock) Now() time.Time { return NowFunc().In(WIB) }

// Func adapts a plain function into a Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f().In(WIB) }

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

// At builds an instant at the given WIB wall-clock time.
func At(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, WIB)
}

// Today returns the civil date c is currently on.
func Today(c Clock) Date {
	return DateOf(c.Now())
}
