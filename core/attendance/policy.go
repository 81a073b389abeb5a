package attendance

import (
	"time"

	"github.com/trezcool/pkl/core/clock"
)

// School-local check-in window. Both bounds are WIB wall-clock times.
const (
	OnTimeDeadline = clock.TimeOfDay(8 * time.Hour)  // check-ins at or after this are late
	Cutoff         = clock.TimeOfDay(15 * time.Hour) // check-ins at or after this are refused
)

// Phase is where an instant falls in the day's check-in window.
type Phase int

const (
	Open Phase = iota
	OpenLate
	Closed
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "open"
	case OpenLate:
		return "open_late"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Classify places now in the check-in window: before 08:00 is Open,
// [08:00, 15:00) is OpenLate and 15:00 onwards is Closed.
func Classify(now time.Time) Phase {
	tod := clock.TimeOf(now)
	switch {
	case tod < OnTimeDeadline:
		return Open
	case tod < Cutoff:
		return OpenLate
	default:
		return Closed
	}
}

// CanCheckIn reports whether a student holding existing (nil if none) may still check in at now.
func CanCheckIn(now time.Time, existing *Record) bool {
	return existing == nil && Classify(now) != Closed
}

// Window is the derived state of the check-in window at an instant.
type Window struct {
	IsCheckInOpen   bool `json:"is_check_in_open"`
	IsLate          bool `json:"is_late"`
	IsSweepEligible bool `json:"is_sweep_eligible"`
}

func WindowAt(now time.Time) Window {
	phase := Classify(now)
	return Window{
		IsCheckInOpen:   phase != Closed,
		IsLate:          phase == OpenLate,
		IsSweepEligible: phase == Closed,
	}
}
