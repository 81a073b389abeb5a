package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/clock"
)

type Status string

// Statuses
const (
	StatusPresent Status = "present"
	StatusSick    Status = "sick"
	StatusLeave   Status = "leave"
	StatusAbsent  Status = "absent" // only ever entered by the sweep
)

var (
	// CheckInStatuses are the statuses a student may submit.
	CheckInStatuses = []Status{StatusPresent, StatusSick, StatusLeave}
	AllStatuses     = []Status{StatusPresent, StatusSick, StatusLeave, StatusAbsent}
)

const (
	// SystemRecorder is the recorded_by value of sweep-entered records.
	SystemRecorder = "system"
	LateNote       = "late"
)

var (
	// errors
	ErrNotFound        = errors.New("attendance record not found")
	ErrDuplicateRecord = errors.New("attendance already recorded for today")
	ErrCheckInClosed   = errors.New("check-in is closed for today")
	ErrPrematureSweep  = errors.New("not yet time")
)

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Location is where a check-in was made: coordinates, a named place, or both.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	Place     string   `json:"place,omitempty" validate:"omitempty,max=255"`
}

// Record is the attendance of one student on one school day.
type Record struct {
	ID          string           `json:"id"`
	StudentID   string           `json:"student_id"`
	Date        clock.Date       `json:"date"`
	Status      Status           `json:"status"`
	CheckInTime *clock.TimeOfDay `json:"check_in_time"` // nil for sweep-entered records
	Note        string           `json:"note,omitempty"`
	Location    *Location        `json:"location,omitempty"`
	RecordedBy  string           `json:"recorded_by"`
	CreatedAt   time.Time        `json:"created_at"` // UTC
}

// NewCheckIn is what a student submits to record the day's attendance.
type NewCheckIn struct {
	Status   Status    `json:"status" validate:"required,attendance_status"`
	Note     string    `json:"note" validate:"omitempty,max=255"`
	Location *Location `json:"location"`
}

func (nc *NewCheckIn) Validate(validate *validator.Validate) error {
	nc.Status = Status(core.CleanString(string(nc.Status), true /* lower */))
	nc.Note = core.CleanString(nc.Note)
	if nc.Location != nil {
		nc.Location.Place = core.CleanString(nc.Location.Place)
	}
	return validate.Struct(nc)
}

type QueryFilter struct {
	DateFrom   clock.Date `query:"date_from"`
	DateTo     clock.Date `query:"date_to"`
	Statuses   []Status   `query:"status"`
	StudentIDs []string   `query:"student_id"`
	RecordedBy string     `query:"recorded_by"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.DateFrom.IsZero() && qf.DateTo.IsZero() && len(qf.Statuses) == 0 &&
		qf.StudentIDs == nil && qf.RecordedBy == ""
}

// Match reports whether rec satisfies every set field of the filter.
func (qf *QueryFilter) Match(rec Record) bool {
	if qf == nil || qf.IsEmpty() {
		return true
	}
	if !qf.DateFrom.IsZero() && rec.Date.Before(qf.DateFrom) {
		return false
	}
	if !qf.DateTo.IsZero() && rec.Date.After(qf.DateTo) {
		return false
	}
	if len(qf.Statuses) > 0 && !containsStatus(qf.Statuses, rec.Status) {
		return false
	}
	if qf.StudentIDs != nil && !containsString(qf.StudentIDs, rec.StudentID) {
		return false
	}
	if qf.RecordedBy != "" && rec.RecordedBy != qf.RecordedBy {
		return false
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
