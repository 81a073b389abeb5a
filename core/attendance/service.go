package attendance

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
)

type (
	Repository interface {
		GetRecord(ctx context.Context, studentID string, date clock.Date) (Record, error)
		GetRecordByID(ctx context.Context, id string) (Record, error)
		// InsertRecordIfAbsent atomically stores rec unless a record already exists for
		// (rec.StudentID, rec.Date). It reports whether rec was stored.
		InsertRecordIfAbsent(ctx context.Context, rec Record) (bool, Record, error)
		ListRecordedStudentIDs(ctx context.Context, date clock.Date) ([]string, error)
		// QueryRecords applies AND operation on available QueryFilter fields; a nil filter returns everything.
		QueryRecords(ctx context.Context, filter *QueryFilter) ([]Record, error)
		DeleteRecords(ctx context.Context, ids ...string) error
	}

	// Roster is the source of students expected to attend.
	Roster interface {
		ListRoster(ctx context.Context) ([]user.User, error)
		Supervisees(ctx context.Context, teacherID string) ([]user.User, error)
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		roster   Roster
		clock    clock.Clock
		validate *validator.Validate
	}

	// TodayStatus is what a student's check-in screen needs.
	TodayStatus struct {
		Now        time.Time  `json:"now"`
		Date       clock.Date `json:"date"`
		Phase      Phase      `json:"phase"`
		Window     Window     `json:"window"`
		Record     *Record    `json:"record"`
		CanCheckIn bool       `json:"can_check_in"`
	}
)

func NewService(repo Repository, roster Roster, clk clock.Clock, validate *validator.Validate) *Service {
	return &Service{repo: repo, roster: roster, clock: clk, validate: validate}
}

// CheckIn records today's attendance for student.
func (svc *Service) CheckIn(ctx context.Context, student user.User, data NewCheckIn) (Record, error) {
	now := svc.clock.Now()
	today := clock.DateOf(now)

	// an existing record wins over every other outcome, whatever the time
	existing, err := svc.getRecord(ctx, student.ID, today)
	if err != nil {
		return Record{}, err
	}
	if existing != nil {
		return Record{}, ErrDuplicateRecord
	}

	if err := data.Validate(svc.validate); err != nil {
		return Record{}, err
	}

	phase := Classify(now)
	if !CanCheckIn(now, existing) {
		return Record{}, ErrCheckInClosed
	}

	note := data.Note
	if phase == OpenLate {
		if note == "" {
			note = LateNote
		} else {
			note = LateNote + ": " + note
		}
	}
	checkInTime := clock.TimeOf(now)
	rec := Record{
		StudentID:   student.ID,
		Date:        today,
		Status:      data.Status,
		CheckInTime: &checkInTime,
		Note:        note,
		Location:    data.Location,
		RecordedBy:  student.SupervisorID,
		CreatedAt:   now.UTC(),
	}

	inserted, rec, err := svc.repo.InsertRecordIfAbsent(ctx, rec)
	if err != nil {
		return Record{}, errors.Wrap(err, "attendance.Service.CheckIn")
	}
	if !inserted {
		return Record{}, ErrDuplicateRecord
	}
	return rec, nil
}

// getRecord returns nil when the student has no record on date.
func (svc *Service) getRecord(ctx context.Context, studentID string, date clock.Date) (*Record, error) {
	rec, err := svc.repo.GetRecord(ctx, studentID, date)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "attendance.Service.getRecord")
	}
	return &rec, nil
}

func (svc *Service) Today(ctx context.Context, studentID string) (TodayStatus, error) {
	now := svc.clock.Now()
	today := clock.DateOf(now)
	rec, err := svc.getRecord(ctx, studentID, today)
	if err != nil {
		return TodayStatus{}, err
	}
	return TodayStatus{
		Now:        now,
		Date:       today,
		Phase:      Classify(now),
		Window:     WindowAt(now),
		Record:     rec,
		CanCheckIn: CanCheckIn(now, rec),
	}, nil
}

// Query returns the records actor may see that match filter:
// admins see everything, teachers their supervisees' and students their own.
func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter) ([]Record, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		students, err := svc.roster.Supervisees(ctx, actor.ID)
		if err != nil {
			return nil, errors.Wrap(err, "attendance.Service.Query")
		}
		allowed := make([]string, 0, len(students))
		for _, student := range students {
			if filter.StudentIDs == nil || containsString(filter.StudentIDs, student.ID) {
				allowed = append(allowed, student.ID)
			}
		}
		if len(allowed) == 0 {
			return []Record{}, nil
		}
		filter.StudentIDs = allowed
	default:
		filter.StudentIDs = []string{actor.ID}
	}
	return svc.repo.QueryRecords(ctx, filter)
}

// GetByID returns the record if actor may see it; ErrNotFound otherwise.
func (svc *Service) GetByID(ctx context.Context, actor user.User, id string) (Record, error) {
	rec, err := svc.repo.GetRecordByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	switch {
	case actor.IsAdmin(), rec.StudentID == actor.ID:
		return rec, nil
	case actor.IsTeacher():
		student, err := svc.roster.GetByID(ctx, rec.StudentID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return Record{}, ErrNotFound
			}
			return Record{}, errors.Wrap(err, "attendance.Service.GetByID")
		}
		if actor.Supervises(student) {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteRecords(ctx, ids...)
}
