package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
)

const sweepSummaryTemplate = "sweep_summary"

type (
	// Sweeper closes a school day by recording every student without a record as absent.
	Sweeper struct {
		repo    Repository
		roster  Roster
		clock   clock.Clock
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}

	SweepFailure struct {
		StudentID string `json:"student_id"`
		Error     string `json:"error"`
	}

	SweepResult struct {
		Date      clock.Date     `json:"date"`
		Processed int            `json:"processed"` // absent records inserted by this run
		Skipped   int            `json:"skipped"`   // records that appeared concurrently
		Failures  []SweepFailure `json:"failures,omitempty"`
		Absent    []string       `json:"-"` // ids of the students marked absent by this run
	}

	sweepSummary struct {
		Supervisor string
		Date       string
		Students   []string
	}
)

func NewSweeper(
	repo Repository,
	roster Roster,
	clk clock.Clock,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Sweeper {
	return &Sweeper{
		repo:    repo,
		roster:  roster,
		clock:   clk,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// Failed is the number of students the run could not record.
func (r SweepResult) Failed() int { return len(r.Failures) }

func (s *Sweeper) workers() int {
	if s.conf != nil && s.conf.Sweep.Workers > 0 {
		return s.conf.Sweep.Workers
	}
	return 1
}

func (s *Sweeper) insertTimeout() time.Duration {
	if s.conf != nil && s.conf.Sweep.InsertTimeout > 0 {
		return s.conf.Sweep.InsertTimeout
	}
	return 5 * time.Second
}

// Run sweeps day (today when zero). A day can only be swept once its cutoff has passed:
// earlier runs return ErrPrematureSweep without touching storage.
// Per-student insert failures are collected in the result; they never abort the run.
func (s *Sweeper) Run(ctx context.Context, day clock.Date) (SweepResult, error) {
	now := s.clock.Now()
	nowDate := clock.DateOf(now)
	if day.IsZero() {
		day = nowDate
	}
	res := SweepResult{Date: day}

	if day.After(nowDate) || (day == nowDate && Classify(now) != Closed) {
		return res, ErrPrematureSweep
	}

	students, err := s.roster.ListRoster(ctx)
	if err != nil {
		return res, errors.Wrap(err, "attendance.Sweeper.Run: roster")
	}
	recordedIDs, err := s.repo.ListRecordedStudentIDs(ctx, day)
	if err != nil {
		return res, errors.Wrap(err, "attendance.Sweeper.Run: recorded students")
	}
	recorded := make(map[string]struct{}, len(recordedIDs))
	for _, id := range recordedIDs {
		recorded[id] = struct{}{}
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		absent []user.User
	)
	g.SetLimit(s.workers())

	for _, student := range students {
		if _, ok := recorded[student.ID]; ok {
			continue
		}
		student := student
		g.Go(func() error {
			inserted, err := s.markAbsent(ctx, student, day, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failures = append(res.Failures, SweepFailure{StudentID: student.ID, Error: err.Error()})
			case inserted:
				res.Processed++
				absent = append(absent, student)
			default:
				res.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through res

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].StudentID < res.Failures[j].StudentID })
	sort.Slice(absent, func(i, j int) bool { return absent[i].Name < absent[j].Name })
	for _, student := range absent {
		res.Absent = append(res.Absent, student.ID)
	}

	s.logger.Info(fmt.Sprintf(
		"attendance sweep %s: roster=%d processed=%d skipped=%d failed=%d",
		day, len(students), res.Processed, res.Skipped, res.Failed(),
	))
	for _, f := range res.Failures {
		s.logger.Error(fmt.Sprintf("attendance sweep %s: student %s: %s", day, f.StudentID, f.Error))
	}

	if len(absent) > 0 && s.conf != nil && s.conf.Sweep.NotifySupervisors {
		s.notifySupervisors(ctx, day, absent)
	}
	return res, nil
}

func (s *Sweeper) markAbsent(ctx context.Context, student user.User, day clock.Date, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.insertTimeout())
	defer cancel()

	inserted, _, err := s.repo.InsertRecordIfAbsent(ctx, Record{
		StudentID:  student.ID,
		Date:       day,
		Status:     StatusAbsent,
		RecordedBy: SystemRecorder,
		CreatedAt:  now.UTC(),
	})
	return inserted, err
}

// notifySupervisors emails every supervising teacher the list of their students marked absent.
func (s *Sweeper) notifySupervisors(ctx context.Context, day clock.Date, absent []user.User) {
	if s.mailSvc == nil {
		return
	}

	bySupervisor := make(map[string][]user.User)
	for _, student := range absent {
		if student.SupervisorID == "" {
			continue
		}
		bySupervisor[student.SupervisorID] = append(bySupervisor[student.SupervisorID], student)
	}

	messages := make([]*core.EmailMessage, 0, len(bySupervisor))
	for supID, students := range bySupervisor {
		sup, err := s.roster.GetByID(ctx, supID)
		if err != nil {
			s.logger.Error(fmt.Sprintf("attendance sweep %s: supervisor %s: %v", day, supID, err), err)
			continue
		}
		if sup.Email == "" || !sup.IsActive {
			continue
		}

		summary := sweepSummary{Supervisor: sup.Name, Date: day.String()}
		for _, student := range students {
			line := student.Name
			if student.Company != "" {
				line += " (" + student.Company + ")"
			}
			summary.Students = append(summary.Students, line)
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: sup.Name, Address: sup.Email}},
			Subject:      fmt.Sprintf("Absent students on %s", day),
			TemplateName: sweepSummaryTemplate,
			TemplateData: summary,
		})
	}

	if len(messages) > 0 {
		s.mailSvc.SendMessages(messages...)
	}
}
