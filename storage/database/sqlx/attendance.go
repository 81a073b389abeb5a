package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
)

const recordColumns = `id, student_id, date, status, check_in_time, note, location, recorded_by, created_at`

type recordRow struct {
	ID          string           `db:"id"`
	StudentID   string           `db:"student_id"`
	Date        clock.Date       `db:"date"`
	Status      string           `db:"status"`
	CheckInTime *clock.TimeOfDay `db:"check_in_time"`
	Note        null.String      `db:"note"`
	Location    null.JSON        `db:"location"`
	RecordedBy  string           `db:"recorded_by"`
	CreatedAt   time.Time        `db:"created_at"`
}

type attendanceRepository struct {
	exec core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func (repo attendanceRepository) toRow(rec attendance.Record) (recordRow, error) {
	row := recordRow{
		ID:          rec.ID,
		StudentID:   rec.StudentID,
		Date:        rec.Date,
		Status:      string(rec.Status),
		CheckInTime: rec.CheckInTime,
		Note:        null.NewString(rec.Note, rec.Note != ""),
		RecordedBy:  rec.RecordedBy,
		CreatedAt:   rec.CreatedAt.UTC(),
	}
	if rec.Location != nil {
		b, err := json.Marshal(rec.Location)
		if err != nil {
			return recordRow{}, errors.Wrap(err, "encoding location")
		}
		row.Location = null.JSONFrom(b)
	}
	return row, nil
}

func (repo attendanceRepository) fromRow(row recordRow) (attendance.Record, error) {
	rec := attendance.Record{
		ID:          row.ID,
		StudentID:   row.StudentID,
		Date:        row.Date,
		Status:      attendance.Status(row.Status),
		CheckInTime: row.CheckInTime,
		Note:        row.Note.String,
		RecordedBy:  row.RecordedBy,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.Location.Valid {
		loc := new(attendance.Location)
		if err := row.Location.Unmarshal(loc); err != nil {
			return attendance.Record{}, errors.Wrap(err, "decoding location")
		}
		rec.Location = loc
	}
	return rec, nil
}

func (repo attendanceRepository) fromRows(rows []recordRow) ([]attendance.Record, error) {
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// trapNoRowsErr maps psql "no rows" err to attendance.ErrNotFound
func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo attendanceRepository) GetRecord(ctx context.Context, studentID string, date clock.Date) (attendance.Record, error) {
	if !isUUID(studentID) {
		return attendance.Record{}, attendance.ErrNotFound
	}
	var row recordRow
	q := "SELECT " + recordColumns + " FROM attendance_records WHERE student_id = $1 AND date = $2"
	if err := repo.exec.GetContext(ctx, &row, q, studentID, date); err != nil {
		return attendance.Record{}, repo.trapNoRowsErr(err, "finding attendance record")
	}
	return repo.fromRow(row)
}

func (repo attendanceRepository) GetRecordByID(ctx context.Context, id string) (attendance.Record, error) {
	if !isUUID(id) {
		return attendance.Record{}, attendance.ErrNotFound
	}
	var row recordRow
	q := "SELECT " + recordColumns + " FROM attendance_records WHERE id = $1"
	if err := repo.exec.GetContext(ctx, &row, q, id); err != nil {
		return attendance.Record{}, repo.trapNoRowsErr(err, "finding attendance record")
	}
	return repo.fromRow(row)
}

// InsertRecordIfAbsent leans on the (student_id, date) unique constraint: a conflicting
// insert returns no row instead of failing.
func (repo attendanceRepository) InsertRecordIfAbsent(ctx context.Context, rec attendance.Record) (bool, attendance.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	row, err := repo.toRow(rec)
	if err != nil {
		return false, attendance.Record{}, err
	}

	q := `INSERT INTO attendance_records (` + recordColumns + `)
		VALUES (:id, :student_id, :date, :status, :check_in_time, :note, :location, :recorded_by, :created_at)
		ON CONFLICT (student_id, date) DO NOTHING
		RETURNING id`
	query, args, err := repo.exec.BindNamed(q, row)
	if err != nil {
		return false, attendance.Record{}, errors.Wrap(err, "binding attendance record")
	}

	var id string
	if err = repo.exec.GetContext(ctx, &id, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, attendance.Record{}, nil
		}
		return false, attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	rec.ID = id
	return true, rec, nil
}

func (repo attendanceRepository) ListRecordedStudentIDs(ctx context.Context, date clock.Date) ([]string, error) {
	var ids []string
	q := "SELECT student_id FROM attendance_records WHERE date = $1"
	if err := repo.exec.SelectContext(ctx, &ids, q, date); err != nil {
		return nil, errors.Wrap(err, "listing recorded students")
	}
	return ids, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter) ([]attendance.Record, error) {
	var w where

	if filter != nil && !filter.IsEmpty() {
		if !filter.DateFrom.IsZero() {
			w.add("date >= ?", filter.DateFrom)
		}
		if !filter.DateTo.IsZero() {
			w.add("date <= ?", filter.DateTo)
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, st := range filter.Statuses {
				statuses = append(statuses, string(st))
			}
			w.add("status IN (?)", statuses)
		}
		if filter.StudentIDs != nil {
			ids := validUUIDs(filter.StudentIDs)
			if len(ids) == 0 {
				return []attendance.Record{}, nil
			}
			w.add("student_id IN (?)", ids)
		}
		if filter.RecordedBy != "" {
			w.add("recorded_by = ?", filter.RecordedBy)
		}
	}

	q := "SELECT " + recordColumns + " FROM attendance_records" + w.String() + " ORDER BY date DESC, created_at DESC"
	query, args, err := build(repo.exec, q, w.args)
	if err != nil {
		return nil, err
	}

	var rows []recordRow
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return repo.fromRows(rows)
}

func (repo attendanceRepository) DeleteRecords(ctx context.Context, ids ...string) error {
	if ids = validUUIDs(ids); len(ids) == 0 {
		return nil
	}
	query, args, err := build(repo.exec, "DELETE FROM attendance_records WHERE id IN (?)", []interface{}{ids})
	if err != nil {
		return err
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting attendance records")
	}
	return nil
}
