package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func dayKey(studentID string, date clock.Date) string {
	return studentID + "|" + date.String()
}

func (repo *attendanceRepository) GetRecord(_ context.Context, studentID string, date clock.Date) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if id, ok := repo.db.byDay[dayKey(studentID, date)]; ok {
		return *repo.db.table[id], nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetRecordByID(_ context.Context, id string) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

// InsertRecordIfAbsent checks and inserts under one write lock.
func (repo *attendanceRepository) InsertRecordIfAbsent(ctx context.Context, rec attendance.Record) (bool, attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return false, attendance.Record{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := dayKey(rec.StudentID, rec.Date)
	if _, ok := repo.db.byDay[key]; ok {
		return false, attendance.Record{}, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	repo.db.table[rec.ID] = &rec
	repo.db.byDay[key] = rec.ID
	return true, rec, nil
}

func (repo *attendanceRepository) ListRecordedStudentIDs(_ context.Context, date clock.Date) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for _, rec := range repo.db.table {
		if rec.Date == date {
			ids = append(ids, rec.StudentID)
		}
	}
	return ids, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter *attendance.QueryFilter) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.table {
		if filter.Match(*rec) {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (repo *attendanceRepository) DeleteRecords(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		if rec, ok := repo.db.table[id]; ok {
			delete(repo.db.byDay, dayKey(rec.StudentID, rec.Date))
			delete(repo.db.table, id)
		}
	}
	return nil
}
