package sqlxrepos

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
	"github.com/trezcool/pkl/storage/database"
)

// openTestDB connects to the postgres described by TEST_DATABASE_* and migrates it.
// The tests are skipped when TEST_DATABASE_NAME is not set.
func openTestDB(t *testing.T) *sqlx.DB {
	name := os.Getenv("TEST_DATABASE_NAME")
	if name == "" {
		t.Skip("TEST_DATABASE_NAME not set")
	}
	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:     "postgres",
		Host:       envOr("TEST_DATABASE_HOST", "localhost"),
		Port:       envOr("TEST_DATABASE_PORT", "5432"),
		Name:       name,
		User:       envOr("TEST_DATABASE_USER", "postgres"),
		Password:   os.Getenv("TEST_DATABASE_PASSWORD"),
		DisableTLS: true,
	}

	db, err := database.Open(conf)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db.DB))
	t.Cleanup(func() {
		_, _ = db.Exec("TRUNCATE attendance_records, users CASCADE")
		_ = db.Close()
	})
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestSqlxRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	records := NewAttendanceRepository(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	teacher, err := users.CreateUser(ctx, user.User{
		Name: "Bu Sari", Username: "busari", Email: "sari@school.id", IsActive: true,
		Roles: user.TeacherRoles, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	student, err := users.CreateUser(ctx, user.User{
		Name: "Andi", Username: "andi01", IsActive: true, Roles: user.StudentRoles,
		SupervisorID: teacher.ID, Company: "PT Maju Jaya", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	assert.Equal(t, user.ErrUsernameExists, users.CheckUsernameUniqueness(ctx, "andi01", ""))
	assert.NoError(t, users.CheckUsernameUniqueness(ctx, "andi01", "", student))

	active := true
	roster, err := users.QueryUsers(ctx, &user.QueryFilter{Roles: user.StudentRoles, IsActive: &active, SupervisorID: teacher.ID})
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, student.ID, roster[0].ID)
	assert.Equal(t, "PT Maju Jaya", roster[0].Company)

	day := clock.MustParseDate("2024-03-04")
	lat, lng := -6.2, 106.8
	checkIn := clock.ClockTime(7, 45, 12)
	ok, rec, err := records.InsertRecordIfAbsent(ctx, attendance.Record{
		StudentID:   student.ID,
		Date:        day,
		Status:      attendance.StatusPresent,
		CheckInTime: &checkIn,
		Location:    &attendance.Location{Latitude: &lat, Longitude: &lng},
		RecordedBy:  teacher.ID,
		CreatedAt:   now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := records.GetRecord(ctx, student.ID, day)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, day, got.Date)
	require.NotNil(t, got.CheckInTime)
	assert.Equal(t, checkIn, *got.CheckInTime)
	require.NotNil(t, got.Location)
	assert.Equal(t, lat, *got.Location.Latitude)

	// concurrent inserts for the same day never produce a second row
	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := records.InsertRecordIfAbsent(ctx, attendance.Record{
				StudentID: student.ID, Date: day, Status: attendance.StatusAbsent,
				RecordedBy: attendance.SystemRecorder, CreatedAt: now,
			})
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	for ok := range results {
		assert.False(t, ok)
	}

	ids, err := records.ListRecordedStudentIDs(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, ids)

	found, err := records.QueryRecords(ctx, &attendance.QueryFilter{
		DateFrom: day, DateTo: day, Statuses: []attendance.Status{attendance.StatusPresent}, StudentIDs: []string{student.ID, "not-a-uuid"},
	})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, records.DeleteRecords(ctx, rec.ID))
	_, err = records.GetRecordByID(ctx, rec.ID)
	assert.Equal(t, attendance.ErrNotFound, err)
}
