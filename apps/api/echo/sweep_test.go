package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/pkl/apps/api/echo"
	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/user"
	"github.com/trezcool/pkl/testutil"
)

func Test_sweepApi(t *testing.T) {
	app := setup(t, lateTime)
	ctx := context.Background()

	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@school.id", "", user.AdminRoles, true)
	teacher := testutil.CreateUser(t, app.usrRepo, "Bu Sari", "busari", "sari@school.id", "", user.TeacherRoles, true)
	s1 := testutil.CreateStudent(t, app.usrRepo, "Andi", "andi01", teacher.ID, "")
	s2 := testutil.CreateStudent(t, app.usrRepo, "Budi", "budi01", teacher.ID, "")
	s3 := testutil.CreateStudent(t, app.usrRepo, "Citra", "citra01", "", "")

	app.run(t, httpTest{
		method: http.MethodPost, path: "/v1/attendance/check-in", token: app.token(t, s1),
		body: []byte(`{"status":"present"}`), wantCode: http.StatusCreated,
	})

	key := map[string]string{"X-Sweep-Key": app.conf.Sweep.TriggerKey}
	notYet := marshalObj(t, echoapi.MessageResponse{Message: "not yet time"})
	result := func(date string, processed, skipped, failed int) []byte {
		return marshalObj(t, map[string]interface{}{"date": date, "processed": processed, "skipped": skipped, "failed": failed})
	}

	before := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/sweep", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Wrong key", method: http.MethodPost, path: "/v1/sweep", headers: map[string]string{"X-Sweep-Key": "nope"},
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "invalid sweep key"}),
		},
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/sweep", token: app.token(t, teacher),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Before cutoff (key)", method: http.MethodPost, path: "/v1/sweep", headers: key, wantData: notYet},
		{name: "Before cutoff (admin)", method: http.MethodPost, path: "/v1/sweep", token: app.token(t, admin), wantData: notYet},
		{name: "Future day", method: http.MethodPost, path: "/v1/sweep", headers: key, body: []byte(`{"date":"2024-03-05"}`), wantData: notYet},
	}
	for _, tt := range before {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	ids, err := app.recRepo.ListRecordedStudentIDs(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{s1.ID}, ids)

	app.clk.Set(afterCut)
	after := []httpTest{
		{name: "Sweep today", method: http.MethodPost, path: "/v1/sweep", headers: key, wantData: result("2024-03-04", 2, 0, 0)},
		{name: "Sweep again", method: http.MethodPost, path: "/v1/sweep", token: app.token(t, admin), wantData: result("2024-03-04", 0, 0, 0)},
		{
			name: "Sweep past day", method: http.MethodPost, path: "/v1/sweep", headers: key, body: []byte(`{"date":"2024-03-01"}`),
			wantData: result("2024-03-01", 3, 0, 0),
		},
		{name: "Bad date", method: http.MethodPost, path: "/v1/sweep", headers: key, body: []byte(`{"date":"yesterday"}`), wantCode: http.StatusBadRequest},
	}
	for _, tt := range after {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	for _, student := range []user.User{s2, s3} {
		rec, err := app.recRepo.GetRecord(ctx, student.ID, monday)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusAbsent, rec.Status)
		assert.Nil(t, rec.CheckInTime)
	}
	rec, err := app.recRepo.GetRecord(ctx, s1.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, rec.Status)
}

func Test_sweepApi_keyDisabled(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Sweep.TriggerKey = ""
	app := setupWithConf(t, afterCut, conf)

	app.run(t, httpTest{
		method: http.MethodPost, path: "/v1/sweep", headers: map[string]string{"X-Sweep-Key": ""},
		wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
	})
	app.run(t, httpTest{
		method: http.MethodPost, path: "/v1/sweep", headers: map[string]string{"X-Sweep-Key": "anything"},
		wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "invalid sweep key"}),
	})
}
