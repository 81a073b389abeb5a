package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/pkl/apps/api/echo"
	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/user"
	emailsvc "github.com/trezcool/pkl/services/email"
	inmemdb "github.com/trezcool/pkl/storage/database/inmem"
	"github.com/trezcool/pkl/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	conf    *core.Config
	server  *echoapi.Server
	clk     *testutil.MutableClock
	usrRepo user.Repository
	recRepo attendance.Repository
}

func setup(t *testing.T, now time.Time) *testApp {
	return setupWithConf(t, now, core.NewTestConfig())
}

func setupWithConf(t *testing.T, now time.Time, conf *core.Config) *testApp {
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidation()
	clk := testutil.NewMutableClock(now)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	recRepo := inmemdb.NewAttendanceRepository(db)

	// set up services
	usrSvc := user.NewService(usrRepo)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Clock:          clk,
		UserSvc:        usrSvc,
		AttendanceSvc:  attendance.NewService(recRepo, usrSvc, clk, validate),
		Sweeper:        attendance.NewSweeper(recRepo, usrSvc, clk, mailSvc, logger, conf),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &testApp{
		conf:    conf,
		server:  server,
		clk:     clk,
		usrRepo: usrRepo,
		recRepo: recRepo,
	}
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	for k, v := range tt.headers {
		req.Header.Set(k, v)
	}
	app.do(req, rec)
	checkCodeAndData(t, tt, rec)
	return rec
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	headers  map[string]string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshalList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}
