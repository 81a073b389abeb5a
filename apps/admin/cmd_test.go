package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
	inmemdb "github.com/trezcool/pkl/storage/database/inmem"
	"github.com/trezcool/pkl/testutil"
)

type cliFixture struct {
	cli     *commandLine
	usrRepo user.Repository
	recRepo attendance.Repository
	clk     *testutil.MutableClock
	out     *bytes.Buffer
}

func setup(t *testing.T) *cliFixture {
	db := inmemdb.Open()
	f := &cliFixture{
		usrRepo: inmemdb.NewUserRepository(db),
		recRepo: inmemdb.NewAttendanceRepository(db),
		clk:     testutil.NewMutableClock(clock.At(2024, 3, 4, 10, 0, 0)),
		out:     new(bytes.Buffer),
	}
	conf := core.NewTestConfig()
	conf.Sweep.NotifySupervisors = false
	sweeper := attendance.NewSweeper(f.recRepo, user.NewService(f.usrRepo), f.clk, nil, testutil.NewLogger(), conf)

	// db stays nil: goose is mocked
	f.cli = &commandLine{
		usrRepo: f.usrRepo,
		sweeper: sweeper,
		out:     f.out,
	}
	return f
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || !strings.Contains(errors.Cause(err).Error(), tt.wantErrStr) {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	defer func() { gooseRunFunc = nil }()

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "holidays", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Bu Sari", "busari", "sari@school.id", "", user.TeacherRoles, true)
	student := testutil.CreateStudent(t, f.usrRepo, "Andi", "andi01", "", "")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "dewi01", "-student"}, wantErr: errHelp},
		{name: "no role", args: []string{"adduser", "-username", "dewi01"}, extra: "Xk9#mPq2vL", wantErr: errNoRole},
		{
			name: "supervisor is not a teacher", args: []string{"adduser", "-username", "dewi01", "-student", "-supervisor", student.ID},
			extra: "Xk9#mPq2vL", wantErr: user.ErrInvalidSupervisor,
		},
		{
			name: "supervisor for a teacher", args: []string{"adduser", "-username", "dewi01", "-teacher", "-supervisor", teacher.ID},
			extra: "Xk9#mPq2vL", wantErrStr: "only students can have a supervisor",
		},
		{
			name: "student", args: []string{"adduser", "-username", "Dewi01", "-email", "dewi@school.id", "-name", "Dewi", "-student", "-supervisor", teacher.ID, "-company", "CV Sinar"},
			extra: "Xk9#mPq2vL",
		},
		{name: "admin", args: []string{"adduser", "-email", "root@school.id", "-admin"}, extra: "Xk9#mPq2vL"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}

	dewi, err := f.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "dewi01"})
	require.NoError(t, err)
	assert.Equal(t, "Dewi", dewi.Name)
	assert.Equal(t, "dewi@school.id", dewi.Email)
	assert.Equal(t, user.StudentRoles, dewi.Roles)
	assert.Equal(t, teacher.ID, dewi.SupervisorID)
	assert.Equal(t, "CV Sinar", dewi.Company)
	assert.True(t, dewi.IsActive)
	assert.NoError(t, dewi.CheckPassword("Xk9#mPq2vL"))

	root, err := f.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "root@school.id"})
	require.NoError(t, err)
	assert.True(t, root.IsAdmin())

	t.Run("updates an existing user", func(t *testing.T) {
		mockPassword("N3w#Passw0rd")
		require.NoError(t, f.cli.run([]string{"admin", "adduser", "-username", "dewi01", "-teacher"}))

		users, err := f.usrRepo.QueryUsers(ctx, &user.QueryFilter{Search: "dewi"})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, user.TeacherRoles, users[0].Roles)
		assert.Empty(t, users[0].SupervisorID)
		assert.Equal(t, "dewi@school.id", users[0].Email)
		assert.NoError(t, users[0].CheckPassword("N3w#Passw0rd"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)

	usr := testutil.CreateUser(t, f.usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", strings.ToUpper(usr.Email)}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := f.cli.run(args)
			checkErr(t, tt, err)
			if err == nil {
				refreshedUsr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_sweep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s1 := testutil.CreateStudent(t, f.usrRepo, "Andi", "andi01", "", "")
	s2 := testutil.CreateStudent(t, f.usrRepo, "Budi", "budi01", "", "")
	_, _, err := f.recRepo.InsertRecordIfAbsent(ctx, attendance.Record{
		StudentID: s1.ID, Date: clock.MustParseDate("2024-03-04"), Status: attendance.StatusPresent,
	})
	require.NoError(t, err)

	tests := []struct {
		cliTest
		wantOut string
		at      string
	}{
		{cliTest: cliTest{name: "bad date", args: []string{"sweep", "-date", "04/03/2024"}, wantErrStr: `cannot parse "04/03/2024"`}},
		{cliTest: cliTest{name: "before cutoff", args: []string{"sweep"}}, wantOut: "not yet time\n"},
		{cliTest: cliTest{name: "future day", args: []string{"sweep", "-date", "2024-03-05"}}, wantOut: "not yet time\n"},
		{cliTest: cliTest{name: "past day", args: []string{"sweep", "-date", "2024-03-01"}}, wantOut: "date=2024-03-01 processed=2 skipped=0 failed=0\n"},
		{cliTest: cliTest{name: "after cutoff", args: []string{"sweep"}}, at: "15:00:00", wantOut: "date=2024-03-04 processed=1 skipped=0 failed=0\n"},
		{cliTest: cliTest{name: "again", args: []string{"sweep", "-date", "2024-03-04"}}, wantOut: "date=2024-03-04 processed=0 skipped=0 failed=0\n"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if tt.at != "" {
				tod, err := clock.ParseTimeOfDay(tt.at)
				require.NoError(t, err)
				f.clk.Set(clock.MustParseDate("2024-03-04").At(tod))
			}
			f.out.Reset()
			checkErr(t, tt.cliTest, f.cli.run(args))
			assert.Equal(t, tt.wantOut, f.out.String())
		})
	}

	rec, err := f.recRepo.GetRecord(ctx, s2.ID, clock.MustParseDate("2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, rec.Status)
}
