// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
	logsvc "github.com/trezcool/pkl/services/logger"
)

// NewLogger returns a logger that discards its output and never reports to Rollbar.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), core.NewTestConfig())
}

// NewValidator returns a validator with every package's custom validations registered.
func NewValidator() *validator.Validate {
	validate, _ := NewValidation()
	return validate
}

// NewValidation returns a validator along with the translator its messages are registered on.
func NewValidation() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student placed at company and supervised by supervisorID.
func CreateStudent(t *testing.T, repo user.Repository, name, uname, supervisorID, company string) user.User {
	usr := user.User{
		Name:         name,
		Username:     uname,
		Email:        uname + "@school.id",
		Roles:        user.StudentRoles,
		IsActive:     true,
		SupervisorID: supervisorID,
		Company:      company,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return usr
}

// MutableClock is a clock.Clock tests can move around.
type MutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMutableClock(now time.Time) *MutableClock {
	return &MutableClock{now: now}
}

func (c *MutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.In(clock.WIB)
}

func (c *MutableClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
