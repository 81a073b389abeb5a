package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/user"
)

var errNoRole = errors.New("one of -admin, -teacher or -student is required")

type addUserArgs struct {
	name, uname, email, pwd string
	isAdmin                 bool
	isTeacher               bool
	isStudent               bool
	supervisorID, company   string
}

func (a addUserArgs) roles() []string {
	var roles []string
	if a.isAdmin {
		roles = append(roles, user.AdminRoles...)
	}
	if a.isTeacher {
		roles = append(roles, user.TeacherRoles...)
	}
	if a.isStudent {
		roles = append(roles, user.StudentRoles...)
	}
	return roles
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(args addUserArgs) error {
	ctx := context.Background()
	uname := core.CleanString(args.uname, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)
	supervisorID := core.CleanString(args.supervisorID, true /* lower */)

	roles := args.roles()
	if len(roles) == 0 {
		return errNoRole
	}
	if supervisorID != "" {
		if !args.isStudent {
			return errors.New("only students can have a supervisor")
		}
		sup, err := cli.usrRepo.GetUser(ctx, user.GetFilter{ID: supervisorID})
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return user.ErrInvalidSupervisor
			}
			return err
		}
		if !sup.IsActive || !sup.IsTeacher() {
			return user.ErrInvalidSupervisor
		}
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	now := user.NowFunc().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{CreatedAt: now}
	}

	if uname != "" {
		usr.Username = uname
	}
	if email != "" {
		usr.Email = email
	}
	if name := core.CleanString(args.name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = lookup
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.SupervisorID = supervisorID
	usr.Company = core.CleanString(args.company)
	usr.UpdatedAt = now
	if err := usr.SetPassword(args.pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
