package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	sweeper *attendance.Sweeper
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] [-teacher] [-student [-supervisor ID] [-company NAME]]")
	fmt.Fprintln(cli.out, "      create or update a user; the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  sweep [-date YYYY-MM-DD] - mark students without a record as absent (defaults to today)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("name", "", "The user's full name. Defaults to the username.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin roles.")
	addUserTeacher := addUserCmd.Bool("teacher", false, "Grant the teacher role.")
	addUserStudent := addUserCmd.Bool("student", false, "Grant the student role.")
	addUserSupervisor := addUserCmd.String("supervisor", "", "Students only: ID of the supervising teacher.")
	addUserCompany := addUserCmd.String("company", "", "Students only: internship placement.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	sweepCmd := flag.NewFlagSet("sweep", flag.ContinueOnError)
	sweepCmd.SetOutput(cli.out)
	sweepDate := sweepCmd.String("date", "", "The school day to sweep (YYYY-MM-DD). Defaults to today.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(addUserArgs{
			name:         *addUserName,
			uname:        *addUserUname,
			email:        *addUserEmail,
			pwd:          pwd,
			isAdmin:      *addUserAdmin,
			isTeacher:    *addUserTeacher,
			isStudent:    *addUserStudent,
			supervisorID: *addUserSupervisor,
			company:      *addUserCompany,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "sweep":
		if err := sweepCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.sweep(*sweepDate)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
