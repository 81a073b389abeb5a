package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
	emailsvc "github.com/trezcool/pkl/services/email"
	logsvc "github.com/trezcool/pkl/services/logger"
	"github.com/trezcool/pkl/storage/database"
	sqlxrepos "github.com/trezcool/pkl/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	core.ParseEmailTemplates(logger, false)
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	sweeper := attendance.NewSweeper(sqlxrepos.NewAttendanceRepository(db), usrSvc, clock.SchoolClock{}, mailSvc, logger, conf)

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: usrRepo,
		sweeper: sweeper,
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error(fmt.Sprintf("error: %s", err), err)
	}

	// let the sweep summaries go out before exiting
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	_ = db.Close()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
