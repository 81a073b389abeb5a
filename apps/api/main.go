package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/pkl/apps/api/echo"
	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/clock"
	"github.com/trezcool/pkl/core/user"
	emailsvc "github.com/trezcool/pkl/services/email"
	logsvc "github.com/trezcool/pkl/services/logger"
	"github.com/trezcool/pkl/storage/database"
	inmemdb "github.com/trezcool/pkl/storage/database/inmem"
	sqlxrepos "github.com/trezcool/pkl/storage/database/sqlx"
)

type repositories struct {
	user       user.Repository
	attendance attendance.Repository
}

func main() {
	inmem := flag.Bool("inmem", false, "keep data in process memory instead of PostgreSQL")
	adminPwd := flag.String("admin-password", "", "password of the `admin` user seeded in -inmem mode")
	flag.Parse()

	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	var repos repositories
	if *inmem {
		db := inmemdb.Open()
		repos = repositories{user: inmemdb.NewUserRepository(db), attendance: inmemdb.NewAttendanceRepository(db)}
		if err := seedAdmin(repos.user, *adminPwd); err != nil {
			logger.Fatal(fmt.Sprintf("seeding admin: %v", err), err)
		}
		logger.Warn("running with in-memory storage: data is lost on shutdown")
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		repos = repositories{user: sqlxrepos.NewUserRepository(db), attendance: sqlxrepos.NewAttendanceRepository(db)}
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger, false)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	clk := clock.SchoolClock{}
	usrSvc := user.NewService(repos.user)
	attSvc := attendance.NewService(repos.attendance, usrSvc, clk, validate)
	sweeper := attendance.NewSweeper(repos.attendance, usrSvc, clk, mailSvc, logger, conf)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Clock:         clk,
			UserSvc:       usrSvc,
			AttendanceSvc: attSvc,
			Sweeper:       sweeper,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}

	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func seedAdmin(repo user.Repository, pwd string) error {
	if pwd == "" {
		return errors.New("-admin-password is required with -inmem")
	}
	now := user.NowFunc().UTC()
	usr := user.User{
		Name:      "Administrator",
		Username:  "admin",
		IsActive:  true,
		Roles:     user.AdminRoles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err := repo.CreateUser(context.Background(), usr)
	return err
}
