package main

import (
	"database/sql"

	"github.com/trezcool/pkl/storage/database"
)

var gooseRunFunc func(string, *sql.DB, string, ...string) error // mockable; nil runs goose.Run

func (cli *commandLine) migrate(args []string) error {
	return database.RunMigration(gooseRunFunc, args[0], cli.db, args[1:]...)
}
