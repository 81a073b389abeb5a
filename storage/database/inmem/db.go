// Package inmemdb implements the repositories in process memory. It backs the tests and the `-inmem` dev mode.
package inmemdb

import (
	"sync"

	"github.com/trezcool/pkl/core/attendance"
	"github.com/trezcool/pkl/core/user"
)

type (
	DB struct {
		user       *userTable
		attendance *attendanceTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	attendanceTable struct {
		mutex sync.RWMutex
		table map[string]*attendance.Record
		byDay map[string]string // {studentID|date: recordID}
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Record), byDay: make(map[string]string)},
	}
}
