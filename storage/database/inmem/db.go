// Package inmemdb provides in-memory repositories with the same semantics
// as the pg flavor. Test use only.
package inmemdb

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
	"github.com/shulehub/shule/core/school"
	"github.com/shulehub/shule/core/user"
)

type DB struct {
	mu sync.RWMutex

	users       map[string]*user.User
	schools     map[string]*school.School
	classes     map[string]*classroom.Class
	subjects    map[string]*classroom.Subject
	memberships map[string]map[string]time.Time // class id -> student id -> enrolled at
	invitations map[string]*invitation.Invitation
}

var _ core.DB = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		users:       make(map[string]*user.User),
		schools:     make(map[string]*school.School),
		classes:     make(map[string]*classroom.Class),
		subjects:    make(map[string]*classroom.Subject),
		memberships: make(map[string]map[string]time.Time),
		invitations: make(map[string]*invitation.Invitation),
	}
	return db, nil
}

// The executor is a formality here; repositories take the store lock per
// call, so "transactions" are single-statement anyway.

func (db *DB) Exec(string, ...interface{}) (sql.Result, error) { return nil, nil }
func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (db *DB) Query(string, ...interface{}) (*sql.Rows, error) { return nil, nil }
func (db *DB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (db *DB) QueryRow(string, ...interface{}) *sql.Row                            { return nil }
func (db *DB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row    { return nil }
func (db *DB) Begin() (core.DBTransactor, error)                                   { return fakeTx{}, nil }
func (db *DB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error)  { return fakeTx{}, nil }

// Reset drops all stored rows, letting tests share one store.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]*user.User)
	db.schools = make(map[string]*school.School)
	db.classes = make(map[string]*classroom.Class)
	db.subjects = make(map[string]*classroom.Subject)
	db.memberships = make(map[string]map[string]time.Time)
	db.invitations = make(map[string]*invitation.Invitation)
}

type fakeTx struct{}

func (fakeTx) Exec(string, ...interface{}) (sql.Result, error) { return nil, nil }
func (fakeTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (fakeTx) Query(string, ...interface{}) (*sql.Rows, error) { return nil, nil }
func (fakeTx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (fakeTx) QueryRow(string, ...interface{}) *sql.Row                         { return nil }
func (fakeTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }
func (fakeTx) Commit() error                                                    { return nil }
func (fakeTx) Rollback() error                                                  { return nil }
