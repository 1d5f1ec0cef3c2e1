// Package repository defines error types that are reused across the slot
// store implementations. These sentinel values allow higher layers such as
// the reservation engine and the HTTP handlers to distinguish between
// different failure scenarios without knowing which store is in use. For
// example, ErrLockTimeout indicates that a row lock could not be acquired
// before the store gave up waiting, while ErrDuplicate signals that a
// write would break a uniqueness rule (e.g. the same player holding two
// slots in one event).
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrLockTimeout is returned when a lock-acquiring read gave up waiting or
// was chosen as a deadlock victim.  Callers treat it as a slot conflict.
var ErrLockTimeout = errors.New("lock wait timeout")

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate entry")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state.  Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers the store translates.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// mapError converts driver errors into the package sentinels.  Errors it
// does not recognise are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return errors.Join(ErrLockTimeout, err)
		case mysqlDuplicateEntry:
			return errors.Join(ErrDuplicate, err)
		}
	}
	return err
}
