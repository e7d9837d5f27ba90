package db

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update hits a unique key.
var ErrDuplicate = errors.New("duplicate key")

// ErrStateConflict is returned when a guarded update matched no row although the task exists:
// the task is no longer in the expected state (or held by the expected owner).
var ErrStateConflict = errors.New("task not in expected state")

// errCounterMoved means the application counter changed between read and write; the
// transaction is retried.
var errCounterMoved = errors.New("application counter moved")

const (
	mysqlDuplicateEntry = 1062
	mysqlLockWait       = 1205
	mysqlDeadlock       = 1213
)

func isDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	return false
}

// isRetryable returns true for lock contention, after which the whole transaction can be run
// again. Connection errors are not retried because the work may already have been applied.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, errCounterMoved) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWait
	}

	return false
}

// Classify converts a store error into the error taxonomy, naming subject in the remark.
func Classify(err error, subject string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("%s not found", subject).Because(err)
	case errors.Is(err, ErrDuplicate):
		return apperr.Integrity("%s already exists", subject).Because(err)
	case errors.Is(err, ErrStateConflict):
		return apperr.StateConflict("%s is not in the expected state", subject).Because(err)
	default:
		return apperr.Internal(err)
	}
}
