package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("sqlorm/db: record not found")

	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("sqlorm/db: duplicate key")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("sqlorm/db: foreign key violation")

	// ErrDeadlock is returned when the database detects a deadlock.
	ErrDeadlock = errors.New("sqlorm/db: deadlock detected")

	// ErrTimeout is returned when a statement exceeds its deadline or its
	// context is cancelled.
	ErrTimeout = errors.New("sqlorm/db: query timeout")

	// ErrCheckViolation is returned when a CHECK constraint is violated.
	ErrCheckViolation = errors.New("sqlorm/db: check constraint violation")

	// ErrConnectionFailed is returned when the driver cannot reach the server.
	ErrConnectionFailed = errors.New("sqlorm/db: connection failed")
)

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsDuplicateKey(err error) bool        { return errors.Is(err, ErrDuplicateKey) }
func IsForeignKeyViolation(err error) bool { return errors.Is(err, ErrForeignKeyViolation) }
func IsDeadlock(err error) bool            { return errors.Is(err, ErrDeadlock) }
func IsTimeout(err error) bool             { return errors.Is(err, ErrTimeout) }
func IsCheckViolation(err error) bool      { return errors.Is(err, ErrCheckViolation) }
func IsConnectionFailed(err error) bool    { return errors.Is(err, ErrConnectionFailed) }

// ─────────────────────────────────────────────────────────────────────────────
// DBError: rich error type preserving original driver error
// ─────────────────────────────────────────────────────────────────────────────

// DBError wraps a sentinel error with the original driver error so callers can
// either use errors.Is(err, ErrDuplicateKey) for simple checks or inspect the
// raw driver error (errors.As(err, &pqErr)) for additional context.
type DBError struct {
	// Sentinel is one of the package-level Err* variables.
	Sentinel error
	// Cause is the original driver error.
	Cause error
	// Message is an optional human-readable hint.
	Message string
}

func (e *DBError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Sentinel, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (cause: %v)", e.Sentinel, e.Cause)
}

func (e *DBError) Is(target error) bool { return errors.Is(e.Sentinel, target) }
func (e *DBError) Unwrap() error        { return e.Cause }

// ─────────────────────────────────────────────────────────────────────────────
// ErrorMapper interface: pluggable per driver
// ─────────────────────────────────────────────────────────────────────────────

// ErrorMapper translates raw driver errors into the package's sentinel errors.
// A mapper returns its input unchanged when it does not recognise it.
type ErrorMapper interface {
	Map(err error) error
}

// ErrorMapperFunc is a convenience adapter from a function to ErrorMapper.
type ErrorMapperFunc func(error) error

func (f ErrorMapperFunc) Map(err error) error { return f(err) }

// matchOrPass adapts a matcher returning nil for "not mine" into an ErrorMapper.
func matchOrPass(match func(error) error) ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if err == nil {
			return nil
		}
		if mapped := match(err); mapped != nil {
			return mapped
		}
		return err
	})
}

// DefaultErrorMapper returns a mapper covering database/sql, context errors,
// lib/pq, go-sql-driver/mysql and mattn/go-sqlite3.
func DefaultErrorMapper() ErrorMapper {
	return ErrorMapperFunc(defaultMap)
}

func defaultMap(err error) error {
	if err == nil {
		return nil
	}

	// Already mapped; do not double-wrap.
	var dbe *DBError
	if errors.As(err, &dbe) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &DBError{Sentinel: ErrNotFound, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	}

	for _, match := range []func(error) error{mapPQError, mapMySQLError, mapSQLiteError} {
		if mapped := match(err); mapped != nil {
			return mapped
		}
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq) mapping
// ─────────────────────────────────────────────────────────────────────────────

func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	return mapByPGCode(string(pqErr.Code), err)
}

// PostgreSQL SQLSTATE codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapByPGCode(code string, cause error) error {
	switch code {
	case "23505": // unique_violation
		return &DBError{Sentinel: ErrDuplicateKey, Cause: cause}
	case "23503": // foreign_key_violation
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: cause}
	case "23514": // check_violation
		return &DBError{Sentinel: ErrCheckViolation, Cause: cause}
	case "40P01": // deadlock_detected
		return &DBError{Sentinel: ErrDeadlock, Cause: cause}
	case "57014": // query_canceled
		return &DBError{Sentinel: ErrTimeout, Cause: cause}
	case "08000", "08003", "08006", "08001", "08004", "08007", "08P01":
		return &DBError{Sentinel: ErrConnectionFailed, Cause: cause}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL mapping
// ─────────────────────────────────────────────────────────────────────────────

func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return nil
	}
	switch me.Number {
	case 1062: // ER_DUP_ENTRY
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case 1452, 1216, 1217: // ER_NO_REFERENCED_ROW, ER_ROW_IS_REFERENCED
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	case 1213: // ER_LOCK_DEADLOCK
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case 3024: // ER_QUERY_TIMEOUT
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	case 1045, 2002, 2003, 2006, 2013:
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite mapping
// ─────────────────────────────────────────────────────────────────────────────

func mapSQLiteError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return nil
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case sqlite3.ErrConstraintForeignKey:
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case sqlite3.ErrConstraintCheck:
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case sqlite3.ErrCantOpen:
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ChainMapper: compose multiple mappers (first match wins)
// ─────────────────────────────────────────────────────────────────────────────

// ChainMapper returns an ErrorMapper that tries each mapper in order,
// returning the first result that differs from its input.
func ChainMapper(mappers ...ErrorMapper) ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if err == nil {
			return nil
		}
		for _, m := range mappers {
			if mapped := m.Map(err); mapped != err {
				return mapped
			}
		}
		return err
	})
}
