package orm

import (
	"errors"
	"fmt"

	"github.com/Skryldev/sql-orm/db"
)

// Sentinel errors. Use errors.Is against these; the concrete error types
// below carry the details.
var (
	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("sqlorm/orm: invalid schema")

	// ErrInvalidArgument is matched by every *InvalidArgumentError.
	ErrInvalidArgument = errors.New("sqlorm/orm: invalid argument")

	// ErrRowsAffected is matched by *RowsAffectedError, returned only by
	// tables built with WithStrictWrites.
	ErrRowsAffected = errors.New("sqlorm/orm: unexpected rows affected")

	// ErrNotFound is returned by Find and FindNumber when no row matches.
	ErrNotFound = db.ErrNotFound
)

// SchemaError reports a malformed entity declaration.
type SchemaError struct {
	Table  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sqlorm/orm: schema %q: %s", e.Table, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// QueryError wraps a failure reported by the pool or the driver. The wrapped
// error has already been through the db error mapper, so db.IsDuplicateKey and
// friends keep working on it.
type QueryError struct {
	Op    string // "select" or "execute"
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("sqlorm/orm: %s %q: %v", e.Op, e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// InvalidArgumentError reports a caller argument rejected before any I/O.
type InvalidArgumentError struct {
	Arg   string
	Value any
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("sqlorm/orm: invalid %s value: %#v", e.Arg, e.Value)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// RowsAffectedError reports a write that did not touch exactly one row.
type RowsAffectedError struct {
	Op    string // "insert", "update" or "remove"
	Table string
	Key   any
	Rows  int64
}

func (e *RowsAffectedError) Error() string {
	return fmt.Sprintf("sqlorm/orm: %s %s %v: affected rows: %d", e.Op, e.Table, e.Key, e.Rows)
}

func (e *RowsAffectedError) Is(target error) bool { return target == ErrRowsAffected }

// IsNotFound reports whether err means "no such row".
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
