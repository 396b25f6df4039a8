package orm

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/Skryldev/sql-orm/db"
)

// Pool is the connection-pool handle the executor leases connections from.
// *db.DB satisfies it. The executor never opens or closes the pool.
type Pool interface {
	Acquire(ctx context.Context) (*db.Conn, error)
	Rebind(query string) string
	Placeholder() db.PlaceholderStyle
}

var _ Pool = (*db.DB)(nil)

// Row is one result row keyed by column name.
type Row map[string]any

// Executor issues parameterised statements written with '?' markers against
// a Pool. It is safe for concurrent use; each call holds its own lease.
type Executor struct {
	pool   Pool
	logger *slog.Logger
}

// ExecutorOption customises NewExecutor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used by the executor and by every Table built on
// it. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor returns an Executor over pool.
func NewExecutor(pool Pool, opts ...ExecutorOption) *Executor {
	e := &Executor{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the executor's logger.
func (e *Executor) Logger() *slog.Logger { return e.logger }

// Select runs query and returns up to limit rows, or every row when limit is
// zero or negative. Nothing is retried; pool and driver failures come back as
// a *QueryError.
func (e *Executor) Select(ctx context.Context, query string, args []any, limit int) ([]Row, error) {
	e.logger.DebugContext(ctx, "sqlorm/orm: select", slog.String("sql", query), slog.Int("args", len(args)))

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, &QueryError{Op: "select", Query: query, Err: err}
	}
	defer conn.Close()

	rs, err := conn.Query(ctx, e.pool.Rebind(query), args...)
	if err != nil {
		return nil, &QueryError{Op: "select", Query: query, Err: err}
	}
	defer rs.Close()

	rows, err := scanRows(rs, limit)
	if err != nil {
		return nil, &QueryError{Op: "select", Query: query, Err: err}
	}
	e.logger.InfoContext(ctx, "sqlorm/orm: rows returned", slog.Int("rows", len(rows)))
	return rows, nil
}

func scanRows(rs *sql.Rows, limit int) ([]Row, error) {
	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0)
	for rs.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// Execute runs a mutating statement and returns the number of rows affected.
// With autocommit false the statement runs in its own explicit transaction,
// committed on success. On failure (or panic, or ctx cancellation) that
// transaction is rolled back, the error is logged and returned as is.
func (e *Executor) Execute(ctx context.Context, query string, args []any, autocommit bool) (affected int64, err error) {
	e.logger.DebugContext(ctx, "sqlorm/orm: execute", slog.String("sql", query), slog.Int("args", len(args)), slog.Bool("autocommit", autocommit))

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return 0, e.fail(ctx, query, err)
	}
	defer conn.Close()

	var tx *db.Tx
	if !autocommit {
		if tx, err = conn.BeginTx(ctx); err != nil {
			return 0, e.fail(ctx, query, err)
		}
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					e.logger.ErrorContext(ctx, "sqlorm/orm: rollback failed", slog.Any("error", rbErr))
				}
			}
		}()
	}

	stmt := e.pool.Rebind(query)
	var res sql.Result
	if tx != nil {
		res, err = tx.Exec(ctx, stmt, args...)
	} else {
		res, err = conn.Exec(ctx, stmt, args...)
	}
	if err != nil {
		return 0, e.fail(ctx, query, err)
	}
	if affected, err = res.RowsAffected(); err != nil {
		return 0, e.fail(ctx, query, err)
	}
	if tx != nil {
		if err = tx.Commit(); err != nil {
			return 0, e.fail(ctx, query, err)
		}
	}
	return affected, nil
}

func (e *Executor) fail(ctx context.Context, query string, err error) error {
	e.logger.ErrorContext(ctx, "sqlorm/orm: execute failed", slog.String("sql", query), slog.Any("error", err))
	return &QueryError{Op: "execute", Query: query, Err: err}
}
