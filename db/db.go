// Package db is the connection-pool handle used by the orm package. It wraps
// *sql.DB with context-aware helpers, scoped connection leases, hook dispatch,
// unified error mapping, placeholder rebinding and transaction management.
//
// The pool itself is database/sql's; this package never owns more than the
// *sql.DB it was handed or opened.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds all options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "postgres", "mysql", or "sqlite3".
	DriverName string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Default query timeout applied when no deadline is set on the context.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// Placeholder overrides the bind-variable style derived from DriverName.
	Placeholder PlaceholderStyle

	// Hooks executed around every statement (logging, metrics, tracing).
	// Nil entries are skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB.
//
// All methods accept a context.Context so callers always control timeouts
// and cancellation. The underlying *sql.DB is always accessible via Raw().
type DB struct {
	sqldb       *sql.DB
	cfg         Config
	hooks       hookChain
	errMap      ErrorMapper
	placeholder PlaceholderStyle
}

// Open opens the database described by cfg and verifies connectivity with Ping.
// Callers are responsible for calling Close() when the application shuts down.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlorm/db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("sqlorm/db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlorm/db: open: %w", err)
	}

	d := Wrap(sqldb, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("sqlorm/db: ping: %w", err)
	}

	return d, nil
}

// Wrap adopts an already opened *sql.DB (a shared pool, or a sqlmock handle in
// tests). Pool settings in cfg are applied; DSN is ignored. No ping is done.
func Wrap(sqldb *sql.DB, cfg Config) *DB {
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	placeholder := cfg.Placeholder
	if placeholder == PlaceholderDefault {
		placeholder = PlaceholderFor(cfg.DriverName)
	}

	return &DB{
		sqldb:       sqldb,
		cfg:         cfg,
		hooks:       newHookChain(cfg.Hooks),
		errMap:      DefaultErrorMapper(),
		placeholder: placeholder,
	}
}

// MustOpen is like Open but panics on error. Useful in main() initialisation.
func MustOpen(cfg Config) *DB {
	d, err := Open(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// Raw returns the underlying *sql.DB for advanced use cases.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// SetErrorMapper replaces the default error mapper with a custom one.
func (d *DB) SetErrorMapper(m ErrorMapper) { d.errMap = m }

// Placeholder reports the bind-variable style statements are rebound to.
func (d *DB) Placeholder() PlaceholderStyle { return d.placeholder }

// Rebind rewrites the neutral '?' markers in query into the driver's style.
func (d *DB) Rebind(query string) string { return Rebind(d.placeholder, query) }

// Close closes all pooled connections and frees resources.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Stats returns pool statistics for monitoring.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// ─────────────────────────────────────────────────────────────────────────────
// Connection leases
// ─────────────────────────────────────────────────────────────────────────────

// Acquire checks a single connection out of the pool. The lease must be
// returned with Conn.Close, normally via defer, on every exit path.
// Acquire blocks while the pool is exhausted, until ctx is done.
func (d *DB) Acquire(ctx context.Context) (*Conn, error) {
	c, err := d.sqldb.Conn(ctx)
	if err != nil {
		return nil, d.mapErr(err)
	}
	return &Conn{sqlconn: c, hooks: d.hooks, errMap: d.errMap, cfg: d.cfg}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Query execution helpers
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows (INSERT, UPDATE, DELETE, DDL).
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return execWith(ctx, d.sqldb, d.hooks, d.errMap, query, args)
}

// Query executes a query that returns rows.
// The caller MUST close the returned *sql.Rows. The default timeout is not
// applied here since it would fire while the caller is still reading.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return queryWith(ctx, d.sqldb, d.hooks, d.errMap, query, args)
}

// QueryRow executes a query expected to return at most one row.
// ErrNotFound is returned from Scan when no row matches.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx = d.hooks.Before(ctx, query, args)
	start := time.Now()
	raw := d.sqldb.QueryRowContext(ctx, query, args...)
	d.hooks.After(ctx, query, args, time.Since(start), nil) // err unknown until Scan
	return &Row{raw: raw, errMap: d.errMap}
}

// Prepare creates a prepared statement for repeated use.
// The caller is responsible for calling stmt.Close().
func (d *DB) Prepare(ctx context.Context, query string) (*Stmt, error) {
	s, err := d.sqldb.PrepareContext(ctx, query)
	if err != nil {
		return nil, d.mapErr(err)
	}
	return &Stmt{stmt: s, query: query, hooks: d.hooks, errMap: d.errMap}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch helpers
// ─────────────────────────────────────────────────────────────────────────────

// BatchExec runs the same statement once per item inside a single transaction.
// All statements succeed or none do.
//
//	err := db.BatchExec(d, ctx, "INSERT INTO tags(name) VALUES(?)", names,
//	    func(n string) []any { return []any{n} })
func BatchExec[T any](
	d *DB,
	ctx context.Context,
	query string,
	items []T,
	argsFn func(T) []any,
) error {
	return d.ExecTx(ctx, func(tx *Tx) error {
		stmt, err := tx.Prepare(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.Exec(ctx, argsFn(item)...); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execWith(ctx context.Context, eq execQuerier, hooks hookChain, errMap ErrorMapper, query string, args []any) (sql.Result, error) {
	ctx = hooks.Before(ctx, query, args)
	start := time.Now()
	res, err := eq.ExecContext(ctx, query, args...)
	err = mapWith(errMap, err)
	hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

func queryWith(ctx context.Context, eq execQuerier, hooks hookChain, errMap ErrorMapper, query string, args []any) (*sql.Rows, error) {
	ctx = hooks.Before(ctx, query, args)
	start := time.Now()
	rows, err := eq.QueryContext(ctx, query, args...)
	err = mapWith(errMap, err)
	hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

func (d *DB) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return applyTimeout(ctx, d.cfg.DefaultTimeout)
}

func applyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (d *DB) mapErr(err error) error { return mapWith(d.errMap, err) }

func mapWith(m ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	return m.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row: wraps *sql.Row to translate errors uniformly
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the unified error mapper.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	return mapWith(r.errMap, r.raw.Scan(dest...))
}

// ─────────────────────────────────────────────────────────────────────────────
// Stmt: wraps *sql.Stmt
// ─────────────────────────────────────────────────────────────────────────────

// Stmt wraps a prepared *sql.Stmt with hook dispatch and error mapping.
type Stmt struct {
	stmt   *sql.Stmt
	query  string
	hooks  hookChain
	errMap ErrorMapper
}

// Exec executes the prepared statement.
func (s *Stmt) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	ctx = s.hooks.Before(ctx, s.query, args)
	start := time.Now()
	res, err := s.stmt.ExecContext(ctx, args...)
	err = mapWith(s.errMap, err)
	s.hooks.After(ctx, s.query, args, time.Since(start), err)
	return res, err
}

// QueryRow executes the prepared statement expecting one row.
func (s *Stmt) QueryRow(ctx context.Context, args ...any) *Row {
	ctx = s.hooks.Before(ctx, s.query, args)
	start := time.Now()
	raw := s.stmt.QueryRowContext(ctx, args...)
	s.hooks.After(ctx, s.query, args, time.Since(start), nil)
	return &Row{raw: raw, errMap: s.errMap}
}

// Close releases the prepared statement resources.
func (s *Stmt) Close() error { return s.stmt.Close() }

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry: caller-side resilience helper
// ─────────────────────────────────────────────────────────────────────────────

// RetryConfig controls retry behaviour for transient errors.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// RetryOn decides whether a given error should trigger a retry.
	// Defaults to retrying on ErrDeadlock and ErrTimeout if nil.
	RetryOn func(error) bool
}

// WithRetry executes fn, retrying on transient errors per cfg. Nothing in this
// module retries on its own; wrap calls here when a retry policy is wanted.
// fn must be idempotent.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	retryOn := cfg.RetryOn
	if retryOn == nil {
		retryOn = func(err error) bool {
			return IsDeadlock(err) || IsTimeout(err)
		}
	}
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryOn(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("sqlorm/db: all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}
