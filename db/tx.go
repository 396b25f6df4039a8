package db

import (
	"context"
	"database/sql"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tx: transaction wrapper
// ─────────────────────────────────────────────────────────────────────────────

// Tx is a thin wrapper around *sql.Tx that mirrors the DB API surface so that
// code can accept either *DB or *Tx via the Querier interface.
type Tx struct {
	sqltx  *sql.Tx
	hooks  hookChain
	errMap ErrorMapper
	cfg    Config
}

// Raw returns the underlying *sql.Tx for advanced use.
func (t *Tx) Raw() *sql.Tx { return t.sqltx }

// Exec executes a statement that does not return rows.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return execWith(ctx, t.sqltx, t.hooks, t.errMap, query, args)
}

// Query executes a query returning rows. The caller MUST close *sql.Rows.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return queryWith(ctx, t.sqltx, t.hooks, t.errMap, query, args)
}

// QueryRow executes a query expected to return at most one row.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx = t.hooks.Before(ctx, query, args)
	raw := t.sqltx.QueryRowContext(ctx, query, args...)
	t.hooks.After(ctx, query, args, 0, nil)
	return &Row{raw: raw, errMap: t.errMap}
}

// Prepare creates a prepared statement within the transaction.
func (t *Tx) Prepare(ctx context.Context, query string) (*Stmt, error) {
	s, err := t.sqltx.PrepareContext(ctx, query)
	if err != nil {
		return nil, mapWith(t.errMap, err)
	}
	return &Stmt{stmt: s, query: query, hooks: t.hooks, errMap: t.errMap}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return mapWith(t.errMap, t.sqltx.Commit()) }

// Rollback aborts the transaction. Rolling back a finished transaction
// returns sql.ErrTxDone, which callers using deferred rollback may ignore.
func (t *Tx) Rollback() error { return t.sqltx.Rollback() }

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx: the primary transaction helper on *DB
// ─────────────────────────────────────────────────────────────────────────────

// TxOptions allows callers to configure isolation level and read-only flag.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func txOptions(opts []TxOptions) *sql.TxOptions {
	if len(opts) == 0 {
		return nil
	}
	return &sql.TxOptions{Isolation: opts[0].Isolation, ReadOnly: opts[0].ReadOnly}
}

// ExecTx starts a transaction, executes fn, and commits on success or rolls
// back on error or panic. Nested calls are not supported.
//
//	err := d.ExecTx(ctx, func(tx *db.Tx) error {
//	    _, err := tx.Exec(ctx, "UPDATE blogs SET name = ? WHERE id = ?", name, id)
//	    return err
//	})
func (d *DB) ExecTx(ctx context.Context, fn func(*Tx) error, opts ...TxOptions) (err error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()

	sqltx, err := d.sqldb.BeginTx(ctx, txOptions(opts))
	if err != nil {
		return d.mapErr(err)
	}

	tx := &Tx{
		sqltx:  sqltx,
		hooks:  d.hooks,
		errMap: d.errMap,
		cfg:    d.cfg,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqltx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqltx.Rollback(); rbErr != nil {
				err = fmt.Errorf("sqlorm/db: rollback failed (%v) after original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return d.mapErr(err)
	}

	if err = sqltx.Commit(); err != nil {
		return d.mapErr(err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Querier: the shared interface accepted by callers
// ─────────────────────────────────────────────────────────────────────────────

// Querier is the minimal interface shared by both *DB and *Tx.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Prepare(ctx context.Context, query string) (*Stmt, error)
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Tx)(nil)
)
