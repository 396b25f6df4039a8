package db

import (
	"context"
	"database/sql"
	"sync"
)

// Conn is a single connection leased from the pool by DB.Acquire.
// It is not safe for concurrent use; one goroutine owns a lease at a time.
type Conn struct {
	sqlconn *sql.Conn
	hooks   hookChain
	errMap  ErrorMapper
	cfg     Config

	closeOnce sync.Once
	closeErr  error
}

// Exec executes a statement on the leased connection.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return execWith(ctx, c.sqlconn, c.hooks, c.errMap, query, args)
}

// Query executes a query on the leased connection. The caller MUST close the
// returned *sql.Rows before releasing the lease.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return queryWith(ctx, c.sqlconn, c.hooks, c.errMap, query, args)
}

// BeginTx opens an explicit transaction pinned to this connection.
// If ctx is cancelled before Commit, database/sql rolls the transaction back.
func (c *Conn) BeginTx(ctx context.Context, opts ...TxOptions) (*Tx, error) {
	sqltx, err := c.sqlconn.BeginTx(ctx, txOptions(opts))
	if err != nil {
		return nil, mapWith(c.errMap, err)
	}
	return &Tx{sqltx: sqltx, hooks: c.hooks, errMap: c.errMap, cfg: c.cfg}, nil
}

// Close returns the connection to the pool. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.sqlconn.Close() })
	return c.closeErr
}
