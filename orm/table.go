package orm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"

	"github.com/Skryldev/sql-orm/db"
)

// Window is an explicit LIMIT offset, count pair for FindOptions.Limit.
type Window struct {
	Offset int
	Count  int
}

// FindOptions narrows FindAll. Where and OrderBy are raw SQL fragments written
// with '?' markers; Args binds the Where markers in order.
//
// Limit is nil (no limit), an integer (LIMIT ?), or a pair bound as
// (offset, count) (LIMIT ?, ?): a Window, a [2]int or a two-element integer
// slice. Any other value, or an unsigned count above math.MaxInt64, is
// rejected with an *InvalidArgumentError. Against a pool using $n
// placeholders a pair is rendered LIMIT ? OFFSET ? instead, bound as
// (count, offset).
type FindOptions struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   any
}

// FindAllSQL renders the statement and arguments FindAll would run against a
// '?' placeholder pool.
func (s *Schema) FindAllSQL(opts FindOptions) (string, []any, error) {
	return s.findAllSQL(opts, false)
}

func (s *Schema) findAllSQL(opts FindOptions, offsetKeyword bool) (string, []any, error) {
	query := s.selectSQL
	args := append([]any(nil), opts.Args...)
	if opts.Where != "" {
		query += " WHERE " + opts.Where
	}
	if opts.OrderBy != "" {
		query += " ORDER BY " + opts.OrderBy
	}
	if opts.Limit != nil {
		clause, limitArgs, err := limitClause(opts.Limit)
		if err != nil {
			return "", nil, err
		}
		if offsetKeyword && len(limitArgs) == 2 {
			// PostgreSQL has no LIMIT offset, count form
			clause = "LIMIT ? OFFSET ?"
			limitArgs[0], limitArgs[1] = limitArgs[1], limitArgs[0]
		}
		query += " " + clause
		args = append(args, limitArgs...)
	}
	return query, args, nil
}

func limitClause(limit any) (string, []any, error) {
	if w, ok := limit.(Window); ok {
		return "LIMIT ?, ?", []any{w.Offset, w.Count}, nil
	}
	rv := reflect.ValueOf(limit)
	switch {
	case rv.CanInt():
		return "LIMIT ?", []any{rv.Int()}, nil
	case rv.CanUint():
		if rv.Uint() > math.MaxInt64 {
			return "", nil, &InvalidArgumentError{Arg: "limit", Value: limit}
		}
		return "LIMIT ?", []any{rv.Uint()}, nil
	case (rv.Kind() == reflect.Array || rv.Kind() == reflect.Slice) && rv.Len() == 2:
		pair := make([]any, 2)
		for i := range pair {
			el := rv.Index(i)
			if el.Kind() == reflect.Interface {
				el = el.Elem()
			}
			if !el.IsValid() || !el.CanInt() {
				return "", nil, &InvalidArgumentError{Arg: "limit", Value: limit}
			}
			pair[i] = el.Int()
		}
		return "LIMIT ?, ?", pair, nil
	}
	return "", nil, &InvalidArgumentError{Arg: "limit", Value: limit}
}

// FindNumberSQL renders the statement FindNumber would run.
func (s *Schema) FindNumberSQL(selectExpr, where string) string {
	query := "SELECT " + selectExpr + " AS _num_ FROM " + quoteIdent(s.table)
	if where != "" {
		query += " WHERE " + where
	}
	return query
}

// FindSQL renders the primary-key lookup statement.
func (s *Schema) FindSQL() string {
	return s.selectSQL + " WHERE " + quoteIdent(s.Column(s.pk)) + "=?"
}

// ─────────────────────────────────────────────────────────────────────────────
// Table
// ─────────────────────────────────────────────────────────────────────────────

// TableOption customises NewTable.
type TableOption func(*tableConfig)

type tableConfig struct {
	strict     bool
	autocommit bool
}

// WithStrictWrites makes Save, Update and Remove return a *RowsAffectedError
// when the statement does not affect exactly one row, instead of logging a
// warning and returning nil.
func WithStrictWrites() TableOption {
	return func(c *tableConfig) { c.strict = true }
}

// WithAutocommit controls whether writes run in autocommit mode (the default)
// or each in its own explicit transaction.
func WithAutocommit(on bool) TableOption {
	return func(c *tableConfig) { c.autocommit = on }
}

// Table runs the CRUD operations of one entity type through an Executor,
// reusing the templates cached in the entity's Schema. It is safe for
// concurrent use; the entities it returns are not shared.
type Table[E Entity] struct {
	exec   *Executor
	schema *Schema
	newFn  func() E
	cfg    tableConfig
	logger *slog.Logger
}

// NewTable returns the table of the entities newFn creates. newFn is called
// once here to read the schema, then once per loaded row.
func NewTable[E Entity](exec *Executor, newFn func() E, opts ...TableOption) *Table[E] {
	cfg := tableConfig{autocommit: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := newFn().Schema()
	return &Table[E]{
		exec:   exec,
		schema: s,
		newFn:  newFn,
		cfg:    cfg,
		logger: exec.Logger().With(slog.String("table", s.Table())),
	}
}

// Schema returns the schema of the table's entity type.
func (t *Table[E]) Schema() *Schema { return t.schema }

// FindAll returns the entities matching opts. An invalid Limit fails before
// any statement is sent.
func (t *Table[E]) FindAll(ctx context.Context, opts FindOptions) ([]E, error) {
	query, args, err := t.schema.findAllSQL(opts, t.exec.pool.Placeholder() == db.PlaceholderDollar)
	if err != nil {
		return nil, err
	}
	rows, err := t.exec.Select(ctx, query, args, 0)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0, len(rows))
	for _, row := range rows {
		e, err := t.load(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FindNumber runs SELECT <selectExpr> AS _num_ over the table and returns the
// scalar of the first row, or ErrNotFound when there is none.
func (t *Table[E]) FindNumber(ctx context.Context, selectExpr, where string, args ...any) (any, error) {
	rows, err := t.exec.Select(ctx, t.schema.FindNumberSQL(selectExpr, where), args, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sqlorm/orm: %s: %s: %w", t.schema.Table(), selectExpr, ErrNotFound)
	}
	return rows[0]["_num_"], nil
}

// Count returns the number of rows matching where (every row when empty).
func (t *Table[E]) Count(ctx context.Context, where string, args ...any) (int64, error) {
	v, err := t.FindNumber(ctx, "COUNT(*)", where, args...)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, nil
	}
	var n int64
	if err := assign(reflect.ValueOf(&n).Elem(), v); err != nil {
		return 0, fmt.Errorf("sqlorm/orm: count: %w", err)
	}
	return n, nil
}

// Find loads the entity with primary key pk, or returns ErrNotFound.
func (t *Table[E]) Find(ctx context.Context, pk any) (E, error) {
	var zero E
	rows, err := t.exec.Select(ctx, t.schema.FindSQL(), []any{pk}, 1)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("sqlorm/orm: %s %v: %w", t.schema.Table(), pk, ErrNotFound)
	}
	return t.load(rows[0])
}

// Save inserts e. Unset attributes take their field defaults, which are
// stored back on e.
func (t *Table[E]) Save(ctx context.Context, e E) error {
	args := make([]any, 0, len(t.schema.ordinary)+1)
	for _, attr := range t.schema.ordinary {
		v, err := ValueOrDefault(e, attr)
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	pk, err := ValueOrDefault(e, t.schema.pk)
	if err != nil {
		return err
	}
	args = append(args, pk)

	n, err := t.exec.Execute(ctx, t.schema.insertSQL, args, t.cfg.autocommit)
	if err != nil {
		return err
	}
	return t.checkAffected(ctx, "insert", pk, n)
}

// Update writes every ordinary attribute of e to the row with e's primary
// key. Unset attributes are written as NULL; defaults are not applied.
func (t *Table[E]) Update(ctx context.Context, e E) error {
	args := make([]any, 0, len(t.schema.ordinary)+1)
	for _, attr := range t.schema.ordinary {
		v, _ := e.Value(attr)
		args = append(args, v)
	}
	pk, _ := e.Value(t.schema.pk)
	args = append(args, pk)

	n, err := t.exec.Execute(ctx, t.schema.updateSQL, args, t.cfg.autocommit)
	if err != nil {
		return err
	}
	return t.checkAffected(ctx, "update", pk, n)
}

// Remove deletes the row with e's primary key. e itself is left untouched.
func (t *Table[E]) Remove(ctx context.Context, e E) error {
	pk, _ := e.Value(t.schema.pk)
	n, err := t.exec.Execute(ctx, t.schema.deleteSQL, []any{pk}, t.cfg.autocommit)
	if err != nil {
		return err
	}
	return t.checkAffected(ctx, "remove", pk, n)
}

func (t *Table[E]) checkAffected(ctx context.Context, op string, pk any, n int64) error {
	if n == 1 {
		return nil
	}
	if t.cfg.strict {
		return &RowsAffectedError{Op: op, Table: t.schema.Table(), Key: pk, Rows: n}
	}
	t.logger.WarnContext(ctx, "sqlorm/orm: failed to "+op+" by primary key",
		slog.Any("key", pk), slog.Int64("affected", n))
	return nil
}

func (t *Table[E]) load(row Row) (E, error) {
	e := t.newFn()
	for col, v := range row {
		attr, ok := t.schema.AttrForColumn(col)
		if !ok {
			attr = col
		}
		if err := e.SetValue(attr, v); err != nil {
			var zero E
			return zero, err
		}
	}
	return e, nil
}
