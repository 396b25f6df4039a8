package orm_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/sql-orm/db"
	"github.com/Skryldev/sql-orm/orm"
)

func recordTable(exec *orm.Executor, s *orm.Schema, opts ...orm.TableOption) *orm.Table[*orm.Record] {
	return orm.NewTable(exec, func() *orm.Record { return orm.NewRecord(s, nil) }, opts...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Statement binding, against sqlmock
// ─────────────────────────────────────────────────────────────────────────────

func TestTable_Save_BindsFieldsThenKey(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	s := userSchema(t)
	users := recordTable(exec, s)

	mock.ExpectExec("INSERT INTO `users` (`name`, `age`, `id`) VALUES (?, ?, ?)").
		WithArgs("Bob", int64(0), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := orm.NewRecord(s, map[string]any{"id": "u1", "name": "Bob"})
	require.NoError(t, users.Save(context.Background(), u))
	assert.Equal(t, int64(0), u.Get("age"), "the default is stored on the instance")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Save_KeyDefault(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	s, err := orm.NewSchema("users",
		orm.Define("id", orm.StringField(orm.PrimaryKey(), orm.Default(func() string { return "generated" }))),
		orm.Define("name", orm.StringField()),
	)
	require.NoError(t, err)
	users := recordTable(exec, s)

	mock.ExpectExec("INSERT INTO `users` (`name`, `id`) VALUES (?, ?)").
		WithArgs(nil, "generated").
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := orm.NewRecord(s, nil)
	require.NoError(t, users.Save(context.Background(), u))
	assert.Equal(t, "generated", u.Get("id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Find(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	users := recordTable(exec, userSchema(t))

	mock.ExpectQuery("SELECT `id`, `name`, `age` FROM `users` WHERE `id`=?").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).AddRow("u1", "Bob", int64(0)))

	u, err := users.Find(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.Get("id"))
	assert.Equal(t, "Bob", u.Get("name"))
	assert.Equal(t, int64(0), u.Get("age"))
}

func TestTable_Find_NotFound(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	users := recordTable(exec, userSchema(t))

	mock.ExpectQuery("SELECT `id`, `name`, `age` FROM `users` WHERE `id`=?").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}))

	u, err := users.Find(context.Background(), "nope")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, orm.ErrNotFound)
	assert.True(t, orm.IsNotFound(err))
}

func TestTable_FindAll_Window(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	users := recordTable(exec, userSchema(t))

	mock.ExpectQuery("SELECT `id`, `name`, `age` FROM `users` ORDER BY `name` LIMIT ?, ?").
		WithArgs(int64(10), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow("u1", "Alice", int64(30)).
			AddRow("u2", "Bob", int64(40)))

	got, err := users.FindAll(context.Background(), orm.FindOptions{
		OrderBy: "`name`",
		Limit:   orm.Window{Offset: 10, Count: 5},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Get("name"))
	assert.Equal(t, "Bob", got[1].Get("name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_FindAll_WindowWithDollarPlaceholders(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{Placeholder: db.PlaceholderDollar})
	users := recordTable(exec, userSchema(t))

	mock.ExpectQuery(`SELECT "id", "name", "age" FROM "users" WHERE "age">$1 ORDER BY "name" LIMIT $2 OFFSET $3`).
		WithArgs(int64(18), int64(5), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).AddRow("u1", "Alice", int64(30)))

	got, err := users.FindAll(context.Background(), orm.FindOptions{
		Where:   "`age`>?",
		Args:    []any{18},
		OrderBy: "`name`",
		Limit:   orm.Window{Offset: 10, Count: 5},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].Get("name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_FindAll_SingleLimitWithDollarPlaceholders(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{Placeholder: db.PlaceholderDollar})
	users := recordTable(exec, userSchema(t))

	mock.ExpectQuery(`SELECT "id", "name", "age" FROM "users" LIMIT $1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}))

	got, err := users.FindAll(context.Background(), orm.FindOptions{Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_FindAll_InvalidLimitSendsNothing(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	users := recordTable(exec, userSchema(t))

	_, err := users.FindAll(context.Background(), orm.FindOptions{Limit: "5"})
	assert.ErrorIs(t, err, orm.ErrInvalidArgument)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_FindNumber(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	users := recordTable(exec, userSchema(t))

	mock.ExpectQuery("SELECT max(`age`) AS _num_ FROM `users` WHERE `name`=?").
		WithArgs("Bob").
		WillReturnRows(sqlmock.NewRows([]string{"_num_"}).AddRow(int64(40)))
	mock.ExpectQuery("SELECT COUNT(*) AS _num_ FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"_num_"}).AddRow([]byte("7")))
	mock.ExpectQuery("SELECT min(`age`) AS _num_ FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"_num_"}))

	ctx := context.Background()
	v, err := users.FindNumber(ctx, "max(`age`)", "`name`=?", "Bob")
	require.NoError(t, err)
	assert.Equal(t, int64(40), v)

	n, err := users.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = users.FindNumber(ctx, "min(`age`)", "")
	assert.ErrorIs(t, err, orm.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Update_BindsUnsetAsNull(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	s := userSchema(t)
	users := recordTable(exec, s)

	mock.ExpectExec("UPDATE `users` SET `name`=?, `age`=? WHERE `id`=?").
		WithArgs("Bob", nil, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := orm.NewRecord(s, map[string]any{"id": "u1", "name": "Bob"})
	require.NoError(t, users.Update(context.Background(), u))
	_, set := u.Value("age")
	assert.False(t, set, "update applies no defaults")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_RowsAffectedMismatch_Warns(t *testing.T) {
	exec, mock, logs := newMockExecutor(t, db.Config{})
	s := userSchema(t)
	users := recordTable(exec, s)

	mock.ExpectExec("DELETE FROM `users` WHERE `id`=?").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := users.Remove(context.Background(), orm.NewRecord(s, map[string]any{"id": "ghost"}))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "failed to remove by primary key")
	assert.Contains(t, logs.String(), "table=users")
}

func TestTable_RowsAffectedMismatch_Strict(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	s := userSchema(t)
	users := recordTable(exec, s, orm.WithStrictWrites())

	mock.ExpectExec("UPDATE `users` SET `name`=?, `age`=? WHERE `id`=?").
		WithArgs("Bob", int64(3), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := users.Update(context.Background(), orm.NewRecord(s, map[string]any{"id": "ghost", "name": "Bob", "age": int64(3)}))
	require.ErrorIs(t, err, orm.ErrRowsAffected)
	var rerr *orm.RowsAffectedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "update", rerr.Op)
	assert.Equal(t, int64(0), rerr.Rows)
	assert.Equal(t, "ghost", rerr.Key)
}

func TestTable_ExplicitTransactionRollback(t *testing.T) {
	exec, mock, _ := newMockExecutor(t, db.Config{})
	s := userSchema(t)
	users := recordTable(exec, s, orm.WithAutocommit(false))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users` (`name`, `age`, `id`) VALUES (?, ?, ?)").
		WithArgs("Bob", int64(0), "u1").
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := users.Save(context.Background(), orm.NewRecord(s, map[string]any{"id": "u1", "name": "Bob"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// End to end, against an in-memory SQLite database
// ─────────────────────────────────────────────────────────────────────────────

func newSQLiteExecutor(t *testing.T, schemas ...*orm.Schema) *orm.Executor {
	t.Helper()
	database, err := db.Open(db.Config{DSN: ":memory:", DriverName: "sqlite3", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	for _, s := range schemas {
		_, err := database.Exec(context.Background(), s.CreateTableSQL())
		require.NoError(t, err)
	}
	return orm.NewExecutor(database)
}

func TestTable_SQLite_Lifecycle(t *testing.T) {
	s := userSchema(t)
	users := recordTable(newSQLiteExecutor(t, s), s)
	ctx := context.Background()

	bob := orm.NewRecord(s, map[string]any{"id": "u1", "name": "Bob"})
	require.NoError(t, users.Save(ctx, bob))

	got, err := users.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Get("name"))
	assert.Equal(t, int64(0), got.Get("age"))

	got.Set("age", 41)
	require.NoError(t, users.Update(ctx, got))
	n, err := users.FindNumber(ctx, "max(`age`)", "")
	require.NoError(t, err)
	assert.Equal(t, int64(41), n)

	require.NoError(t, users.Save(ctx, orm.NewRecord(s, map[string]any{"id": "u2", "name": "Alice", "age": 30})))
	all, err := users.FindAll(ctx, orm.FindOptions{OrderBy: "`name`"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Get("name"))

	page, err := users.FindAll(ctx, orm.FindOptions{OrderBy: "`name`", Limit: [2]int{1, 1}})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Bob", page[0].Get("name"))

	require.NoError(t, users.Remove(ctx, got))
	_, err = users.Find(ctx, "u1")
	assert.ErrorIs(t, err, orm.ErrNotFound)

	count, err := users.Count(ctx, "`age`>?", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTable_SQLite_DuplicateKey(t *testing.T) {
	s := userSchema(t)
	users := recordTable(newSQLiteExecutor(t, s), s, orm.WithAutocommit(false))
	ctx := context.Background()

	require.NoError(t, users.Save(ctx, orm.NewRecord(s, map[string]any{"id": "u1", "name": "Bob"})))
	err := users.Save(ctx, orm.NewRecord(s, map[string]any{"id": "u1", "name": "Again"}))
	assert.True(t, db.IsDuplicateKey(err), "got %v", err)

	n, err := users.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the failed insert was rolled back")
}

func TestTable_SQLite_ConcurrentUse(t *testing.T) {
	s := userSchema(t)
	users := recordTable(newSQLiteExecutor(t, s), s)
	ctx := context.Background()

	const n = 20
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			return users.Save(gctx, orm.NewRecord(s, map[string]any{
				"id":   fmt.Sprintf("u%02d", i),
				"name": fmt.Sprintf("user %d", i),
				"age":  i,
			}))
		})
	}
	require.NoError(t, g.Wait())

	g, gctx = errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			u, err := users.Find(gctx, fmt.Sprintf("u%02d", i))
			if err != nil {
				return err
			}
			if got := u.Get("age"); got != int64(i) {
				return fmt.Errorf("u%02d: age %v", i, got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	count, err := users.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}
