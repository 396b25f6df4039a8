package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-orm/db"
	"github.com/Skryldev/sql-orm/models"
	"github.com/Skryldev/sql-orm/orm"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixture
// ─────────────────────────────────────────────────────────────────────────────

// newTestExecutor opens a private in-memory database holding the model
// tables. A single connection keeps every lease on the same database.
func newTestExecutor(t *testing.T) *orm.Executor {
	t.Helper()

	database, err := db.Open(db.Config{
		DSN:          ":memory:",
		DriverName:   "sqlite3",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	for _, s := range []*orm.Schema{
		(*models.User)(nil).Schema(),
		(*models.Blog)(nil).Schema(),
		(*models.Comment)(nil).Schema(),
	} {
		_, err := database.Exec(ctx, s.CreateTableSQL())
		require.NoError(t, err, s.Table())
	}
	return orm.NewExecutor(database)
}
