// main.go walks through the ORM against the database named in config.yaml:
//
//  1. Layered configuration (defaults, override file, DATABASE_URL)
//  2. Pool initialisation with logging, metrics and tracing hooks
//  3. Table bootstrap from the entity schemas
//  4. Register / authenticate a user
//  5. Lookups and partial updates
//  6. Blogs, comments and pagination
//  7. Dynamic records and scalar queries
//  8. Type-safe error handling
//  9. Retry around an idempotent write
// 10. Cleanup and pool statistics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Skryldev/sql-orm/config"
	"github.com/Skryldev/sql-orm/db"
	"github.com/Skryldev/sql-orm/models"
	"github.com/Skryldev/sql-orm/orm"
	"github.com/Skryldev/sql-orm/repo"
)

func main() {
	configPath := flag.String("config", "config.yaml", "defaults file")
	overridePath := flag.String("override", "config.override.yaml", "optional override file")
	bootstrap := flag.Bool("bootstrap", true, "create missing tables before running")
	flag.Parse()

	// ── 0. Structured logger ──────────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// ── 1. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load(*configPath, *overridePath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	// ── 2. Pool initialisation ────────────────────────────────────────────
	stats := &db.QueryStats{}
	database, err := cfg.DB.Open(
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: 200 * time.Millisecond,
		}),
		db.NewMetricsHook(stats),
		db.NewTracingHook(&logTracer{logger: logger}),
	)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer database.Close()

	slog.Info("database connected", "driver", cfg.DB.Driver, "placeholder", database.Placeholder().String())

	ctx := context.Background()
	exec := orm.NewExecutor(database, orm.WithLogger(logger))

	tableOpts := []orm.TableOption{orm.WithAutocommit(cfg.DB.Autocommit)}
	if cfg.DB.StrictWrites {
		tableOpts = append(tableOpts, orm.WithStrictWrites())
	}
	users := repo.NewUserRepo(exec, tableOpts...)
	blogs := repo.NewBlogRepo(exec, tableOpts...)

	// ── 3. Table bootstrap ────────────────────────────────────────────────
	//
	// Production databases are created by cmd/migrate; this is for a fresh
	// development database.
	if *bootstrap {
		for _, s := range []*orm.Schema{
			(*models.User)(nil).Schema(),
			(*models.Blog)(nil).Schema(),
			(*models.Comment)(nil).Schema(),
		} {
			if _, err := database.Exec(ctx, database.Rebind(s.CreateTableSQL())); err != nil {
				fatalf("create table %s: %v", s.Table(), err)
			}
		}
	}

	// ── 4. Register / authenticate ────────────────────────────────────────
	alice, err := users.Register(ctx, models.CreateUserParams{
		Name:   "Alice Smith",
		Email:  fmt.Sprintf("alice-%d@example.com", time.Now().UnixNano()),
		Passwd: "correct horse",
	})
	if err != nil {
		fatalf("register user: %v", err)
	}
	slog.Info("registered user", "id", alice.ID, "email", alice.Email)

	if _, err := users.Authenticate(ctx, alice.Email, "battery staple"); errors.Is(err, repo.ErrInvalidCredentials) {
		slog.Info("wrong password rejected")
	}
	if _, err := users.Authenticate(ctx, alice.Email, "correct horse"); err != nil {
		fatalf("authenticate: %v", err)
	}

	// ── 5. Lookups and partial updates ────────────────────────────────────
	byEmail, err := users.GetByEmail(ctx, alice.Email)
	if err != nil {
		fatalf("get by email: %v", err)
	}
	slog.Info("found by email", "id", byEmail.ID)

	newName := "Alice Johnson"
	updated, err := users.Update(ctx, models.UpdateUserParams{
		ID:   alice.ID,
		Name: &newName,
		// Image and Admin are nil, left untouched
	})
	if err != nil {
		fatalf("update user: %v", err)
	}
	slog.Info("updated user", "name", updated.Name)

	// ── 6. Blogs, comments and pagination ─────────────────────────────────
	for i := 1; i <= 3; i++ {
		b, err := blogs.Create(ctx, updated,
			fmt.Sprintf("Post %d", i),
			"A short summary",
			"Long form content.")
		if err != nil {
			fatalf("create blog: %v", err)
		}
		if _, err := blogs.Comment(ctx, b.ID, updated, "First!"); err != nil {
			fatalf("comment: %v", err)
		}
	}

	page1, page, err := blogs.List(ctx, 1, 2)
	if err != nil {
		fatalf("list blogs: %v", err)
	}
	slog.Info("blogs page", "items", len(page1), "page", page.PageIndex, "of", page.PageCount, "has_next", page.HasNext)

	// ── 7. Dynamic records and scalar queries ─────────────────────────────
	//
	// A Record carries a schema declared at runtime instead of a struct.
	// Here the same users table is viewed through two of its columns.
	userView := orm.MustSchema("users",
		orm.Define("id", orm.StringField(orm.PrimaryKey(), orm.DDL("varchar(50)"))),
		orm.Define("display_name", orm.StringField(orm.Column("name"))),
	)
	view := orm.NewTable(exec, func() *orm.Record { return orm.NewRecord(userView, nil) })
	rows, err := view.FindAll(ctx, orm.FindOptions{OrderBy: "`name`", Limit: orm.Window{Offset: 0, Count: 5}})
	if err != nil {
		fatalf("find all: %v", err)
	}
	for _, r := range rows {
		slog.Debug("user view", "id", r.Get("id"), "display_name", r.Get("display_name"))
	}

	newest, err := view.FindNumber(ctx, "max(`created_at`)", "")
	if err != nil {
		fatalf("find number: %v", err)
	}
	total, err := users.Count(ctx)
	if err != nil {
		fatalf("count users: %v", err)
	}
	slog.Info("users", "total", total, "newest_created_at", newest)

	// ── 8. Type-safe error handling ───────────────────────────────────────
	//
	// Driver errors are mapped to db sentinels; the orm wraps them in
	// *orm.QueryError without hiding them.
	_, err = users.GetByID(ctx, "no-such-id")
	switch {
	case orm.IsNotFound(err):
		slog.Info("correctly handled not-found")
	case db.IsTimeout(err):
		slog.Error("query timed out")
	case err != nil:
		slog.Error("unexpected error", "err", err)
	}

	rawUsers := orm.NewTable(exec, func() *models.User { return &models.User{} })
	err = rawUsers.Save(ctx, &models.User{ID: alice.ID, Name: "Duplicate", Email: "dup@example.com"})
	if db.IsDuplicateKey(err) {
		slog.Info("correctly caught duplicate key error")
	}
	var qErr *orm.QueryError
	var dbErr *db.DBError
	if errors.As(err, &qErr) && errors.As(err, &dbErr) {
		slog.Debug("raw driver error", "op", qErr.Op, "cause", dbErr.Cause)
	}

	if _, err := view.FindAll(ctx, orm.FindOptions{Limit: "ten"}); errors.Is(err, orm.ErrInvalidArgument) {
		slog.Info("invalid limit rejected before reaching the database")
	}

	// ── 9. Retry ──────────────────────────────────────────────────────────
	//
	// Nothing retries on its own. WithRetry wraps an idempotent operation;
	// by default it retries on ErrDeadlock and ErrTimeout.
	retryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err = db.WithRetry(retryCtx, db.RetryConfig{MaxAttempts: 3, Delay: 100 * time.Millisecond}, func() error {
		_, err := blogs.Edit(retryCtx, page1[0].ID, "Retried title", page1[0].Summary, page1[0].Content)
		return err
	})
	if err != nil {
		slog.Error("retry operation failed", "err", err)
	} else {
		slog.Info("retry operation succeeded")
	}

	// ── 10. Cleanup and pool statistics ───────────────────────────────────
	all, _, err := blogs.List(ctx, 1, 100)
	if err != nil {
		fatalf("list blogs: %v", err)
	}
	for _, b := range all {
		if b.UserID != alice.ID {
			continue
		}
		comments, err := blogs.Comments(ctx, b.ID)
		if err != nil {
			fatalf("comments: %v", err)
		}
		for _, c := range comments {
			if err := blogs.DeleteComment(ctx, c.ID); err != nil {
				fatalf("delete comment: %v", err)
			}
		}
		if err := blogs.Delete(ctx, b.ID); err != nil {
			fatalf("delete blog: %v", err)
		}
	}
	if err := users.Delete(ctx, alice.ID); err != nil {
		fatalf("delete user: %v", err)
	}
	slog.Info("deleted user", "id", alice.ID)

	if err := database.Ping(ctx); err != nil {
		slog.Error("health check failed", "err", err)
	} else {
		ps := database.Stats()
		slog.Info("pool stats",
			"open", ps.OpenConnections,
			"idle", ps.Idle,
			"in_use", ps.InUse,
			"wait_count", ps.WaitCount,
		)
	}
	for query, st := range stats.Snapshot() {
		slog.Debug("statement stats", "sql", query, "calls", st.Calls, "failures", st.Failures, "total", st.Total)
	}

	slog.Info("all examples completed")
}

// ─────────────────────────────────────────────────────────────────────────────
// Tracer stub (replace with an OpenTelemetry tracer in your project)
// ─────────────────────────────────────────────────────────────────────────────

type spanStart struct{}

// logTracer records statement spans as debug log entries.
type logTracer struct {
	logger *slog.Logger
}

func (t *logTracer) StartSpan(ctx context.Context, _ string) context.Context {
	return context.WithValue(ctx, spanStart{}, time.Now())
}

func (t *logTracer) EndSpan(ctx context.Context, err error) {
	start, ok := ctx.Value(spanStart{}).(time.Time)
	if !ok {
		return
	}
	t.logger.DebugContext(ctx, "span", "elapsed", time.Since(start), "error", err)
}

// ─────────────────────────────────────────────────────────────────────────────

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
