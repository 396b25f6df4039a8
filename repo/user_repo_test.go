package repo_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-orm/db"
	"github.com/Skryldev/sql-orm/models"
	"github.com/Skryldev/sql-orm/orm"
	"github.com/Skryldev/sql-orm/repo"
)

func newUserRepo(t *testing.T, opts ...orm.TableOption) repo.UserRepository {
	t.Helper()
	return repo.NewUserRepo(newTestExecutor(t), opts...)
}

func register(t *testing.T, r repo.UserRepository, name, email string) *models.User {
	t.Helper()
	u, err := r.Register(context.Background(), models.CreateUserParams{
		Name:   name,
		Email:  email,
		Passwd: "secret",
	})
	require.NoError(t, err)
	return u
}

// ─────────────────────────────────────────────────────────────────────────────
// Register
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Register(t *testing.T) {
	r := newUserRepo(t)

	u := register(t, r, "Alice", " Alice@Repo.com ")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@repo.com", u.Email)
	assert.NotEqual(t, "secret", u.Passwd)
	assert.True(t, strings.HasPrefix(u.Image, "http://www.gravatar.com/avatar/"))
	assert.NotZero(t, u.CreatedAt, "created_at default applied")
	assert.False(t, u.Admin)

	got, err := r.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestUserRepo_Register_Validation(t *testing.T) {
	r := newUserRepo(t)
	ctx := context.Background()

	cases := []models.CreateUserParams{
		{Email: "a@b.c", Passwd: "x"},
		{Name: "A", Passwd: "x"},
		{Name: "A", Email: "a@b.c"},
		{Name: "A", Email: "not-an-email", Passwd: "x"},
	}
	for _, params := range cases {
		_, err := r.Register(ctx, params)
		assert.ErrorIs(t, err, repo.ErrValidation, "%+v", params)
	}

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserRepo_Register_DuplicateID(t *testing.T) {
	exec := newTestExecutor(t)
	users := orm.NewTable(exec, func() *models.User { return &models.User{} })
	ctx := context.Background()

	u := &models.User{ID: "fixed", Name: "A", Email: "a@b.c"}
	require.NoError(t, users.Save(ctx, u))

	err := users.Save(ctx, &models.User{ID: "fixed", Name: "B", Email: "b@b.c"})
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKey(err), "got %v", err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	r := newUserRepo(t)
	_, err := r.GetByID(context.Background(), "missing")
	assert.True(t, orm.IsNotFound(err), "got %v", err)
	assert.True(t, db.IsNotFound(err))
}

func TestUserRepo_GetByEmail(t *testing.T) {
	r := newUserRepo(t)
	ctx := context.Background()
	created := register(t, r, "Bob", "bob@repo.com")

	got, err := r.GetByEmail(ctx, "BOB@repo.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = r.GetByEmail(ctx, "nobody@repo.com")
	assert.ErrorIs(t, err, orm.ErrNotFound)
}

func TestUserRepo_Authenticate(t *testing.T) {
	r := newUserRepo(t)
	ctx := context.Background()
	created := register(t, r, "Carol", "carol@repo.com")

	u, err := r.Authenticate(ctx, "carol@repo.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, err = r.Authenticate(ctx, "carol@repo.com", "wrong")
	assert.ErrorIs(t, err, repo.ErrInvalidCredentials)

	_, err = r.Authenticate(ctx, "nobody@repo.com", "secret")
	assert.ErrorIs(t, err, repo.ErrInvalidCredentials)
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Update(t *testing.T) {
	r := newUserRepo(t)
	ctx := context.Background()
	created := register(t, r, "Dave", "dave@repo.com")

	name, admin := "David", true
	updated, err := r.Update(ctx, models.UpdateUserParams{ID: created.ID, Name: &name, Admin: &admin})
	require.NoError(t, err)
	assert.Equal(t, "David", updated.Name)

	got, err := r.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "David", got.Name)
	assert.True(t, got.Admin)
	assert.Equal(t, created.Email, got.Email, "untouched fields survive")
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestUserRepo_Update_NotFound(t *testing.T) {
	r := newUserRepo(t)
	name := "x"
	_, err := r.Update(context.Background(), models.UpdateUserParams{ID: "missing", Name: &name})
	assert.ErrorIs(t, err, orm.ErrNotFound)
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete / List / Count
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Delete(t *testing.T) {
	r := newUserRepo(t)
	ctx := context.Background()
	u := register(t, r, "Eve", "eve@repo.com")

	require.NoError(t, r.Delete(ctx, u.ID))
	_, err := r.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, orm.ErrNotFound)

	assert.ErrorIs(t, r.Delete(ctx, u.ID), orm.ErrNotFound)
}

func TestUserRepo_List(t *testing.T) {
	r := newUserRepo(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		register(t, r, name, name+"@repo.com")
	}

	first, page, err := r.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, int64(5), page.ItemCount)
	assert.Equal(t, 3, page.PageCount)
	assert.True(t, page.HasNext)

	last, page, err := r.List(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last, 1)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrevious)

	seen := map[string]bool{}
	for i := 1; i <= 3; i++ {
		users, _, err := r.List(ctx, i, 2)
		require.NoError(t, err)
		for _, u := range users {
			seen[u.ID] = true
		}
	}
	assert.Len(t, seen, 5, "pages do not overlap")

	none, page, err := r.List(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, 1, page.PageIndex)
}

func TestUserRepo_Count(t *testing.T) {
	r := newUserRepo(t)
	ctx := context.Background()

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	register(t, r, "F", "f@repo.com")
	register(t, r, "G", "g@repo.com")

	n, err = r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUserRepo_ExplicitTransactions(t *testing.T) {
	r := newUserRepo(t, orm.WithAutocommit(false), orm.WithStrictWrites())
	ctx := context.Background()

	u := register(t, r, "Hal", "hal@repo.com")
	admin := true
	_, err := r.Update(ctx, models.UpdateUserParams{ID: u.ID, Admin: &admin})
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, u.ID))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
