package repo

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Skryldev/sql-orm/models"
	"github.com/Skryldev/sql-orm/orm"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface: for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines the contract for user persistence operations.
type UserRepository interface {
	Register(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	Authenticate(ctx context.Context, email, passwd string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, pageIndex, pageSize int) ([]*models.User, Page, error)
	Update(ctx context.Context, params models.UpdateUserParams) (*models.User, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// userRepo is the production implementation backed by an orm.Table.
type userRepo struct {
	users *orm.Table[*models.User]
}

// NewUserRepo returns a UserRepository issuing its statements through exec.
// opts are applied to the underlying table (autocommit, strict writes).
func NewUserRepo(exec *orm.Executor, opts ...orm.TableOption) UserRepository {
	return &userRepo{users: orm.NewTable(exec, func() *models.User { return &models.User{} }, opts...)}
}

// Register creates a user. The password is stored as sha1("<id>:<passwd>")
// and the avatar defaults to the email's gravatar.
func (r *userRepo) Register(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	name := strings.TrimSpace(params.Name)
	for _, err := range []error{
		required("name", name),
		required("email", email),
		required("passwd", params.Passwd),
	} {
		if err != nil {
			return nil, err
		}
	}
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Message: "not an email address"}
	}

	id := models.NextID()
	u := &models.User{
		ID:     id,
		Email:  email,
		Passwd: hashPasswd(id, params.Passwd),
		Name:   name,
		Image:  params.Image,
	}
	if u.Image == "" {
		u.Image = gravatar(email)
	}
	if err := r.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate returns the user with email when passwd matches, or
// ErrInvalidCredentials.
func (r *userRepo) Authenticate(ctx context.Context, email, passwd string) (*models.User, error) {
	u, err := r.GetByEmail(ctx, email)
	if orm.IsNotFound(err) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Passwd != hashPasswd(u.ID, passwd) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetByID returns a single user by primary key.
// Returns orm.ErrNotFound when no record matches.
func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.users.Find(ctx, id)
}

// GetByEmail looks up a user by their email address.
// Returns orm.ErrNotFound when no record matches.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	found, err := r.users.FindAll(ctx, orm.FindOptions{
		Where: "`email`=?",
		Args:  []any{email},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("repo/user: email %q: %w", email, orm.ErrNotFound)
	}
	return found[0], nil
}

// List returns one page of users, newest first.
func (r *userRepo) List(ctx context.Context, pageIndex, pageSize int) ([]*models.User, Page, error) {
	return listPage(ctx, r.users, "", nil, pageIndex, pageSize)
}

// Update applies a partial update. Only fields with non-nil pointers in
// params change; the row is rewritten as a whole.
func (r *userRepo) Update(ctx context.Context, params models.UpdateUserParams) (*models.User, error) {
	u, err := r.users.Find(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if err := required("name", name); err != nil {
			return nil, err
		}
		u.Name = name
	}
	if params.Image != nil {
		u.Image = *params.Image
	}
	if params.Admin != nil {
		u.Admin = *params.Admin
	}
	if err := r.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user by id.
// Returns orm.ErrNotFound if there is no such user.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	u, err := r.users.Find(ctx, id)
	if err != nil {
		return err
	}
	return r.users.Remove(ctx, u)
}

// Count returns the total number of users.
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	return r.users.Count(ctx, "")
}

var _ UserRepository = (*userRepo)(nil)

func hashPasswd(id, passwd string) string {
	sum := sha1.Sum([]byte(id + ":" + passwd))
	return hex.EncodeToString(sum[:])
}

func gravatar(email string) string {
	sum := md5.Sum([]byte(email))
	return "http://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=mm&s=120"
}
