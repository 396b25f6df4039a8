package repo

import (
	"context"
	"strings"

	"github.com/Skryldev/sql-orm/models"
	"github.com/Skryldev/sql-orm/orm"
)

// BlogRepository persists blogs and their comments.
type BlogRepository interface {
	Create(ctx context.Context, author *models.User, name, summary, content string) (*models.Blog, error)
	Get(ctx context.Context, id string) (*models.Blog, error)
	List(ctx context.Context, pageIndex, pageSize int) ([]*models.Blog, Page, error)
	Edit(ctx context.Context, id, name, summary, content string) (*models.Blog, error)
	Delete(ctx context.Context, id string) error

	Comment(ctx context.Context, blogID string, author *models.User, content string) (*models.Comment, error)
	Comments(ctx context.Context, blogID string) ([]*models.Comment, error)
	ListComments(ctx context.Context, pageIndex, pageSize int) ([]*models.Comment, Page, error)
	DeleteComment(ctx context.Context, id string) error
}

type blogRepo struct {
	blogs    *orm.Table[*models.Blog]
	comments *orm.Table[*models.Comment]
}

// NewBlogRepo returns a BlogRepository issuing its statements through exec.
func NewBlogRepo(exec *orm.Executor, opts ...orm.TableOption) BlogRepository {
	return &blogRepo{
		blogs:    orm.NewTable(exec, func() *models.Blog { return &models.Blog{} }, opts...),
		comments: orm.NewTable(exec, func() *models.Comment { return &models.Comment{} }, opts...),
	}
}

func (r *blogRepo) Create(ctx context.Context, author *models.User, name, summary, content string) (*models.Blog, error) {
	b := &models.Blog{
		UserID:    author.ID,
		UserName:  author.Name,
		UserImage: author.Image,
		Name:      strings.TrimSpace(name),
		Summary:   strings.TrimSpace(summary),
		Content:   strings.TrimSpace(content),
	}
	if err := validateBlog(b); err != nil {
		return nil, err
	}
	if err := r.blogs.Save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *blogRepo) Get(ctx context.Context, id string) (*models.Blog, error) {
	return r.blogs.Find(ctx, id)
}

// List returns one page of blogs, newest first.
func (r *blogRepo) List(ctx context.Context, pageIndex, pageSize int) ([]*models.Blog, Page, error) {
	return listPage(ctx, r.blogs, "", nil, pageIndex, pageSize)
}

// Edit replaces the name, summary and content of a blog.
func (r *blogRepo) Edit(ctx context.Context, id, name, summary, content string) (*models.Blog, error) {
	b, err := r.blogs.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Name = strings.TrimSpace(name)
	b.Summary = strings.TrimSpace(summary)
	b.Content = strings.TrimSpace(content)
	if err := validateBlog(b); err != nil {
		return nil, err
	}
	if err := r.blogs.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes a blog. Its comments are left in place.
func (r *blogRepo) Delete(ctx context.Context, id string) error {
	b, err := r.blogs.Find(ctx, id)
	if err != nil {
		return err
	}
	return r.blogs.Remove(ctx, b)
}

// Comment adds a comment to an existing blog.
func (r *blogRepo) Comment(ctx context.Context, blogID string, author *models.User, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if err := required("content", content); err != nil {
		return nil, err
	}
	if _, err := r.blogs.Find(ctx, blogID); err != nil {
		return nil, err
	}
	c := &models.Comment{
		BlogID:    blogID,
		UserID:    author.ID,
		UserName:  author.Name,
		UserImage: author.Image,
		Content:   content,
	}
	if err := r.comments.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Comments returns every comment of a blog, newest first.
func (r *blogRepo) Comments(ctx context.Context, blogID string) ([]*models.Comment, error) {
	return r.comments.FindAll(ctx, orm.FindOptions{
		Where:   "`blog_id`=?",
		Args:    []any{blogID},
		OrderBy: newestFirst,
	})
}

func (r *blogRepo) ListComments(ctx context.Context, pageIndex, pageSize int) ([]*models.Comment, Page, error) {
	return listPage(ctx, r.comments, "", nil, pageIndex, pageSize)
}

func (r *blogRepo) DeleteComment(ctx context.Context, id string) error {
	c, err := r.comments.Find(ctx, id)
	if err != nil {
		return err
	}
	return r.comments.Remove(ctx, c)
}

var _ BlogRepository = (*blogRepo)(nil)

func validateBlog(b *models.Blog) error {
	for _, err := range []error{
		required("name", b.Name),
		required("summary", b.Summary),
		required("content", b.Content),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
