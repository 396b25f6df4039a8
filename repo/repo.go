// Package repo implements the application's persistence operations on top of
// orm.Table. Every repository method leases its own connection; none of them
// spans a transaction across statements.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skryldev/sql-orm/orm"
)

var (
	// ErrInvalidCredentials is returned by Authenticate on an unknown email
	// or a wrong password.
	ErrInvalidCredentials = errors.New("repo: invalid credentials")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("repo: validation failed")
)

// ValidationError reports an input field rejected before any statement runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("repo: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "cannot be empty"}
	}
	return nil
}

// newestFirst orders listings by creation time, most recent first.
const newestFirst = "`created_at` DESC"

// listPage counts the rows matching where, then loads page pageIndex.
func listPage[E orm.Entity](ctx context.Context, t *orm.Table[E], where string, args []any, pageIndex, pageSize int) ([]E, Page, error) {
	n, err := t.Count(ctx, where, args...)
	if err != nil {
		return nil, Page{}, err
	}
	p := NewPage(n, pageIndex, pageSize)
	if p.Empty() {
		return []E{}, p, nil
	}
	items, err := t.FindAll(ctx, orm.FindOptions{
		Where:   where,
		Args:    args,
		OrderBy: newestFirst,
		Limit:   p.Window(),
	})
	if err != nil {
		return nil, Page{}, err
	}
	return items, p, nil
}
