package book

import (
	"context"

	"library-api/internal/pkg/pagination"
)

type Repository interface {
	Save(ctx context.Context, b *Book) (*Book, error)

	FindByID(ctx context.Context, bookID int64) (*Book, error)

	FindByIsbn(ctx context.Context, isbn string) (*Book, error)

	ExistsByID(ctx context.Context, bookID int64) (bool, error)

	ExistsByIsbn(ctx context.Context, isbn string) (bool, error)

	DeleteByID(ctx context.Context, bookID int64) error

	// FindByExample treats b as a query template: empty fields impose no
	// constraint, set fields match case-insensitively on prefix.
	FindByExample(ctx context.Context, example *Book, page pagination.PageRequest) (pagination.Page[Book], error)
}
