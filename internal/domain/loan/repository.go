package loan

import (
	"context"
	"time"

	"library-api/internal/pkg/pagination"
)

type Repository interface {
	Save(ctx context.Context, l *Loan) (*Loan, error)

	FindByID(ctx context.Context, loanID int64) (*Loan, error)

	ExistsByID(ctx context.Context, loanID int64) (bool, error)

	ExistsActiveLoanForBook(ctx context.Context, bookID int64) (bool, error)

	FindByIsbnOrCustomer(ctx context.Context, filter Filter, page pagination.PageRequest) (pagination.Page[Loan], error)

	FindByBook(ctx context.Context, bookID int64, page pagination.PageRequest) (pagination.Page[Loan], error)

	// FindOverdue returns active loans whose loanDate + graceDays lies
	// strictly before asOf.
	FindOverdue(ctx context.Context, asOf time.Time, graceDays int) ([]Loan, error)
}
