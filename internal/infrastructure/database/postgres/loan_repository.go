package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"library-api/internal/domain/book"
	"library-api/internal/domain/loan"
	"library-api/internal/infrastructure/monitoring"
	"library-api/internal/pkg/apperrors"
	"library-api/internal/pkg/pagination"

	"github.com/jackc/pgx/v5"
)

const loanSelectColumns = `
        l.id, l.customer, l.customer_email, l.book_id, l.loan_date, l.returned, l.created_at, l.updated_at,
        b.id, b.title, b.author, b.isbn, b.created_at, b.updated_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	if db == nil {
		panic("DBPool cannot be nil for LoanRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewLoanRepository, using default stderr handler")
	}
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	var b book.Book
	err := row.Scan(
		&l.ID, &l.Customer, &l.CustomerEmail, &l.BookID, &l.LoanDate, &l.Returned, &l.CreatedAt, &l.UpdatedAt,
		&b.ID, &b.Title, &b.Author, &b.Isbn, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Book = &b
	return &l, nil
}

func (r *LoanRepository) Save(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}

	if l.ID == 0 {
		return r.createLoan(ctx, l)
	}
	return r.updateLoan(ctx, l)
}

func (r *LoanRepository) createLoan(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	r.logger.InfoContext(ctx, "Attempting to insert new loan", slog.Int64("bookID", l.BookID))

	query := `
        INSERT INTO loans (customer, customer_email, book_id, loan_date, returned, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	status := "success"
	startTime := time.Now()
	err := r.db.QueryRow(ctx, query,
		l.Customer,
		l.CustomerEmail,
		l.BookID,
		l.LoanDate,
		l.Returned,
	).Scan(
		&l.ID,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("InsertLoan", status, time.Since(startTime))

	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to insert loan, book already has an active loan", slog.Int64("bookID", l.BookID))
			return nil, fmt.Errorf("%w: book already loaned", apperrors.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to insert loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Loan inserted successfully", slog.Int64("loanID", l.ID))
	return l, nil
}

func (r *LoanRepository) updateLoan(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	r.logger.InfoContext(ctx, "Attempting to update loan", slog.Int64("loanID", l.ID))

	query := `
        UPDATE loans
        SET customer = $1,
            customer_email = $2,
            book_id = $3,
            loan_date = $4,
            returned = $5,
            updated_at = NOW()
        WHERE id = $6`

	cmdTag, err := r.db.Exec(ctx, query,
		l.Customer,
		l.CustomerEmail,
		l.BookID,
		l.LoanDate,
		l.Returned,
		l.ID,
	)
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to update loan, book already has an active loan", slog.Int64("bookID", l.BookID))
			return nil, fmt.Errorf("%w: book already loaned", apperrors.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to update loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to update loan: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update affected zero rows, loan likely not found", slog.Int64("loanID", l.ID))
		return nil, apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Loan updated successfully", slog.Int64("loanID", l.ID))
	return l, nil
}

func (r *LoanRepository) FindByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT` + loanSelectColumns + `
        FROM loans l
        JOIN books b ON b.id = l.book_id
        WHERE l.id = $1`

	status := "success"
	startTime := time.Now()
	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) ExistsByID(ctx context.Context, loanID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`

	var exists bool
	err := r.db.QueryRow(ctx, query, loanID).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check loan existence", "loan_id", loanID, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

func (r *LoanRepository) ExistsActiveLoanForBook(ctx context.Context, bookID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM loans WHERE book_id = $1 AND NOT returned)`

	var exists bool
	err := r.db.QueryRow(ctx, query, bookID).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check active loan for book", "book_id", bookID, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

func (r *LoanRepository) FindByIsbnOrCustomer(ctx context.Context, filter loan.Filter, page pagination.PageRequest) (pagination.Page[loan.Loan], error) {
	empty := pagination.Page[loan.Loan]{}

	// Non-empty filter fields widen the match, an all-empty filter
	// matches every loan.
	predicates := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Isbn != "" {
		args = append(args, filter.Isbn)
		predicates = append(predicates, fmt.Sprintf("b.isbn = $%d", len(args)))
	}
	if filter.Customer != "" {
		args = append(args, filter.Customer)
		predicates = append(predicates, fmt.Sprintf("l.customer = $%d", len(args)))
	}

	whereClause := ""
	if len(predicates) > 0 {
		whereClause = " WHERE " + strings.Join(predicates, " OR ")
	}

	countQuery := `SELECT COUNT(*) FROM loans l JOIN books b ON b.id = l.book_id` + whereClause

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count loans", slog.Any("error", err))
		return empty, fmt.Errorf("%w: failed to count loans: %w", apperrors.ErrDatabase, err)
	}

	args = append(args, page.Limit())
	limitIdx := len(args)
	args = append(args, page.Offset())
	offsetIdx := len(args)

	query := `
        SELECT` + loanSelectColumns + `
        FROM loans l
        JOIN books b ON b.id = l.book_id` + whereClause +
		fmt.Sprintf(" ORDER BY l.id ASC LIMIT $%d OFFSET $%d", limitIdx, offsetIdx)

	loans, err := r.queryLoans(ctx, "FindLoansByIsbnOrCustomer", query, args...)
	if err != nil {
		return empty, err
	}

	r.logger.InfoContext(ctx, "Finished finding loans", slog.Int("count", len(loans)), slog.Int64("total", total))
	return pagination.NewPage(loans, total, page), nil
}

func (r *LoanRepository) FindByBook(ctx context.Context, bookID int64, page pagination.PageRequest) (pagination.Page[loan.Loan], error) {
	empty := pagination.Page[loan.Loan]{}

	countQuery := `SELECT COUNT(*) FROM loans WHERE book_id = $1`

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, bookID).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count loans for book", "book_id", bookID, "error", err)
		return empty, fmt.Errorf("%w: failed to count loans for book: %w", apperrors.ErrDatabase, err)
	}

	query := `
        SELECT` + loanSelectColumns + `
        FROM loans l
        JOIN books b ON b.id = l.book_id
        WHERE l.book_id = $1
        ORDER BY l.id ASC LIMIT $2 OFFSET $3`

	loans, err := r.queryLoans(ctx, "FindLoansByBook", query, bookID, page.Limit(), page.Offset())
	if err != nil {
		return empty, err
	}

	return pagination.NewPage(loans, total, page), nil
}

func (r *LoanRepository) FindOverdue(ctx context.Context, asOf time.Time, graceDays int) ([]loan.Loan, error) {
	query := `
        SELECT` + loanSelectColumns + `
        FROM loans l
        JOIN books b ON b.id = l.book_id
        WHERE NOT l.returned
          AND l.loan_date + make_interval(days => $2) < $1
        ORDER BY l.loan_date ASC`

	loans, err := r.queryLoans(ctx, "FindOverdueLoans", query, asOf, graceDays)
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Finished finding overdue loans", slog.Int("count", len(loans)))
	return loans, nil
}

func (r *LoanRepository) queryLoans(ctx context.Context, queryName, query string, args ...any) ([]loan.Loan, error) {
	status := "success"
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		monitoring.RecordDBQuery(queryName, "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query loans", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan loan row: %w", apperrors.ErrDatabase, err)
		}
		loans = append(loans, *l)
	}
	if err = rows.Err(); err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery(queryName, status, time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating loan rows: %w", apperrors.ErrDatabase, err)
	}

	return loans, nil
}
