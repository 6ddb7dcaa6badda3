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
	"library-api/internal/infrastructure/monitoring"
	"library-api/internal/pkg/apperrors"
	"library-api/internal/pkg/pagination"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

type BookRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ book.Repository = (*BookRepository)(nil)

func NewBookRepository(db DBPool, logger *slog.Logger) *BookRepository {
	if db == nil {
		panic("DBPool cannot be nil for BookRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewBookRepository, using default stderr handler")
	}
	return &BookRepository{
		db:     db,
		logger: logger.With("component", "BookRepository"),
	}
}

func (r *BookRepository) Save(ctx context.Context, b *book.Book) (*book.Book, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: book cannot be nil", apperrors.ErrInvalidArgument)
	}

	if b.ID == 0 {
		return r.createBook(ctx, b)
	}
	return r.updateBook(ctx, b)
}

func (r *BookRepository) createBook(ctx context.Context, b *book.Book) (*book.Book, error) {
	r.logger.InfoContext(ctx, "Attempting to insert new book", slog.String("isbn", b.Isbn))

	query := `
        INSERT INTO books (title, author, isbn, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	status := "success"
	startTime := time.Now()
	err := r.db.QueryRow(ctx, query,
		b.Title,
		b.Author,
		b.Isbn,
	).Scan(
		&b.ID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("InsertBook", status, time.Since(startTime))

	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to insert book due to unique constraint violation", slog.String("isbn", b.Isbn))
			return nil, translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to insert book", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to insert book: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Book inserted successfully", slog.Int64("bookID", b.ID))
	return b, nil
}

func (r *BookRepository) updateBook(ctx context.Context, b *book.Book) (*book.Book, error) {
	r.logger.InfoContext(ctx, "Attempting to update book", slog.Int64("bookID", b.ID))

	query := `
        UPDATE books
        SET title = $1,
            author = $2,
            isbn = $3,
            updated_at = NOW()
        WHERE id = $4`

	cmdTag, err := r.db.Exec(ctx, query,
		b.Title,
		b.Author,
		b.Isbn,
		b.ID,
	)
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to update book due to unique constraint violation", slog.String("isbn", b.Isbn))
			return nil, translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to update book", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to update book: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update affected zero rows, book likely not found", slog.Int64("bookID", b.ID))
		return nil, apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Book updated successfully", slog.Int64("bookID", b.ID))
	return b, nil
}

func (r *BookRepository) FindByID(ctx context.Context, bookID int64) (*book.Book, error) {
	query := `
        SELECT id, title, author, isbn, created_at, updated_at
        FROM books
        WHERE id = $1`

	status := "success"
	startTime := time.Now()

	var b book.Book
	err := r.db.QueryRow(ctx, query, bookID).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Isbn,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetBookByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Book not found", "book_id", bookID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get book by ID", "book_id", bookID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &b, nil
}

func (r *BookRepository) FindByIsbn(ctx context.Context, isbn string) (*book.Book, error) {
	query := `
        SELECT id, title, author, isbn, created_at, updated_at
        FROM books
        WHERE isbn = $1`

	var b book.Book
	err := r.db.QueryRow(ctx, query, isbn).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Isbn,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Book not found by isbn", "isbn", isbn)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get book by isbn", "isbn", isbn, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &b, nil
}

func (r *BookRepository) ExistsByID(ctx context.Context, bookID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`

	var exists bool
	err := r.db.QueryRow(ctx, query, bookID).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check book existence", "book_id", bookID, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

func (r *BookRepository) ExistsByIsbn(ctx context.Context, isbn string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1)`

	var exists bool
	err := r.db.QueryRow(ctx, query, isbn).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check book existence by isbn", "isbn", isbn, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

func (r *BookRepository) DeleteByID(ctx context.Context, bookID int64) error {
	r.logger.InfoContext(ctx, "Attempting to delete book", slog.Int64("bookID", bookID))

	query := `DELETE FROM books WHERE id = $1`

	cmdTag, err := r.db.Exec(ctx, query, bookID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to execute delete book", slog.Any("error", err))
		return fmt.Errorf("%w: failed to delete book: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Delete affected zero rows, book likely not found", slog.Int64("bookID", bookID))
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Book deleted successfully", slog.Int64("bookID", bookID))
	return nil
}

func (r *BookRepository) FindByExample(ctx context.Context, example *book.Book, page pagination.PageRequest) (pagination.Page[book.Book], error) {
	empty := pagination.Page[book.Book]{}

	predicates := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if example != nil {
		if example.Title != "" {
			args = append(args, escapeLikePrefix(example.Title))
			predicates = append(predicates, fmt.Sprintf(`title ILIKE $%d || '%%' ESCAPE '\'`, len(args)))
		}
		if example.Author != "" {
			args = append(args, escapeLikePrefix(example.Author))
			predicates = append(predicates, fmt.Sprintf(`author ILIKE $%d || '%%' ESCAPE '\'`, len(args)))
		}
		if example.Isbn != "" {
			args = append(args, escapeLikePrefix(example.Isbn))
			predicates = append(predicates, fmt.Sprintf(`isbn ILIKE $%d || '%%' ESCAPE '\'`, len(args)))
		}
	}

	whereClause := ""
	if len(predicates) > 0 {
		whereClause = " WHERE " + strings.Join(predicates, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM books` + whereClause

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count books", slog.Any("error", err))
		return empty, fmt.Errorf("%w: failed to count books: %w", apperrors.ErrDatabase, err)
	}

	args = append(args, page.Limit())
	limitIdx := len(args)
	args = append(args, page.Offset())
	offsetIdx := len(args)

	query := `
        SELECT id, title, author, isbn, created_at, updated_at
        FROM books` + whereClause +
		fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", limitIdx, offsetIdx)

	status := "success"
	startTime := time.Now()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		monitoring.RecordDBQuery("FindBooksByExample", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query books", slog.Any("error", err))
		return empty, fmt.Errorf("%w: failed to query books: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	books := make([]book.Book, 0)
	for rows.Next() {
		var b book.Book
		err := rows.Scan(
			&b.ID,
			&b.Title,
			&b.Author,
			&b.Isbn,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan book row", slog.Any("error", err))
			return empty, fmt.Errorf("%w: failed to scan book row: %w", apperrors.ErrDatabase, err)
		}
		books = append(books, b)
	}
	if err = rows.Err(); err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindBooksByExample", status, time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error iterating book rows", slog.Any("error", err))
		return empty, fmt.Errorf("%w: error iterating book rows: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Finished finding books", slog.Int("count", len(books)), slog.Int64("total", total))
	return pagination.NewPage(books, total, page), nil
}

// escapeLikePrefix makes a user-supplied value safe as a literal LIKE
// prefix. Filter values are data, not patterns.
func escapeLikePrefix(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {

		if pgErr.Code == "23505" {
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
