package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"library-api/internal/infrastructure/monitoring"
	"library-api/internal/pkg/apperrors"
	"library-api/internal/pkg/pagination"
)

type BookService interface {
	Create(ctx context.Context, b *Book) (*Book, error)

	GetByID(ctx context.Context, bookID int64) (*Book, error)

	Update(ctx context.Context, bookID int64, title, author string) (*Book, error)

	DeleteByID(ctx context.Context, bookID int64) error

	Find(ctx context.Context, example *Book, page pagination.PageRequest) (pagination.Page[Book], error)

	GetByIsbn(ctx context.Context, isbn string) (*Book, error)
}

var _ BookService = (*bookService)(nil)

type bookService struct {
	repo   Repository
	logger *slog.Logger
}

func NewBookService(repo Repository, logger *slog.Logger) BookService {
	if repo == nil {
		panic("book repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewBookService, using default stderr handler")
	}
	return &bookService{
		repo:   repo,
		logger: logger.With(slog.String("component", "bookService")),
	}
}

func (s *bookService) Create(ctx context.Context, b *Book) (*Book, error) {
	logCtx := s.logger.With(slog.String("isbn", b.Isbn))
	logCtx.InfoContext(ctx, "Attempting to register new book")

	exists, err := s.repo.ExistsByIsbn(ctx, b.Isbn)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error checking isbn existence", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check isbn %s: %w", b.Isbn, err)
	}
	if exists {
		logCtx.WarnContext(ctx, "Business rule failed: isbn already registered")
		return nil, fmt.Errorf("%w: Isbn already registered", apperrors.ErrConflict)
	}

	created, err := s.repo.Save(ctx, b)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository failed to save new book", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new book: %w", err)
	}

	monitoring.RecordBookCreated()
	logCtx.InfoContext(ctx, "Successfully registered new book", slog.Int64("bookID", created.ID))
	return created, nil
}

// GetByID returns (nil, nil) when the book does not exist. Absence is a
// normal outcome for this operation; callers decide how to surface it.
func (s *bookService) GetByID(ctx context.Context, bookID int64) (*Book, error) {
	logCtx := s.logger.With(slog.Int64("bookID", bookID))
	logCtx.InfoContext(ctx, "Attempting to get book by ID")

	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Book not found by repository")
			return nil, nil
		}
		logCtx.ErrorContext(ctx, "Repository error finding book", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get book %d: %w", bookID, err)
	}
	return b, nil
}

func (s *bookService) Update(ctx context.Context, bookID int64, title, author string) (*Book, error) {
	logCtx := s.logger.With(slog.Int64("bookID", bookID))
	logCtx.InfoContext(ctx, "Attempting to update book details")

	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Book not found by repository for update")
			return nil, fmt.Errorf("%w: Book not found", apperrors.ErrNotFound)
		}
		logCtx.ErrorContext(ctx, "Repository error finding book for update", slog.Any("error", err))
		return nil, fmt.Errorf("cannot find book %d to update: %w", bookID, err)
	}

	b.UpdateDetails(title, author)
	updated, err := s.repo.Save(ctx, b)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository failed to save updated book", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save updated book %d: %w", bookID, err)
	}

	logCtx.InfoContext(ctx, "Successfully updated book details")
	return updated, nil
}

func (s *bookService) DeleteByID(ctx context.Context, bookID int64) error {
	logCtx := s.logger.With(slog.Int64("bookID", bookID))
	logCtx.InfoContext(ctx, "Attempting to delete book")

	exists, err := s.repo.ExistsByID(ctx, bookID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error checking book existence", slog.Any("error", err))
		return fmt.Errorf("failed to check book %d: %w", bookID, err)
	}
	if !exists {
		logCtx.WarnContext(ctx, "Book not found for delete")
		return fmt.Errorf("%w: Book not found", apperrors.ErrNotFound)
	}

	if err := s.repo.DeleteByID(ctx, bookID); err != nil {
		logCtx.ErrorContext(ctx, "Repository failed to delete book", slog.Any("error", err))
		return fmt.Errorf("failed to delete book %d: %w", bookID, err)
	}

	logCtx.InfoContext(ctx, "Successfully deleted book")
	return nil
}

func (s *bookService) Find(ctx context.Context, example *Book, page pagination.PageRequest) (pagination.Page[Book], error) {
	s.logger.InfoContext(ctx, "Finding books by example",
		slog.String("title", example.Title),
		slog.String("author", example.Author),
		slog.String("isbn", example.Isbn),
		slog.Int("page", page.Page),
		slog.Int("size", page.Size),
	)

	result, err := s.repo.FindByExample(ctx, example, page)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error finding books by example", slog.Any("error", err))
		return pagination.Page[Book]{}, fmt.Errorf("failed to find books: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully found books", slog.Int("count", len(result.Items)), slog.Int64("total", result.TotalItems))
	return result, nil
}

// GetByIsbn performs an explicit existence probe before the lookup so the
// unknown-isbn rejection stays inside the domain layer.
func (s *bookService) GetByIsbn(ctx context.Context, isbn string) (*Book, error) {
	logCtx := s.logger.With(slog.String("isbn", isbn))
	logCtx.InfoContext(ctx, "Attempting to get book by isbn")

	exists, err := s.repo.ExistsByIsbn(ctx, isbn)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error checking isbn existence", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check isbn %s: %w", isbn, err)
	}
	if !exists {
		logCtx.WarnContext(ctx, "No book registered with this isbn")
		return nil, fmt.Errorf("%w: Book not found", apperrors.ErrNotFound)
	}

	b, err := s.repo.FindByIsbn(ctx, isbn)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error finding book by isbn", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get book by isbn %s: %w", isbn, err)
	}

	logCtx.InfoContext(ctx, "Successfully found book by isbn", slog.Int64("bookID", b.ID))
	return b, nil
}
