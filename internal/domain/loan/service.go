package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"library-api/internal/event"
	"library-api/internal/infrastructure/monitoring"
	"library-api/internal/pkg/apperrors"
	"library-api/internal/pkg/pagination"
)

type LoanService interface {
	Create(ctx context.Context, l *Loan) (*Loan, error)

	GetByID(ctx context.Context, loanID int64) (*Loan, error)

	ReturnBook(ctx context.Context, l *Loan) (*Loan, error)

	UndoReturn(ctx context.Context, l *Loan) (*Loan, error)

	Find(ctx context.Context, filter Filter, page pagination.PageRequest) (pagination.Page[Loan], error)

	FindByBook(ctx context.Context, bookID int64, page pagination.PageRequest) (pagination.Page[Loan], error)

	FindOverdue(ctx context.Context, asOf time.Time, graceDays int) ([]Loan, error)
}

var _ LoanService = (*loanService)(nil)

type loanService struct {
	repo   Repository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewLoanService(repo Repository, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if repo == nil {
		panic("loan repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewLoanService, using default stderr handler")
	}
	return &loanService{
		repo:   repo,
		pub:    pub,
		logger: logger.With(slog.String("component", "loanService")),
	}
}

// Create persists a new loan after the active-loan exclusivity check.
// The check is the fast path; the store's partial unique index on active
// loans is the enforcement backstop for concurrent creates.
func (s *loanService) Create(ctx context.Context, l *Loan) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("bookID", l.BookID), slog.String("customer", l.Customer))
	logCtx.InfoContext(ctx, "Attempting to create new loan")

	active, err := s.repo.ExistsActiveLoanForBook(ctx, l.BookID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error checking active loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check active loan for book %d: %w", l.BookID, err)
	}
	if active {
		logCtx.WarnContext(ctx, "Business rule failed: book already loaned")
		return nil, fmt.Errorf("%w: Book already loaned", apperrors.ErrConflict)
	}

	created, err := s.repo.Save(ctx, l)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrAlreadyExists) {
			logCtx.WarnContext(ctx, "Active loan conflict detected by store during save")
			return nil, fmt.Errorf("%w: Book already loaned", apperrors.ErrConflict)
		}
		logCtx.ErrorContext(ctx, "Repository failed to save new loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new loan: %w", err)
	}

	monitoring.RecordLoanCreated()
	logCtx = logCtx.With(slog.Int64("loanID", created.ID))
	logCtx.InfoContext(ctx, "Successfully created new loan, publishing creation event")
	s.publishLoanCreated(ctx, created)

	return created, nil
}

func (s *loanService) GetByID(ctx context.Context, loanID int64) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("loanID", loanID))
	logCtx.InfoContext(ctx, "Attempting to get loan by ID")

	exists, err := s.repo.ExistsByID(ctx, loanID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error checking loan existence", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check loan %d: %w", loanID, err)
	}
	if !exists {
		logCtx.WarnContext(ctx, "Loan not found by repository")
		return nil, fmt.Errorf("%w: Loan not found", apperrors.ErrNotFound)
	}

	l, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error finding loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}

	logCtx.InfoContext(ctx, "Successfully retrieved loan")
	return l, nil
}

// ReturnBook marks the loan returned and persists the full record. The
// caller is responsible for having fetched a current loan first; there
// is no re-check against stored state.
func (s *loanService) ReturnBook(ctx context.Context, l *Loan) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("loanID", l.ID))
	logCtx.InfoContext(ctx, "Marking loan as returned")

	l.Return()
	saved, err := s.repo.Save(ctx, l)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository failed to save returned loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save returned loan %d: %w", l.ID, err)
	}

	monitoring.RecordLoanReturned("return")
	logCtx.InfoContext(ctx, "Successfully marked loan as returned, publishing event")
	s.publishLoanReturned(ctx, saved)
	return saved, nil
}

// UndoReturn reverts a return, making the loan active again.
func (s *loanService) UndoReturn(ctx context.Context, l *Loan) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("loanID", l.ID))
	logCtx.InfoContext(ctx, "Reverting loan return")

	l.UndoReturn()
	saved, err := s.repo.Save(ctx, l)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository failed to save reverted loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save reverted loan %d: %w", l.ID, err)
	}

	monitoring.RecordLoanReturned("undo_return")
	logCtx.InfoContext(ctx, "Successfully reverted loan return, publishing event")
	s.publishLoanReturned(ctx, saved)
	return saved, nil
}

func (s *loanService) Find(ctx context.Context, filter Filter, page pagination.PageRequest) (pagination.Page[Loan], error) {
	s.logger.InfoContext(ctx, "Finding loans by filter",
		slog.String("isbn", filter.Isbn),
		slog.String("customer", filter.Customer),
		slog.Int("page", page.Page),
		slog.Int("size", page.Size),
	)

	result, err := s.repo.FindByIsbnOrCustomer(ctx, filter, page)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error finding loans by filter", slog.Any("error", err))
		return pagination.Page[Loan]{}, fmt.Errorf("failed to find loans: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully found loans", slog.Int("count", len(result.Items)), slog.Int64("total", result.TotalItems))
	return result, nil
}

func (s *loanService) FindByBook(ctx context.Context, bookID int64, page pagination.PageRequest) (pagination.Page[Loan], error) {
	logCtx := s.logger.With(slog.Int64("bookID", bookID))
	logCtx.InfoContext(ctx, "Finding loans by book")

	result, err := s.repo.FindByBook(ctx, bookID, page)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error finding loans by book", slog.Any("error", err))
		return pagination.Page[Loan]{}, fmt.Errorf("failed to find loans for book %d: %w", bookID, err)
	}

	return result, nil
}

// FindOverdue is a read-only query; it never mutates loan state. A loan
// whose grace deadline falls exactly on asOf is not yet late.
func (s *loanService) FindOverdue(ctx context.Context, asOf time.Time, graceDays int) ([]Loan, error) {
	logCtx := s.logger.With(slog.Time("asOf", asOf), slog.Int("graceDays", graceDays))
	logCtx.InfoContext(ctx, "Finding overdue loans")

	loans, err := s.repo.FindOverdue(ctx, asOf, graceDays)
	if err != nil {
		logCtx.ErrorContext(ctx, "Repository error finding overdue loans", slog.Any("error", err))
		return nil, fmt.Errorf("failed to find overdue loans: %w", err)
	}

	logCtx.InfoContext(ctx, "Successfully found overdue loans", slog.Int("count", len(loans)))
	return loans, nil
}

func newLoanEventPayload(l *Loan) event.LoanEventPayload {
	if l == nil {
		return event.LoanEventPayload{}
	}
	payload := event.LoanEventPayload{
		LoanID:        l.ID,
		BookID:        l.BookID,
		Customer:      l.Customer,
		CustomerEmail: l.CustomerEmail,
		LoanDate:      l.LoanDate,
		Returned:      l.Returned,
	}
	if l.Book != nil {
		payload.BookIsbn = l.Book.Isbn
	}
	return payload
}

func (s *loanService) publishLoanCreated(ctx context.Context, l *Loan) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishLoanCreated(ctx, event.NewLoanCreatedEvent(newLoanEventPayload(l))); err != nil {
		s.logger.ErrorContext(ctx, "Loan created, but FAILED to publish creation event", slog.Any("error", err))
	}
}

func (s *loanService) publishLoanReturned(ctx context.Context, l *Loan) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishLoanReturned(ctx, event.NewLoanReturnedEvent(newLoanEventPayload(l))); err != nil {
		s.logger.ErrorContext(ctx, "Loan updated, but FAILED to publish return event", slog.Any("error", err))
	}
}
