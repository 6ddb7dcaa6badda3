package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"library-api/internal/batch"
	"library-api/internal/config"
	"library-api/internal/domain/book"
	"library-api/internal/domain/loan"
	"library-api/internal/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) Create(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, l)
	if created, ok := args.Get(0).(*loan.Loan); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ReturnBook(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, l)
	if saved, ok := args.Get(0).(*loan.Loan); ok {
		return saved, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) UndoReturn(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, l)
	if saved, ok := args.Get(0).(*loan.Loan); ok {
		return saved, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) Find(ctx context.Context, filter loan.Filter, page pagination.PageRequest) (pagination.Page[loan.Loan], error) {
	args := m.Called(ctx, filter, page)
	if result, ok := args.Get(0).(pagination.Page[loan.Loan]); ok {
		return result, args.Error(1)
	}
	return pagination.Page[loan.Loan]{}, args.Error(1)
}

func (m *MockLoanService) FindByBook(ctx context.Context, bookID int64, page pagination.PageRequest) (pagination.Page[loan.Loan], error) {
	args := m.Called(ctx, bookID, page)
	if result, ok := args.Get(0).(pagination.Page[loan.Loan]); ok {
		return result, args.Error(1)
	}
	return pagination.Page[loan.Loan]{}, args.Error(1)
}

func (m *MockLoanService) FindOverdue(ctx context.Context, asOf time.Time, graceDays int) ([]loan.Loan, error) {
	args := m.Called(ctx, asOf, graceDays)
	if loans, ok := args.Get(0).([]loan.Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingSender struct {
	subject    string
	body       string
	recipients []string
	calls      int
	err        error
}

func (s *recordingSender) Send(ctx context.Context, subject, body string, recipients []string) error {
	s.calls++
	s.subject = subject
	s.body = body
	s.recipients = recipients
	return s.err
}

func overdueLoan(id int64, customer, email, title string, loanDate time.Time) loan.Loan {
	return loan.Loan{
		ID:            id,
		Customer:      customer,
		CustomerEmail: email,
		BookID:        id,
		Book:          &book.Book{ID: id, Title: title, Isbn: "isbn"},
		LoanDate:      loanDate,
	}
}

func newJob(svc loan.LoanService, sender *recordingSender) *batch.OverdueNotificationJob {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailCfg := config.MailConfig{Subject: "Return the Book!"}
	batchCfg := config.BatchConfig{GraceDays: 4, DailyFine: "0.50"}
	return batch.NewOverdueNotificationJob(svc, sender, mailCfg, batchCfg, logger)
}

func TestRunSendsSingleMailForOverdueLoans(t *testing.T) {
	mockSvc := new(MockLoanService)
	sender := &recordingSender{}
	job := newJob(mockSvc, sender)

	loanDate := loan.DateOf(time.Now()).AddDate(0, 0, -10)
	loans := []loan.Loan{
		overdueLoan(1, "Fulano", "fulano@example.com", "Clean Code", loanDate),
		overdueLoan(2, "Ciclano", "ciclano@example.com", "Refactoring", loanDate),
	}
	mockSvc.On("FindOverdue", mock.Anything, mock.Anything, 4).Return(loans, nil)

	err := job.Run(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "Return the Book!", sender.subject)
	assert.ElementsMatch(t, []string{"fulano@example.com", "ciclano@example.com"}, sender.recipients)
	assert.Contains(t, sender.body, "Clean Code")
	assert.Contains(t, sender.body, "Refactoring")
	assert.Contains(t, sender.body, "fine 3.00")
	mockSvc.AssertExpectations(t)
}

func TestRunDeduplicatesRecipients(t *testing.T) {
	mockSvc := new(MockLoanService)
	sender := &recordingSender{}
	job := newJob(mockSvc, sender)

	loanDate := loan.DateOf(time.Now()).AddDate(0, 0, -6)
	loans := []loan.Loan{
		overdueLoan(1, "Fulano", "fulano@example.com", "Clean Code", loanDate),
		overdueLoan(2, "Fulano", "fulano@example.com", "Refactoring", loanDate),
	}
	mockSvc.On("FindOverdue", mock.Anything, mock.Anything, 4).Return(loans, nil)

	err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"fulano@example.com"}, sender.recipients)
}

func TestRunSkipsSendWhenNothingOverdue(t *testing.T) {
	mockSvc := new(MockLoanService)
	sender := &recordingSender{}
	job := newJob(mockSvc, sender)

	mockSvc.On("FindOverdue", mock.Anything, mock.Anything, 4).Return([]loan.Loan{}, nil)

	err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, sender.calls)
}

// filteringLoanService answers FindOverdue by applying the entity's own
// overdue rule to a fixed set of loans, so Run's asOf reaches the real
// date comparison instead of a canned result.
type filteringLoanService struct {
	MockLoanService
	loans []loan.Loan
}

func (s *filteringLoanService) FindOverdue(ctx context.Context, asOf time.Time, graceDays int) ([]loan.Loan, error) {
	var overdue []loan.Loan
	for _, l := range s.loans {
		if l.IsOverdue(asOf, graceDays) {
			overdue = append(overdue, l)
		}
	}
	return overdue, nil
}

func TestRunTreatsDeadlineOnRunDayAsNotLate(t *testing.T) {
	today := loan.DateOf(time.Now())
	svc := &filteringLoanService{loans: []loan.Loan{
		// Deadline lands exactly on today: not yet late.
		overdueLoan(1, "Fulano", "fulano@example.com", "Clean Code", today.AddDate(0, 0, -4)),
		// Deadline was yesterday: one day late.
		overdueLoan(2, "Ciclano", "ciclano@example.com", "Refactoring", today.AddDate(0, 0, -5)),
	}}
	sender := &recordingSender{}
	job := newJob(svc, sender)

	err := job.Run(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, []string{"ciclano@example.com"}, sender.recipients)
	assert.Contains(t, sender.body, "Refactoring")
	assert.Contains(t, sender.body, "1 day(s) late, fine 0.50")
	assert.NotContains(t, sender.body, "Clean Code")
}

func TestRunSkipsSendWhenDeadlinesAllFallOnRunDay(t *testing.T) {
	today := loan.DateOf(time.Now())
	svc := &filteringLoanService{loans: []loan.Loan{
		overdueLoan(1, "Fulano", "fulano@example.com", "Clean Code", today.AddDate(0, 0, -4)),
	}}
	sender := &recordingSender{}
	job := newJob(svc, sender)

	err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, sender.calls)
}

func TestRunReturnsErrorWhenLookupFails(t *testing.T) {
	mockSvc := new(MockLoanService)
	sender := &recordingSender{}
	job := newJob(mockSvc, sender)

	mockSvc.On("FindOverdue", mock.Anything, mock.Anything, 4).Return(nil, errors.New("db down"))

	err := job.Run(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sender.calls)
}

func TestRunReturnsErrorWhenSendFails(t *testing.T) {
	mockSvc := new(MockLoanService)
	sender := &recordingSender{err: errors.New("ses throttled")}
	job := newJob(mockSvc, sender)

	loans := []loan.Loan{overdueLoan(1, "Fulano", "fulano@example.com", "Clean Code", loan.DateOf(time.Now()).AddDate(0, 0, -10))}
	mockSvc.On("FindOverdue", mock.Anything, mock.Anything, 4).Return(loans, nil)

	err := job.Run(context.Background())
	assert.Error(t, err)
}
