package loan

import (
	"time"

	"library-api/internal/domain/book"
)

type Loan struct {
	ID            int64
	Customer      string
	CustomerEmail string
	BookID        int64
	Book          *book.Book
	LoanDate      time.Time
	Returned      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewLoan(b *book.Book, customer, customerEmail string) *Loan {
	now := time.Now()
	return &Loan{
		Customer:      customer,
		CustomerEmail: customerEmail,
		BookID:        b.ID,
		Book:          b,
		LoanDate:      DateOf(now),
		Returned:      false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DateOf strips the time of day, keeping t's calendar date as a
// midnight UTC value. LoanDate and the overdue asOf both live at this
// granularity; truncating on absolute 24h periods would shift the day
// in non-UTC locales.
func DateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Return marks the loan as returned. The transition carries no
// precondition on the current state and may be re-applied.
func (l *Loan) Return() {
	l.Returned = true
	l.UpdatedAt = time.Now()
}

// UndoReturn reverts a return, making the loan active again.
func (l *Loan) UndoReturn() {
	l.Returned = false
	l.UpdatedAt = time.Now()
}

// Deadline is the last day the loan may stay active without being late.
func (l *Loan) Deadline(graceDays int) time.Time {
	return l.LoanDate.AddDate(0, 0, graceDays)
}

// IsOverdue reports whether the loan is active and its grace deadline
// lies strictly before asOf.
func (l *Loan) IsOverdue(asOf time.Time, graceDays int) bool {
	return !l.Returned && l.Deadline(graceDays).Before(asOf)
}

// Filter selects loans whose book isbn equals Isbn or whose customer
// equals Customer. Empty fields impose no constraint.
type Filter struct {
	Isbn     string
	Customer string
}
