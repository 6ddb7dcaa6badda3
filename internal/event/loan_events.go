package event

import (
	"time"

	"github.com/google/uuid"
)

type LoanEventPayload struct {
	LoanID        int64     `json:"loanId"`
	BookID        int64     `json:"bookId"`
	BookIsbn      string    `json:"bookIsbn"`
	Customer      string    `json:"customer"`
	CustomerEmail string    `json:"customerEmail"`
	LoanDate      time.Time `json:"loanDate"`
	Returned      bool      `json:"returned"`
}

type LoanCreatedEvent struct {
	EventID   uuid.UUID        `json:"eventId"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   LoanEventPayload `json:"payload"`
}

type LoanReturnedEvent struct {
	EventID   uuid.UUID        `json:"eventId"`
	Timestamp time.Time        `json:"timestamp"`
	Returned  bool             `json:"returned"`
	Payload   LoanEventPayload `json:"payload"`
}

func NewLoanCreatedEvent(payload LoanEventPayload) LoanCreatedEvent {
	return LoanCreatedEvent{
		EventID:   uuid.New(),
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

func NewLoanReturnedEvent(payload LoanEventPayload) LoanReturnedEvent {
	return LoanReturnedEvent{
		EventID:   uuid.New(),
		Timestamp: time.Now(),
		Returned:  payload.Returned,
		Payload:   payload,
	}
}
