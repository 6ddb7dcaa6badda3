package dto

import (
	"time"

	"library-api/internal/domain/loan"
	"library-api/internal/pkg/pagination"
)

type CreateLoanRequest struct {
	Isbn          string `json:"isbn" validate:"required,max=32"`
	Customer      string `json:"customer" validate:"required,max=255"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
}

// UpdateLoanRequest carries the desired returned state; false reverts a
// previous return.
type UpdateLoanRequest struct {
	Returned *bool `json:"returned" validate:"required"`
}

type LoanResponse struct {
	ID            int64         `json:"id"`
	Customer      string        `json:"customer"`
	CustomerEmail string        `json:"customerEmail"`
	Book          *BookResponse `json:"book,omitempty"`
	LoanDate      string        `json:"loanDate"`
	Returned      bool          `json:"returned"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	if l == nil {
		return LoanResponse{}
	}
	resp := LoanResponse{
		ID:            l.ID,
		Customer:      l.Customer,
		CustomerEmail: l.CustomerEmail,
		LoanDate:      l.LoanDate.Format("2006-01-02"),
		Returned:      l.Returned,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
	if l.Book != nil {
		b := NewBookResponse(l.Book)
		resp.Book = &b
	}
	return resp
}

type LoanPageResponse struct {
	Content    []LoanResponse `json:"content"`
	TotalItems int64          `json:"totalItems"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
}

func NewLoanPageResponse(page pagination.Page[loan.Loan]) LoanPageResponse {
	content := make([]LoanResponse, len(page.Items))
	for i := range page.Items {
		content[i] = NewLoanResponse(&page.Items[i])
	}
	return LoanPageResponse{
		Content:    content,
		TotalItems: page.TotalItems,
		Page:       page.Page,
		Size:       page.Size,
	}
}

type TokenRequest struct {
	Username string `json:"username" validate:"required"`
}
