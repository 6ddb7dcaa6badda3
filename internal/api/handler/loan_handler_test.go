package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"library-api/internal/api/handler"
	"library-api/internal/api/handler/dto"
	"library-api/internal/domain/book"
	"library-api/internal/domain/loan"
	"library-api/internal/pkg/apperrors"
	"library-api/internal/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newLoanHandler(loanSvc *MockLoanService, bookSvc *MockBookService) *handler.LoanHandler {
	return handler.NewLoanHandler(loanSvc, bookSvc, testLogger())
}

func activeLoanFixture() (*loan.Loan, *book.Book) {
	b := &book.Book{ID: 1, Title: "Clean Code", Author: "Robert C. Martin", Isbn: "9780132350884"}
	return &loan.Loan{
		ID:            7,
		Customer:      "Fulano",
		CustomerEmail: "fulano@example.com",
		BookID:        b.ID,
		Book:          b,
		LoanDate:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}, b
}

func TestCreateLoan(t *testing.T) {
	reqBody := dto.CreateLoanRequest{Isbn: "9780132350884", Customer: "Fulano", CustomerEmail: "fulano@example.com"}

	t.Run("success", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		l, b := activeLoanFixture()
		mockBooks.On("GetByIsbn", mock.Anything, reqBody.Isbn).Return(b, nil)
		mockLoans.On("Create", mock.Anything, mock.AnythingOfType("*loan.Loan")).Return(l, nil)

		reqBodyBytes, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/api/loans", bytes.NewReader(reqBodyBytes))
		rec := httptest.NewRecorder()

		h.CreateLoan(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.LoanResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.ID)
		assert.False(t, resp.Returned)
		mockLoans.AssertExpectations(t)
	})

	t.Run("unknown isbn is 400 with Book not found", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		mockBooks.On("GetByIsbn", mock.Anything, reqBody.Isbn).
			Return(nil, fmt.Errorf("%w: Book not found", apperrors.ErrNotFound))

		reqBodyBytes, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/api/loans", bytes.NewReader(reqBodyBytes))
		rec := httptest.NewRecorder()

		h.CreateLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Book not found"}, resp.Errors)
		mockLoans.AssertNotCalled(t, "Create")
	})

	t.Run("book already loaned is 409", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		_, b := activeLoanFixture()
		mockBooks.On("GetByIsbn", mock.Anything, reqBody.Isbn).Return(b, nil)
		mockLoans.On("Create", mock.Anything, mock.AnythingOfType("*loan.Loan")).
			Return(nil, fmt.Errorf("%w: Book already loaned", apperrors.ErrConflict))

		reqBodyBytes, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/api/loans", bytes.NewReader(reqBodyBytes))
		rec := httptest.NewRecorder()

		h.CreateLoan(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Book already loaned"}, resp.Errors)
	})

	t.Run("invalid payload is 400", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		req := httptest.NewRequest(http.MethodPost, "/api/loans", bytes.NewReader([]byte(`{"isbn":"x"}`)))
		rec := httptest.NewRecorder()

		h.CreateLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockBooks.AssertNotCalled(t, "GetByIsbn")
	})
}

func TestUpdateLoan(t *testing.T) {
	t.Run("returned true marks loan returned", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		l, _ := activeLoanFixture()
		returned := *l
		returned.Returned = true
		mockLoans.On("GetByID", mock.Anything, int64(7)).Return(l, nil)
		mockLoans.On("ReturnBook", mock.Anything, l).Return(&returned, nil)

		body := []byte(`{"returned":true}`)
		req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/loans/7", bytes.NewReader(body)), "loanID", "7")
		rec := httptest.NewRecorder()

		h.UpdateLoan(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoanResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Returned)
		mockLoans.AssertNotCalled(t, "UndoReturn")
	})

	t.Run("returned false reverts a return", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		l, _ := activeLoanFixture()
		l.Returned = true
		reverted := *l
		reverted.Returned = false
		mockLoans.On("GetByID", mock.Anything, int64(7)).Return(l, nil)
		mockLoans.On("UndoReturn", mock.Anything, l).Return(&reverted, nil)

		body := []byte(`{"returned":false}`)
		req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/loans/7", bytes.NewReader(body)), "loanID", "7")
		rec := httptest.NewRecorder()

		h.UpdateLoan(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoanResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Returned)
		mockLoans.AssertNotCalled(t, "ReturnBook")
	})

	t.Run("missing returned field is 400", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/loans/7", bytes.NewReader([]byte(`{}`))), "loanID", "7")
		rec := httptest.NewRecorder()

		h.UpdateLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockLoans.AssertNotCalled(t, "GetByID")
	})

	t.Run("unknown loan is 404", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		mockLoans.On("GetByID", mock.Anything, int64(99)).
			Return(nil, fmt.Errorf("%w: Loan not found", apperrors.ErrNotFound))

		body := []byte(`{"returned":true}`)
		req := withURLParam(httptest.NewRequest(http.MethodPatch, "/api/loans/99", bytes.NewReader(body)), "loanID", "99")
		rec := httptest.NewRecorder()

		h.UpdateLoan(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Loan not found"}, resp.Errors)
	})
}

func TestGetLoan(t *testing.T) {
	mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
	h := newLoanHandler(mockLoans, mockBooks)

	l, _ := activeLoanFixture()
	mockLoans.On("GetByID", mock.Anything, int64(7)).Return(l, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/loans/7", nil), "loanID", "7")
	rec := httptest.NewRecorder()

	h.GetLoan(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp dto.LoanResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-03-10", resp.LoanDate)
	assert.NotNil(t, resp.Book)
}

func TestListLoans(t *testing.T) {
	t.Run("filter fields forwarded", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		l, _ := activeLoanFixture()
		filter := loan.Filter{Isbn: "9780132350884", Customer: "Fulano"}
		page := pagination.NewPage([]loan.Loan{*l}, 1, pagination.NewPageRequest(0, 20))
		mockLoans.On("Find", mock.Anything, filter, pagination.NewPageRequest(0, 20)).Return(page, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/loans?isbn=9780132350884&customer=Fulano", nil)
		rec := httptest.NewRecorder()

		h.ListLoans(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoanPageResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Content, 1)
		mockLoans.AssertExpectations(t)
	})

	t.Run("empty filter lists everything", func(t *testing.T) {
		mockLoans, mockBooks := new(MockLoanService), new(MockBookService)
		h := newLoanHandler(mockLoans, mockBooks)

		l, _ := activeLoanFixture()
		page := pagination.NewPage([]loan.Loan{*l}, 1, pagination.NewPageRequest(0, 20))
		mockLoans.On("Find", mock.Anything, loan.Filter{}, pagination.NewPageRequest(0, 20)).Return(page, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
		rec := httptest.NewRecorder()

		h.ListLoans(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoanPageResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.TotalItems)
	})
}
