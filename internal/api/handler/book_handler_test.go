package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
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

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBookService struct {
	mock.Mock
}

func (m *MockBookService) Create(ctx context.Context, b *book.Book) (*book.Book, error) {
	args := m.Called(ctx, b)
	if created, ok := args.Get(0).(*book.Book); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookService) GetByID(ctx context.Context, bookID int64) (*book.Book, error) {
	args := m.Called(ctx, bookID)
	if b, ok := args.Get(0).(*book.Book); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookService) Update(ctx context.Context, bookID int64, title, author string) (*book.Book, error) {
	args := m.Called(ctx, bookID, title, author)
	if b, ok := args.Get(0).(*book.Book); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookService) DeleteByID(ctx context.Context, bookID int64) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

func (m *MockBookService) Find(ctx context.Context, example *book.Book, page pagination.PageRequest) (pagination.Page[book.Book], error) {
	args := m.Called(ctx, example, page)
	if result, ok := args.Get(0).(pagination.Page[book.Book]); ok {
		return result, args.Error(1)
	}
	return pagination.Page[book.Book]{}, args.Error(1)
}

func (m *MockBookService) GetByIsbn(ctx context.Context, isbn string) (*book.Book, error) {
	args := m.Called(ctx, isbn)
	if b, ok := args.Get(0).(*book.Book); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newBookHandler(bookSvc *MockBookService, loanSvc *MockLoanService) *handler.BookHandler {
	return handler.NewBookHandler(bookSvc, loanSvc, testLogger())
}

func TestCreateBook(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		reqBody := dto.CreateBookRequest{Title: "Clean Code", Author: "Robert C. Martin", Isbn: "9780132350884"}
		reqBodyBytes, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(reqBodyBytes))
		rec := httptest.NewRecorder()

		created := &book.Book{ID: 1, Title: reqBody.Title, Author: reqBody.Author, Isbn: reqBody.Isbn}
		mockBooks.On("Create", mock.Anything, mock.AnythingOfType("*book.Book")).Return(created, nil)

		h.CreateBook(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.BookResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ID)
		mockBooks.AssertExpectations(t)
	})

	t.Run("validation failure lists messages", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		req := httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader([]byte(`{"title":"Clean Code"}`)))
		rec := httptest.NewRecorder()

		h.CreateBook(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Author is required", "Isbn is required"}, resp.Errors)
		mockBooks.AssertNotCalled(t, "Create")
	})

	t.Run("duplicate isbn maps to conflict", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		reqBody := dto.CreateBookRequest{Title: "Clean Code", Author: "Robert C. Martin", Isbn: "9780132350884"}
		reqBodyBytes, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(reqBodyBytes))
		rec := httptest.NewRecorder()

		mockBooks.On("Create", mock.Anything, mock.AnythingOfType("*book.Book")).
			Return(nil, fmt.Errorf("%w: Isbn already registered", apperrors.ErrConflict))

		h.CreateBook(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Isbn already registered"}, resp.Errors)
	})
}

func TestGetBook(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		b := &book.Book{ID: 1, Title: "Clean Code", Isbn: "9780132350884"}
		mockBooks.On("GetByID", mock.Anything, int64(1)).Return(b, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/books/1", nil), "bookID", "1")
		rec := httptest.NewRecorder()

		h.GetBook(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.BookResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "9780132350884", resp.Isbn)
	})

	t.Run("absent book is 404", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		mockBooks.On("GetByID", mock.Anything, int64(2)).Return(nil, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/books/2", nil), "bookID", "2")
		rec := httptest.NewRecorder()

		h.GetBook(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Book not found"}, resp.Errors)
	})

	t.Run("invalid id is 400", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/books/abc", nil), "bookID", "abc")
		rec := httptest.NewRecorder()

		h.GetBook(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockBooks.AssertNotCalled(t, "GetByID")
	})
}

func TestUpdateBook(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		updated := &book.Book{ID: 1, Title: "New Title", Author: "New Author", Isbn: "9780132350884"}
		mockBooks.On("Update", mock.Anything, int64(1), "New Title", "New Author").Return(updated, nil)

		body := []byte(`{"title":"New Title","author":"New Author"}`)
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/books/1", bytes.NewReader(body)), "bookID", "1")
		rec := httptest.NewRecorder()

		h.UpdateBook(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.BookResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "New Title", resp.Title)
	})

	t.Run("missing book is 404", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		mockBooks.On("Update", mock.Anything, int64(9), "T", "A").
			Return(nil, fmt.Errorf("%w: Book not found", apperrors.ErrNotFound))

		body := []byte(`{"title":"T","author":"A"}`)
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/books/9", bytes.NewReader(body)), "bookID", "9")
		rec := httptest.NewRecorder()

		h.UpdateBook(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteBook(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		mockBooks.On("DeleteByID", mock.Anything, int64(1)).Return(nil)

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/books/1", nil), "bookID", "1")
		rec := httptest.NewRecorder()

		h.DeleteBook(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing book is 404", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		mockBooks.On("DeleteByID", mock.Anything, int64(9)).Return(fmt.Errorf("%w: Book not found", apperrors.ErrNotFound))

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/books/9", nil), "bookID", "9")
		rec := httptest.NewRecorder()

		h.DeleteBook(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListBooks(t *testing.T) {
	mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
	h := newBookHandler(mockBooks, mockLoans)

	example := &book.Book{Title: "Clean"}
	page := pagination.NewPage([]book.Book{{ID: 1, Title: "Clean Code"}}, 1, pagination.NewPageRequest(0, 20))
	mockBooks.On("Find", mock.Anything, example, pagination.NewPageRequest(0, 20)).Return(page, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/books?title=Clean", nil)
	rec := httptest.NewRecorder()

	h.ListBooks(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp dto.BookPageResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Content, 1)
	assert.Equal(t, int64(1), resp.TotalItems)
	mockBooks.AssertExpectations(t)
}

func TestGetBookLoans(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		b := &book.Book{ID: 1, Title: "Clean Code", Isbn: "9780132350884"}
		mockBooks.On("GetByID", mock.Anything, int64(1)).Return(b, nil)

		page := pagination.NewPage([]loan.Loan{{ID: 7, BookID: 1, Customer: "Fulano", Book: b}}, 1, pagination.NewPageRequest(0, 20))
		mockLoans.On("FindByBook", mock.Anything, int64(1), pagination.NewPageRequest(0, 20)).Return(page, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/books/1/loans", nil), "bookID", "1")
		rec := httptest.NewRecorder()

		h.GetBookLoans(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoanPageResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Content, 1)
		assert.Equal(t, "Fulano", resp.Content[0].Customer)
	})

	t.Run("absent book is 404", func(t *testing.T) {
		mockBooks, mockLoans := new(MockBookService), new(MockLoanService)
		h := newBookHandler(mockBooks, mockLoans)

		mockBooks.On("GetByID", mock.Anything, int64(2)).Return(nil, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/books/2/loans", nil), "bookID", "2")
		rec := httptest.NewRecorder()

		h.GetBookLoans(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockLoans.AssertNotCalled(t, "FindByBook")
	})
}
