package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"library-api/internal/api/handler/dto"
	"library-api/internal/domain/book"
	"library-api/internal/domain/loan"
	"library-api/internal/pkg/apperrors"
	"library-api/internal/pkg/pagination"

	"github.com/go-chi/chi/v5"
)

type BookHandler struct {
	service     book.BookService
	loanService loan.LoanService
	logger      *slog.Logger
}

func NewBookHandler(s book.BookService, loanSvc loan.LoanService, l *slog.Logger) *BookHandler {
	if s == nil || loanSvc == nil {
		panic("book handler services cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &BookHandler{
		service:     s,
		loanService: loanSvc,
		logger:      l.With("component", "BookHandler"),
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"errors":["Internal server error"]}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "An unexpected error occurred."
	var validationError *apperrors.ValidationError

	switch {
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrAlreadyExists):
		status, message = http.StatusConflict, trimSentinel(err)
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, trimSentinel(err)
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, trimSentinel(err)
	case errors.As(err, &validationError):
		status, message = http.StatusBadRequest, validationError.Message
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized."
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	respondJSON(w, status, dto.NewErrorResponse(message))
}

// trimSentinel strips the wrapped sentinel prefix so clients see only
// the domain message, e.g. "conflict: Isbn already registered" becomes
// "Isbn already registered".
func trimSentinel(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		apperrors.ErrConflict, apperrors.ErrAlreadyExists, apperrors.ErrNotFound,
		apperrors.ErrInvalidArgument, apperrors.ErrValidation,
	} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) && len(msg) > len(prefix) {
			return msg[len(prefix):]
		}
	}
	return msg
}

func getBookIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "bookID")
	if idStr == "" {
		return 0, fmt.Errorf("%w: bookID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid bookID format in URL path: %s", apperrors.ErrInvalidArgument, idStr)
	}
	return id, nil
}

func getPageRequest(r *http.Request) pagination.PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return pagination.NewPageRequest(page, size)
}

// CreateBook handles POST /api/books
// @Summary Register a new book
// @Description Registers a new book in the catalog. The ISBN must not already be registered.
// @Tags Books
// @Accept json
// @Produce json
// @Param request body dto.CreateBookRequest true "Book registration request"
// @Success 201 {object} dto.BookResponse "Book successfully registered"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 409 {object} dto.ErrorResponse "ISBN already registered"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/books [post]
// @Security BearerAuth
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create book request")

	var req dto.CreateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if msgs := dto.Validate(req); msgs != nil {
		h.logger.WarnContext(r.Context(), "Validation failed", slog.Any("errors", msgs))
		respondJSON(w, http.StatusBadRequest, dto.NewErrorResponse(msgs...))
		return
	}

	created, err := h.service.Create(r.Context(), book.NewBook(req.Title, req.Author, req.Isbn))
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrConflict) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to create book", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewBookResponse(created)
	h.logger.InfoContext(r.Context(), "Book created successfully", slog.Int64("bookID", resp.ID))
	respondJSON(w, http.StatusCreated, resp)
}

// GetBook handles GET /api/books/{bookID}
// @Summary Retrieve book details
// @Tags Books
// @Produce json
// @Param bookID path int true "Book ID" Minimum(1)
// @Success 200 {object} dto.BookResponse "Book details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid book ID format"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/books/{bookID} [get]
// @Security BearerAuth
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := getBookIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get book ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	b, err := h.service.GetByID(r.Context(), bookID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to get book", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if b == nil {
		h.logger.WarnContext(r.Context(), "Book not found", slog.Int64("bookID", bookID))
		respondJSON(w, http.StatusNotFound, dto.NewErrorResponse("Book not found"))
		return
	}

	respondJSON(w, http.StatusOK, dto.NewBookResponse(b))
}

// UpdateBook handles PUT /api/books/{bookID}
// @Summary Update book details
// @Description Updates the title and author of a registered book. The ISBN is immutable.
// @Tags Books
// @Accept json
// @Produce json
// @Param bookID path int true "Book ID" Minimum(1)
// @Param request body dto.UpdateBookRequest true "Book update request"
// @Success 200 {object} dto.BookResponse "Book successfully updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or book ID"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/books/{bookID} [put]
// @Security BearerAuth
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := getBookIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get book ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	var req dto.UpdateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if msgs := dto.Validate(req); msgs != nil {
		h.logger.WarnContext(r.Context(), "Validation failed", slog.Any("errors", msgs))
		respondJSON(w, http.StatusBadRequest, dto.NewErrorResponse(msgs...))
		return
	}

	updated, err := h.service.Update(r.Context(), bookID, req.Title, req.Author)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to update book", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Book updated successfully", slog.Int64("bookID", bookID))
	respondJSON(w, http.StatusOK, dto.NewBookResponse(updated))
}

// DeleteBook handles DELETE /api/books/{bookID}
// @Summary Delete a book
// @Tags Books
// @Produce json
// @Param bookID path int true "Book ID" Minimum(1)
// @Success 204 "Book successfully deleted"
// @Failure 400 {object} dto.ErrorResponse "Invalid book ID format"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/books/{bookID} [delete]
// @Security BearerAuth
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := getBookIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get book ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	if err := h.service.DeleteByID(r.Context(), bookID); err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to delete book", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Book deleted successfully", slog.Int64("bookID", bookID))
	respondJSON(w, http.StatusNoContent, nil)
}

// ListBooks handles GET /api/books
// @Summary List books
// @Description Lists books matching an example filter. Set fields match case-insensitively on prefix; unset fields impose no constraint.
// @Tags Books
// @Produce json
// @Param title query string false "Title prefix filter"
// @Param author query string false "Author prefix filter"
// @Param isbn query string false "ISBN prefix filter"
// @Param page query int false "Zero-based page index" default(0)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.BookPageResponse "Page of books"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/books [get]
// @Security BearerAuth
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	example := &book.Book{
		Title:  r.URL.Query().Get("title"),
		Author: r.URL.Query().Get("author"),
		Isbn:   r.URL.Query().Get("isbn"),
	}

	result, err := h.service.Find(r.Context(), example, getPageRequest(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list books", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewBookPageResponse(result))
}

// GetBookLoans handles GET /api/books/{bookID}/loans
// @Summary List loans of a book
// @Tags Books
// @Produce json
// @Param bookID path int true "Book ID" Minimum(1)
// @Param page query int false "Zero-based page index" default(0)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.LoanPageResponse "Page of the book's loans"
// @Failure 400 {object} dto.ErrorResponse "Invalid book ID format"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/books/{bookID}/loans [get]
// @Security BearerAuth
func (h *BookHandler) GetBookLoans(w http.ResponseWriter, r *http.Request) {
	bookID, err := getBookIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get book ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	b, err := h.service.GetByID(r.Context(), bookID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to get book", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if b == nil {
		h.logger.WarnContext(r.Context(), "Book not found", slog.Int64("bookID", bookID))
		respondJSON(w, http.StatusNotFound, dto.NewErrorResponse("Book not found"))
		return
	}

	result, err := h.loanService.FindByBook(r.Context(), bookID, getPageRequest(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list book loans", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanPageResponse(result))
}
