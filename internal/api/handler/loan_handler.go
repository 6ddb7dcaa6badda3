package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"library-api/internal/api/handler/dto"
	"library-api/internal/domain/book"
	"library-api/internal/domain/loan"
	"library-api/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

type LoanHandler struct {
	service     loan.LoanService
	bookService book.BookService
	logger      *slog.Logger
}

func NewLoanHandler(s loan.LoanService, bookSvc book.BookService, l *slog.Logger) *LoanHandler {
	if s == nil || bookSvc == nil {
		panic("loan handler services cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &LoanHandler{
		service:     s,
		bookService: bookSvc,
		logger:      l.With("component", "LoanHandler"),
	}
}

func getLoanIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "loanID")
	if idStr == "" {
		return 0, fmt.Errorf("%w: loanID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid loanID format in URL path: %s", apperrors.ErrInvalidArgument, idStr)
	}
	return id, nil
}

// CreateLoan handles POST /api/loans
// @Summary Check out a book
// @Description Creates a loan for the book with the given ISBN. Fails when the ISBN is unknown or the book already has an active loan.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan creation request"
// @Success 201 {object} dto.LoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or unknown ISBN"
// @Failure 409 {object} dto.ErrorResponse "Book already loaned"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create loan request")

	var req dto.CreateLoanRequest
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

	// An unknown isbn is a request defect here, not a missing resource.
	b, err := h.bookService.GetByIsbn(r.Context(), req.Isbn)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "Loan requested for unknown isbn", slog.String("isbn", req.Isbn))
			respondJSON(w, http.StatusBadRequest, dto.NewErrorResponse("Book not found"))
			return
		}
		h.logger.ErrorContext(r.Context(), "Service failed to resolve book by isbn", slog.Any("error", err))
		respondError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), loan.NewLoan(b, req.Customer, req.CustomerEmail))
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrConflict) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to create loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewLoanResponse(created)
	h.logger.InfoContext(r.Context(), "Loan created successfully", slog.Int64("loanID", resp.ID))
	respondJSON(w, http.StatusCreated, resp)
}

// UpdateLoan handles PATCH /api/loans/{loanID}
// @Summary Update loan returned state
// @Description Marks the loan as returned, or reverts a previous return when `returned` is false.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Param request body dto.UpdateLoanRequest true "Desired returned state"
// @Success 200 {object} dto.LoanResponse "Loan successfully updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID or request payload"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/loans/{loanID} [patch]
// @Security BearerAuth
func (h *LoanHandler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get loan ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	var req dto.UpdateLoanRequest
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

	l, err := h.service.GetByID(r.Context(), loanID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	var saved *loan.Loan
	if *req.Returned {
		saved, err = h.service.ReturnBook(r.Context(), l)
	} else {
		saved, err = h.service.UndoReturn(r.Context(), l)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to update loan returned state", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan updated successfully", slog.Int64("loanID", loanID), slog.Bool("returned", saved.Returned))
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(saved))
}

// GetLoan handles GET /api/loans/{loanID}
// @Summary Retrieve loan details
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Success 200 {object} dto.LoanResponse "Loan details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID format"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get loan ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	l, err := h.service.GetByID(r.Context(), loanID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

// ListLoans handles GET /api/loans
// @Summary List loans
// @Description Lists loans matching the disjunctive isbn/customer filter. Empty parameters impose no constraint; with both empty every loan matches.
// @Tags Loans
// @Produce json
// @Param isbn query string false "Book ISBN filter (exact match)"
// @Param customer query string false "Customer filter (exact match)"
// @Param page query int false "Zero-based page index" default(0)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.LoanPageResponse "Page of loans"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/loans [get]
// @Security BearerAuth
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter := loan.Filter{
		Isbn:     r.URL.Query().Get("isbn"),
		Customer: r.URL.Query().Get("customer"),
	}

	result, err := h.service.Find(r.Context(), filter, getPageRequest(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list loans", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanPageResponse(result))
}
