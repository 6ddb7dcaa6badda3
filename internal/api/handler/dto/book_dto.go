package dto

import (
	"errors"
	"fmt"
	"time"

	"library-api/internal/domain/book"
	"library-api/internal/pkg/pagination"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct tags and flattens failures into the
// human-readable message list carried by ErrorResponse.
func Validate(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, validationMessage(fe))
	}
	return messages
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// ErrorResponse carries failures as a flat list of messages.
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

func NewErrorResponse(messages ...string) ErrorResponse {
	return ErrorResponse{Errors: messages}
}

type CreateBookRequest struct {
	Title  string `json:"title" validate:"required,max=255"`
	Author string `json:"author" validate:"required,max=255"`
	Isbn   string `json:"isbn" validate:"required,max=32"`
}

type UpdateBookRequest struct {
	Title  string `json:"title" validate:"required,max=255"`
	Author string `json:"author" validate:"required,max=255"`
}

type BookResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Isbn      string    `json:"isbn"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewBookResponse(b *book.Book) BookResponse {
	if b == nil {
		return BookResponse{}
	}
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Isbn:      b.Isbn,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type BookPageResponse struct {
	Content    []BookResponse `json:"content"`
	TotalItems int64          `json:"totalItems"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
}

func NewBookPageResponse(page pagination.Page[book.Book]) BookPageResponse {
	content := make([]BookResponse, len(page.Items))
	for i := range page.Items {
		content[i] = NewBookResponse(&page.Items[i])
	}
	return BookPageResponse{
		Content:    content,
		TotalItems: page.TotalItems,
		Page:       page.Page,
		Size:       page.Size,
	}
}
