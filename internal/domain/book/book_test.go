package book

import (
	"testing"
	"time"
)

func TestNewBook(t *testing.T) {
	b := NewBook("The Go Programming Language", "Alan Donovan", "978-0134190440")

	if b.ID != 0 {
		t.Errorf("expected ID to be unset, got %d", b.ID)
	}

	if b.Title != "The Go Programming Language" {
		t.Errorf("expected Title to be 'The Go Programming Language', got %s", b.Title)
	}

	if b.Author != "Alan Donovan" {
		t.Errorf("expected Author to be 'Alan Donovan', got %s", b.Author)
	}

	if b.Isbn != "978-0134190440" {
		t.Errorf("expected Isbn to be '978-0134190440', got %s", b.Isbn)
	}

	if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	if !b.CreatedAt.Equal(b.UpdatedAt) {
		t.Errorf("expected CreatedAt and UpdatedAt to match, got %v and %v", b.CreatedAt, b.UpdatedAt)
	}
}

func TestUpdateDetails(t *testing.T) {
	b := NewBook("Old Title", "Old Author", "978-0134190440")
	createdAt := b.CreatedAt
	time.Sleep(time.Millisecond)

	b.UpdateDetails("New Title", "New Author")

	if b.Title != "New Title" {
		t.Errorf("expected Title to be 'New Title', got %s", b.Title)
	}

	if b.Author != "New Author" {
		t.Errorf("expected Author to be 'New Author', got %s", b.Author)
	}

	if b.Isbn != "978-0134190440" {
		t.Errorf("expected Isbn to be unchanged, got %s", b.Isbn)
	}

	if !b.CreatedAt.Equal(createdAt) {
		t.Errorf("expected CreatedAt to be unchanged, got %v", b.CreatedAt)
	}

	if !b.UpdatedAt.After(createdAt) {
		t.Errorf("expected UpdatedAt to advance past %v, got %v", createdAt, b.UpdatedAt)
	}
}
