package book

import "time"

type Book struct {
	ID        int64
	Title     string
	Author    string
	Isbn      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewBook(title, author, isbn string) *Book {
	now := time.Now()
	return &Book{
		Title:     title,
		Author:    author,
		Isbn:      isbn,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateDetails mutates the two editable fields. Isbn is immutable
// after creation and has no update path.
func (b *Book) UpdateDetails(title, author string) {
	b.Title = title
	b.Author = author
	b.UpdatedAt = time.Now()
}
