package pagination

const (
	DefaultPage = 0
	DefaultSize = 20
	MaxSize     = 100
)

// PageRequest carries zero-based page index and page size. Values are
// passed through unchanged to the result envelope.
type PageRequest struct {
	Page int
	Size int
}

func NewPageRequest(page, size int) PageRequest {
	if page < 0 {
		page = DefaultPage
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return PageRequest{Page: page, Size: size}
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

func (p PageRequest) Limit() int {
	return p.Size
}

// Page is one page of results plus the total row count for the query.
type Page[T any] struct {
	Items      []T
	TotalItems int64
	Page       int
	Size       int
}

func NewPage[T any](items []T, total int64, req PageRequest) Page[T] {
	return Page[T]{
		Items:      items,
		TotalItems: total,
		Page:       req.Page,
		Size:       req.Size,
	}
}
