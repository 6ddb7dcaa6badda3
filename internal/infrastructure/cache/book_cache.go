package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"library-api/internal/domain/book"
	"library-api/internal/pkg/pagination"

	"github.com/redis/go-redis/v9"
)

const (
	bookIDKeyFormat   = "book:id:%d"
	bookIsbnKeyFormat = "book:isbn:%s"
)

// CachingBookRepository is a read-through cache in front of a
// book.Repository. FindByID and FindByIsbn are served from redis when
// possible, writes and deletes invalidate the cached entries. Cache
// failures degrade to the underlying repository, never to an error.
type CachingBookRepository struct {
	next   book.Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ book.Repository = (*CachingBookRepository)(nil)

func NewCachingBookRepository(next book.Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachingBookRepository {
	if next == nil {
		panic("next repository cannot be nil for CachingBookRepository")
	}
	if client == nil {
		panic("redis client cannot be nil for CachingBookRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachingBookRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "CachingBookRepository"),
	}
}

func (r *CachingBookRepository) Save(ctx context.Context, b *book.Book) (*book.Book, error) {
	saved, err := r.next.Save(ctx, b)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, saved)
	return saved, nil
}

func (r *CachingBookRepository) FindByID(ctx context.Context, bookID int64) (*book.Book, error) {
	key := fmt.Sprintf(bookIDKeyFormat, bookID)
	if b, ok := r.get(ctx, key); ok {
		return b, nil
	}

	b, err := r.next.FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	r.put(ctx, key, b)
	return b, nil
}

func (r *CachingBookRepository) FindByIsbn(ctx context.Context, isbn string) (*book.Book, error) {
	key := fmt.Sprintf(bookIsbnKeyFormat, isbn)
	if b, ok := r.get(ctx, key); ok {
		return b, nil
	}

	b, err := r.next.FindByIsbn(ctx, isbn)
	if err != nil {
		return nil, err
	}
	r.put(ctx, key, b)
	return b, nil
}

func (r *CachingBookRepository) ExistsByID(ctx context.Context, bookID int64) (bool, error) {
	return r.next.ExistsByID(ctx, bookID)
}

func (r *CachingBookRepository) ExistsByIsbn(ctx context.Context, isbn string) (bool, error) {
	return r.next.ExistsByIsbn(ctx, isbn)
}

func (r *CachingBookRepository) DeleteByID(ctx context.Context, bookID int64) error {
	// Fetch before delete so the isbn key can be invalidated too.
	cached, _ := r.get(ctx, fmt.Sprintf(bookIDKeyFormat, bookID))

	if err := r.next.DeleteByID(ctx, bookID); err != nil {
		return err
	}

	if cached != nil {
		r.invalidate(ctx, cached)
	} else {
		r.del(ctx, fmt.Sprintf(bookIDKeyFormat, bookID))
	}
	return nil
}

func (r *CachingBookRepository) FindByExample(ctx context.Context, example *book.Book, page pagination.PageRequest) (pagination.Page[book.Book], error) {
	return r.next.FindByExample(ctx, example, page)
}

func (r *CachingBookRepository) get(ctx context.Context, key string) (*book.Book, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var b book.Book
	if err := json.Unmarshal(data, &b); err != nil {
		r.logger.WarnContext(ctx, "Cache entry corrupt, dropping", "key", key, "error", err)
		r.del(ctx, key)
		return nil, false
	}
	return &b, true
}

func (r *CachingBookRepository) put(ctx context.Context, key string, b *book.Book) {
	data, err := json.Marshal(b)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to marshal book for cache", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}
}

func (r *CachingBookRepository) invalidate(ctx context.Context, b *book.Book) {
	r.del(ctx, fmt.Sprintf(bookIDKeyFormat, b.ID), fmt.Sprintf(bookIsbnKeyFormat, b.Isbn))
}

func (r *CachingBookRepository) del(ctx context.Context, keys ...string) {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.WarnContext(ctx, "Cache invalidation failed", "keys", keys, "error", err)
	}
}
