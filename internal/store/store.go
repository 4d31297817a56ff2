package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

// ErrDuplicate is returned by Insert when a unique constraint on guid or
// link rejected the article.
var ErrDuplicate = errors.New("article already stored")

// StoreError wraps a failure of the persistence layer.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// ArticleStore persists Articles and serves the read surface.
type ArticleStore interface {
	// FindByIdentity returns the article whose guid equals guid or whose link
	// equals a non-empty link, or nil.
	FindByIdentity(ctx context.Context, guid, link string) (*models.Article, error)
	Insert(ctx context.Context, a models.Article) error
	ListByCategory(ctx context.Context, category string, page Page) ([]models.Article, error)
	Search(ctx context.Context, substring string, page Page) ([]models.Article, error)
	ListAll(ctx context.Context, page Page) ([]models.Article, error)
	DistinctCategories(ctx context.Context) ([]string, error)
	// ArticlesSince returns articles downloaded at or after since.
	ArticlesSince(ctx context.Context, since time.Time) ([]models.Article, error)
}

// KeywordStore keeps precomputed keyword sets.
type KeywordStore interface {
	// LatestKeywords returns the newest set for category ("" for the overall
	// set), or nil when none exists.
	LatestKeywords(ctx context.Context, category string) (*models.KeywordSet, error)
	SaveKeywords(ctx context.Context, sets []models.KeywordSet) error
}

// Store is a complete backend.
type Store interface {
	ArticleStore
	KeywordStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
