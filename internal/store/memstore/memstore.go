// Package memstore is an in-process Store used by tests and local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

// Store keeps everything in memory. Unique guid and non-empty link are
// enforced like the database backends do.
type Store struct {
	mu       sync.RWMutex
	articles []models.Article
	byGUID   map[string]int
	byLink   map[string]int
	keywords map[string][]models.KeywordSet

	// Err, when set, is returned by every operation.
	Err error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byGUID:   make(map[string]int),
		byLink:   make(map[string]int),
		keywords: make(map[string][]models.KeywordSet),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) FindByIdentity(_ context.Context, guid, link string) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	if i, ok := s.byGUID[guid]; ok && guid != "" {
		a := s.articles[i]
		return &a, nil
	}
	if i, ok := s.byLink[link]; ok && link != "" {
		a := s.articles[i]
		return &a, nil
	}
	return nil, nil
}

func (s *Store) Insert(_ context.Context, a models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	if _, ok := s.byGUID[a.GUID]; ok {
		return store.ErrDuplicate
	}
	if _, ok := s.byLink[a.Link]; ok && a.Link != "" {
		return store.ErrDuplicate
	}

	s.articles = append(s.articles, a)
	idx := len(s.articles) - 1
	s.byGUID[a.GUID] = idx
	if a.Link != "" {
		s.byLink[a.Link] = idx
	}
	return nil
}

func (s *Store) ListByCategory(_ context.Context, category string, page store.Page) ([]models.Article, error) {
	return s.list(page, func(a models.Article) bool { return a.ArrangedCategory == category })
}

func (s *Store) Search(_ context.Context, substring string, page store.Page) ([]models.Article, error) {
	needle := strings.ToLower(substring)
	return s.list(page, func(a models.Article) bool {
		return strings.Contains(strings.ToLower(a.Title), needle) ||
			strings.Contains(strings.ToLower(a.Description), needle)
	})
}

func (s *Store) ListAll(_ context.Context, page store.Page) ([]models.Article, error) {
	return s.list(page, func(models.Article) bool { return true })
}

func (s *Store) DistinctCategories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	cats := lo.Uniq(lo.Map(s.articles, func(a models.Article, _ int) string { return a.ArrangedCategory }))
	sort.Strings(cats)
	return cats, nil
}

func (s *Store) ArticlesSince(_ context.Context, since time.Time) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	return lo.Filter(s.articles, func(a models.Article, _ int) bool {
		return !a.DownloadedAt.Before(since)
	}), nil
}

func (s *Store) LatestKeywords(_ context.Context, category string) (*models.KeywordSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	sets := s.keywords[category]
	if len(sets) == 0 {
		return nil, nil
	}
	latest := sets[len(sets)-1]
	return &latest, nil
}

func (s *Store) SaveKeywords(_ context.Context, sets []models.KeywordSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	for _, set := range sets {
		s.keywords[set.Category] = append(s.keywords[set.Category], set)
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Err
}

func (s *Store) Close(context.Context) error { return nil }

// Len returns the number of stored articles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// SetErr makes every following call fail with err (nil restores).
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

func (s *Store) list(page store.Page, keep func(models.Article) bool) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := lo.Filter(s.articles, func(a models.Article, _ int) bool { return keep(a) })
	sort.SliceStable(out, func(i, j int) bool { return Newer(out[i], out[j]) })
	return paginate(out, page), nil
}

// Newer orders articles by publishedTime descending (unknown times last),
// then by downloadedAt descending.
func Newer(a, b models.Article) bool {
	switch {
	case a.PublishedTime != nil && b.PublishedTime != nil && !a.PublishedTime.Equal(*b.PublishedTime):
		return a.PublishedTime.After(*b.PublishedTime)
	case a.PublishedTime != nil && b.PublishedTime == nil:
		return true
	case a.PublishedTime == nil && b.PublishedTime != nil:
		return false
	}
	return a.DownloadedAt.After(b.DownloadedAt)
}

func paginate(items []models.Article, page store.Page) []models.Article {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return []models.Article{}
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}
