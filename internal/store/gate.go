package store

import (
	"context"
	"errors"
	"time"

	"github.com/DeafMist/vnnews-radar/backend/internal/dedupe"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

type identityStore interface {
	FindByIdentity(ctx context.Context, guid, link string) (*models.Article, error)
	Insert(ctx context.Context, a models.Article) error
}

// Gate inserts an Article only when no stored Article shares its guid or link.
type Gate struct {
	store identityStore
	seen  *dedupe.Cache
	now   func() time.Time
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithSeenCache skips the store lookup for keys already known to be stored.
func WithSeenCache(c *dedupe.Cache) GateOption {
	return func(g *Gate) { g.seen = c }
}

// WithClock replaces time.Now for downloadedAt stamps.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate wraps s.
func NewGate(s identityStore, opts ...GateOption) *Gate {
	g := &Gate{store: s, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UpsertIfNew stores a unless an Article with the same guid or link exists.
// A zero DownloadedAt is stamped with the current time; a set one is kept so
// replicas preserve the original ingestion time.
func (g *Gate) UpsertIfNew(ctx context.Context, a models.Article) (bool, error) {
	if g.seen != nil && g.seen.SeenAny(cacheKeys(a.GUID, a.Link)...) {
		return false, nil
	}

	existing, err := g.store.FindByIdentity(ctx, a.GUID, a.Link)
	if err != nil {
		return false, &StoreError{Op: "lookup", Err: err}
	}
	if existing != nil {
		g.remember(existing.GUID, existing.Link)
		return false, nil
	}

	if a.DownloadedAt.IsZero() {
		a.DownloadedAt = g.now().UTC()
	}
	if err := g.store.Insert(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return false, nil
		}
		return false, &StoreError{Op: "insert", Err: err}
	}

	g.remember(a.GUID, a.Link)
	return true, nil
}

func (g *Gate) remember(guid, link string) {
	if g.seen != nil {
		g.seen.MarkAll(cacheKeys(guid, link)...)
	}
}

// cacheKeys keeps guids and links apart: a guid only ever matches a stored
// guid and a link only a stored link.
func cacheKeys(guid, link string) []string {
	keys := make([]string, 0, 2)
	if guid != "" {
		keys = append(keys, "guid:"+guid)
	}
	if link != "" {
		keys = append(keys, "link:"+link)
	}
	return keys
}
