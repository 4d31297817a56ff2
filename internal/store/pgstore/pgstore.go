package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{
	"source_url", "guid", "link", "title", "description", "pub_date", "published_time",
	"img", "articles_category", "arranged_category", "publisher", "downloaded_at",
}

const newestFirst = "published_time DESC NULLS LAST, downloaded_at DESC"

// Store keeps articles and keyword sets in PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Migrate applies the embedded migrations to the database at dsn.
func Migrate(dsn string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Open migrates the schema and returns a connected Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := Migrate(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an already opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindByIdentity(ctx context.Context, guid, link string) (*models.Article, error) {
	query, args, err := identityQuery(guid, link).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lookup: %w", err)
	}

	items, err := s.queryArticles(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (s *Store) Insert(ctx context.Context, a models.Article) error {
	query, args, err := insertQuery(a).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	if n == 0 {
		return store.ErrDuplicate
	}
	return nil
}

func (s *Store) ListByCategory(ctx context.Context, category string, page store.Page) ([]models.Article, error) {
	return s.list(ctx, paged(selectArticles().Where(sq.Eq{"arranged_category": category}), page))
}

func (s *Store) Search(ctx context.Context, substring string, page store.Page) ([]models.Article, error) {
	return s.list(ctx, paged(searchQuery(substring), page))
}

func (s *Store) ListAll(ctx context.Context, page store.Page) ([]models.Article, error) {
	return s.list(ctx, paged(selectArticles(), page))
}

func (s *Store) ArticlesSince(ctx context.Context, since time.Time) ([]models.Article, error) {
	return s.list(ctx, selectArticles().Where(sq.GtOrEq{"downloaded_at": since}))
}

func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	query, args, err := psql.Select("DISTINCT arranged_category").From("articles").OrderBy("arranged_category").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build distinct: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) LatestKeywords(ctx context.Context, category string) (*models.KeywordSet, error) {
	query, args, err := psql.Select("category", "computed_at", "keywords").
		From("keyword_sets").
		Where(sq.Eq{"category": category}).
		OrderBy("computed_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build keywords query: %w", err)
	}

	var (
		set models.KeywordSet
		raw []byte
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&set.Category, &set.Timestamp, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	if err := json.Unmarshal(raw, &set.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return &set, nil
}

func (s *Store) SaveKeywords(ctx context.Context, sets []models.KeywordSet) error {
	if len(sets) == 0 {
		return nil
	}

	q := psql.Insert("keyword_sets").Columns("category", "computed_at", "keywords")
	for _, set := range sets {
		raw, err := json.Marshal(set.Keywords)
		if err != nil {
			return fmt.Errorf("encode keywords: %w", err)
		}
		q = q.Values(set.Category, set.Timestamp.UTC(), raw)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build keywords insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert keyword sets: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func (s *Store) list(ctx context.Context, q sq.SelectBuilder) ([]models.Article, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	return s.queryArticles(ctx, query, args)
}

func (s *Store) queryArticles(ctx context.Context, query string, args []any) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Article, 0)
	for rows.Next() {
		var (
			a         models.Article
			published sql.NullTime
		)
		if err := rows.Scan(
			&a.SourceURL, &a.GUID, &a.Link, &a.Title, &a.Description, &a.PublishedAt, &published,
			&a.ImageURL, &a.RawCategory, &a.ArrangedCategory, &a.Publisher, &a.DownloadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if published.Valid {
			ts := published.Time.UTC()
			a.PublishedTime = &ts
		}
		a.DownloadedAt = a.DownloadedAt.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

func selectArticles() sq.SelectBuilder {
	return psql.Select(articleColumns...).From("articles").OrderBy(newestFirst)
}

func identityQuery(guid, link string) sq.SelectBuilder {
	var pred sq.Sqlizer = sq.Eq{"guid": guid}
	if link != "" {
		pred = sq.Or{sq.Eq{"guid": guid}, sq.Eq{"link": link}}
	}
	return psql.Select(articleColumns...).From("articles").Where(pred).Limit(1)
}

func insertQuery(a models.Article) sq.InsertBuilder {
	var published any
	if a.PublishedTime != nil {
		published = a.PublishedTime.UTC()
	}
	return psql.Insert("articles").
		Columns(articleColumns...).
		Values(
			a.SourceURL, a.GUID, a.Link, a.Title, a.Description, a.PublishedAt, published,
			a.ImageURL, a.RawCategory, a.ArrangedCategory, a.Publisher, a.DownloadedAt.UTC(),
		).
		Suffix("ON CONFLICT DO NOTHING")
}

func searchQuery(substring string) sq.SelectBuilder {
	pattern := "%" + escapeLike(substring) + "%"
	return selectArticles().Where(sq.Or{
		sq.ILike{"title": pattern},
		sq.ILike{"description": pattern},
	})
}

func paged(q sq.SelectBuilder, page store.Page) sq.SelectBuilder {
	if page.Limit > 0 {
		q = q.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		q = q.Offset(uint64(page.Offset))
	}
	return q
}

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
