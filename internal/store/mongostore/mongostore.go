package mongostore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

const (
	overallKeywordsCollection  = "precomputed_keywords"
	categoryKeywordsCollection = "categorized_keywords"
	opTimeout                  = 5 * time.Second
	listTimeout                = 30 * time.Second
)

// Config selects the database and the article collection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store keeps articles and keyword sets in MongoDB.
type Store struct {
	client   *mongo.Client
	articles *mongo.Collection
	overall  *mongo.Collection
	category *mongo.Collection
	log      *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects, pings and ensures indexes.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:   client,
		articles: db.Collection(cfg.Collection),
		overall:  db.Collection(overallKeywordsCollection),
		category: db.Collection(categoryKeywordsCollection),
		log:      logger,
	}
	s.ensureIndexes(ctx)
	return s, nil
}

// ensureIndexes creates the unique identity indexes. Failures are logged:
// collections written by older downloaders may already hold duplicates, and
// the gate's lookup still prevents new ones.
func (s *Store) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "guid", Value: 1}},
			Options: options.Index().SetName("guid_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "link", Value: 1}},
			Options: options.Index().SetName("link_unique").SetUnique(true).
				SetPartialFilterExpression(bson.M{"link": bson.M{"$gt": ""}}),
		},
		{
			Keys: bson.D{{Key: "arrangedCategory", Value: 1}, {Key: "publishedTime", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "downloadedAt", Value: -1}},
		},
	}
	for _, idx := range indexes {
		if _, err := s.articles.Indexes().CreateOne(ctx, idx); err != nil {
			s.log.Warn("create index", slog.Any("keys", idx.Keys), slog.Any("err", err))
		}
	}

	for _, coll := range []*mongo.Collection{s.overall, s.category} {
		idx := mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}, {Key: "timestamp", Value: -1}}}
		if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
			s.log.Warn("create keyword index", slog.String("collection", coll.Name()), slog.Any("err", err))
		}
	}
}

func (s *Store) FindByIdentity(ctx context.Context, guid, link string) (*models.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var a models.Article
	err := s.articles.FindOne(ctx, identityFilter(guid, link)).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find article: %w", err)
	}
	return &a, nil
}

func (s *Store) Insert(ctx context.Context, a models.Article) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.articles.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (s *Store) ListByCategory(ctx context.Context, category string, page store.Page) ([]models.Article, error) {
	return s.find(ctx, bson.M{"arrangedCategory": category}, listOptions(page))
}

func (s *Store) Search(ctx context.Context, substring string, page store.Page) ([]models.Article, error) {
	return s.find(ctx, searchFilter(substring), listOptions(page))
}

func (s *Store) ListAll(ctx context.Context, page store.Page) ([]models.Article, error) {
	return s.find(ctx, bson.M{}, listOptions(page))
}

func (s *Store) ArticlesSince(ctx context.Context, since time.Time) ([]models.Article, error) {
	return s.find(ctx, bson.M{"downloadedAt": bson.M{"$gte": since}}, options.Find())
}

func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	values, err := s.articles.Distinct(ctx, "arrangedCategory", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct categories: %w", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c, ok := v.(string); ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) LatestKeywords(ctx context.Context, category string) (*models.KeywordSet, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	coll, filter := s.overall, bson.M{}
	if category != "" {
		coll, filter = s.category, bson.M{"category": category}
	}

	var set models.KeywordSet
	err := coll.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})).Decode(&set)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find keywords: %w", err)
	}
	return &set, nil
}

func (s *Store) SaveKeywords(ctx context.Context, sets []models.KeywordSet) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var overall, perCategory []any
	for _, set := range sets {
		if set.Category == "" {
			overall = append(overall, set)
		} else {
			perCategory = append(perCategory, set)
		}
	}
	if len(overall) > 0 {
		if _, err := s.overall.InsertMany(ctx, overall); err != nil {
			return fmt.Errorf("insert keyword sets: %w", err)
		}
	}
	if len(perCategory) > 0 {
		if _, err := s.category.InsertMany(ctx, perCategory); err != nil {
			return fmt.Errorf("insert category keyword sets: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cursor, err := s.articles.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]models.Article, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return out, nil
}

func identityFilter(guid, link string) bson.M {
	if link == "" {
		return bson.M{"guid": guid}
	}
	return bson.M{"$or": bson.A{
		bson.M{"guid": guid},
		bson.M{"link": link},
	}}
}

func searchFilter(substring string) bson.M {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(substring), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"description": re},
	}}
}

func listOptions(page store.Page) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{
		{Key: "publishedTime", Value: -1},
		{Key: "downloadedAt", Value: -1},
	})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	if page.Offset > 0 {
		opts.SetSkip(int64(page.Offset))
	}
	return opts
}
