package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/processing"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

// maxWindow is the default index.max_result_window.
const maxWindow = 10_000

const (
	keywordLimit  = 8
	keywordMinLen = 3
)

var articleMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"url":              map[string]any{"type": "keyword"},
			"guid":             map[string]any{"type": "keyword"},
			"link":             map[string]any{"type": "keyword"},
			"title":            map[string]any{"type": "wildcard"},
			"description":      map[string]any{"type": "wildcard"},
			"pubDate":          map[string]any{"type": "keyword", "index": false},
			"publishedTime":    map[string]any{"type": "date"},
			"img":              map[string]any{"type": "keyword", "index": false},
			"articlesCategory": map[string]any{"type": "keyword"},
			"arrangedCategory": map[string]any{"type": "keyword"},
			"publisher":        map[string]any{"type": "keyword"},
			"downloadedAt":     map[string]any{"type": "date"},
			"keywords":         map[string]any{"type": "keyword"},
		},
	},
}

var keywordMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"category":  map[string]any{"type": "keyword"},
			"timestamp": map[string]any{"type": "date"},
			"keywords":  map[string]any{"type": "object", "enabled": false},
		},
	},
}

// Client wraps go-elasticsearch as an article store.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

var _ store.Store = (*Client)(nil)

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

func (c *Client) keywordIndex() string {
	return c.index + "_keywords"
}

// EnsureIndices creates the article and keyword indices when missing.
func (c *Client) EnsureIndices(ctx context.Context) error {
	for index, mapping := range map[string]map[string]any{
		c.index:          articleMapping,
		c.keywordIndex(): keywordMapping,
	} {
		if err := c.ensureIndex(ctx, index, mapping); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureIndex(ctx context.Context, index string, mapping map[string]any) error {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = c.es.Indices.Create(index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// another replica created it first
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s failed: %s", index, strings.TrimSpace(string(body)))
	}
	c.log.Info("created index", slog.String("index", index))
	return nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Close is a no-op; the transport has no persistent state to release.
func (c *Client) Close(context.Context) error { return nil }

func (c *Client) FindByIdentity(ctx context.Context, guid, link string) (*models.Article, error) {
	items, _, err := c.searchArticles(ctx, c.index, identityQuery(guid, link))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// articleDoc is the indexed form of an Article. Keywords support term
// filters in Kibana and are not read back.
type articleDoc struct {
	models.Article
	Keywords []string `json:"keywords,omitempty"`
}

func newArticleDoc(a models.Article) articleDoc {
	return articleDoc{
		Article:  a,
		Keywords: processing.ExtractKeywords(a.Title+" "+a.Description, keywordLimit, keywordMinLen),
	}
}

// Insert writes a with op_type=create; an existing document id means the
// guid is already stored.
func (c *Client) Insert(ctx context.Context, a models.Article) error {
	payload, err := json.Marshal(newArticleDoc(a))
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: processing.DocumentID(a.GUID),
		Body:       bytes.NewReader(payload),
		OpType:     "create",
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return store.ErrDuplicate
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

func (c *Client) ListByCategory(ctx context.Context, category string, page store.Page) ([]models.Article, error) {
	items, _, err := c.searchArticles(ctx, c.index, listQuery(map[string]any{
		"term": map[string]any{"arrangedCategory": category},
	}, page))
	return items, err
}

func (c *Client) Search(ctx context.Context, substring string, page store.Page) ([]models.Article, error) {
	items, _, err := c.searchArticles(ctx, c.index, listQuery(substringQuery(substring), page))
	return items, err
}

func (c *Client) ListAll(ctx context.Context, page store.Page) ([]models.Article, error) {
	items, _, err := c.searchArticles(ctx, c.index, listQuery(map[string]any{"match_all": map[string]any{}}, page))
	return items, err
}

// ArticlesSince returns at most maxWindow articles downloaded at or after since.
func (c *Client) ArticlesSince(ctx context.Context, since time.Time) ([]models.Article, error) {
	body := map[string]any{
		"size": maxWindow,
		"query": map[string]any{
			"range": map[string]any{
				"downloadedAt": map[string]any{"gte": since.UTC().Format(time.RFC3339)},
			},
		},
	}
	items, _, err := c.searchArticles(ctx, c.index, body)
	return items, err
}

func (c *Client) DistinctCategories(ctx context.Context) ([]string, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"categories": map[string]any{
				"terms": map[string]any{"field": "arrangedCategory", "size": 200},
			},
		},
	}

	var parsed struct {
		Aggregations struct {
			Categories struct {
				Buckets []struct {
					Key string `json:"key"`
				} `json:"buckets"`
			} `json:"categories"`
		} `json:"aggregations"`
	}
	if err := c.search(ctx, c.index, body, &parsed); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(parsed.Aggregations.Categories.Buckets))
	for _, b := range parsed.Aggregations.Categories.Buckets {
		out = append(out, b.Key)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) LatestKeywords(ctx context.Context, category string) (*models.KeywordSet, error) {
	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.KeywordSet `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.search(ctx, c.keywordIndex(), keywordQuery(category), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Hits.Hits) == 0 {
		return nil, nil
	}
	set := parsed.Hits.Hits[0].Source
	return &set, nil
}

func (c *Client) SaveKeywords(ctx context.Context, sets []models.KeywordSet) error {
	for _, set := range sets {
		payload, err := json.Marshal(set)
		if err != nil {
			return fmt.Errorf("marshal keyword set: %w", err)
		}
		req := esapi.IndexRequest{
			Index:   c.keywordIndex(),
			Body:    bytes.NewReader(payload),
			Refresh: "false",
		}
		res, err := req.Do(ctx, c.es)
		if err != nil {
			return fmt.Errorf("index keyword set: %w", err)
		}
		if res.IsError() {
			body, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return fmt.Errorf("index keyword set failed: %s", strings.TrimSpace(string(body)))
		}
		res.Body.Close()
	}
	return nil
}

func (c *Client) searchArticles(ctx context.Context, index string, body map[string]any) ([]models.Article, int64, error) {
	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Article `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.search(ctx, index, body, &parsed); err != nil {
		return nil, 0, err
	}

	items := make([]models.Article, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}
	return items, parsed.Hits.Total.Value, nil
}

func (c *Client) search(ctx context.Context, index string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

func identityQuery(guid, link string) map[string]any {
	should := []map[string]any{
		{"term": map[string]any{"guid": guid}},
	}
	if link != "" {
		should = append(should, map[string]any{"term": map[string]any{"link": link}})
	}
	return map[string]any{
		"size": 1,
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}
}

func substringQuery(substring string) map[string]any {
	pattern := "*" + escapeWildcard(substring) + "*"
	should := make([]map[string]any, 0, 2)
	for _, field := range []string{"title", "description"} {
		should = append(should, map[string]any{
			"wildcard": map[string]any{
				field: map[string]any{"value": pattern, "case_insensitive": true},
			},
		})
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

func listQuery(query map[string]any, page store.Page) map[string]any {
	size := page.Limit
	if size <= 0 || size > maxWindow {
		size = maxWindow
	}
	from := page.Offset
	if from < 0 {
		from = 0
	}
	return map[string]any{
		"from":  from,
		"size":  size,
		"query": query,
		"sort": []map[string]any{
			{"publishedTime": map[string]any{"order": "desc", "missing": "_last"}},
			{"downloadedAt": map[string]any{"order": "desc"}},
		},
	}
}

func keywordQuery(category string) map[string]any {
	var query map[string]any
	if category == "" {
		query = map[string]any{
			"bool": map[string]any{
				"must_not": []map[string]any{{"exists": map[string]any{"field": "category"}}},
			},
		}
	} else {
		query = map[string]any{"term": map[string]any{"category": category}}
	}
	return map[string]any{
		"size":  1,
		"query": query,
		"sort":  []map[string]any{{"timestamp": map[string]any{"order": "desc"}}},
	}
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}
