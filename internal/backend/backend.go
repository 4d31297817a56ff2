// Package backend opens the Store selected by a connection URI.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/DeafMist/vnnews-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
	"github.com/DeafMist/vnnews-radar/backend/internal/store/memstore"
	"github.com/DeafMist/vnnews-radar/backend/internal/store/mongostore"
	"github.com/DeafMist/vnnews-radar/backend/internal/store/pgstore"
)

// Options carries backend specific settings.
type Options struct {
	MongoDatabase   string
	MongoCollection string
	// ConnectRetries bounds the connection attempts; 0 means a single try.
	ConnectRetries uint64
}

// Kind returns the backend name for uri, or an error for unsupported schemes.
func Kind(uri string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", fmt.Errorf("parse store uri: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return "mongo", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "es", "elasticsearch":
		return "elasticsearch", nil
	case "memory":
		return "memory", nil
	}
	return "", fmt.Errorf("unsupported store scheme %q", u.Scheme)
}

// Open connects to the store at uri, retrying with exponential backoff.
func Open(ctx context.Context, uri string, opts Options, log *slog.Logger) (store.Store, error) {
	kind, err := Kind(uri)
	if err != nil {
		return nil, err
	}

	var s store.Store
	attempt := 0
	operation := func() error {
		attempt++
		opened, err := open(ctx, kind, uri, opts, log)
		if err != nil {
			if log != nil {
				log.Warn("open store failed",
					slog.String("backend", kind),
					slog.Int("attempt", attempt),
					slog.Any("err", err),
				)
			}
			return err
		}
		s = opened
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, opts.ConnectRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("open %s store: %w", kind, err)
	}
	return s, nil
}

func open(ctx context.Context, kind, uri string, opts Options, log *slog.Logger) (store.Store, error) {
	switch kind {
	case "mongo":
		return mongostore.Open(ctx, mongostore.Config{
			URI:        uri,
			Database:   opts.MongoDatabase,
			Collection: opts.MongoCollection,
		}, log)
	case "postgres":
		return pgstore.Open(ctx, uri)
	case "elasticsearch":
		addr, index, err := ElasticsearchTarget(uri)
		if err != nil {
			return nil, err
		}
		c, err := elasticsearch.New(addr, index, log)
		if err != nil {
			return nil, err
		}
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		if err := c.EnsureIndices(ctx); err != nil {
			return nil, err
		}
		return c, nil
	case "memory":
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unsupported backend %q", kind)
}

// ElasticsearchTarget splits es://host:port/index into an http address and an
// index name. es+https:// style is expressed with the "tls" query flag.
func ElasticsearchTarget(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse elasticsearch uri: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("elasticsearch uri %q has no host", uri)
	}
	index := strings.Trim(u.Path, "/")
	if index == "" {
		index = "articles"
	}
	scheme := "http"
	if u.Query().Get("tls") == "true" {
		scheme = "https"
	}
	addr := url.URL{Scheme: scheme, Host: u.Host, User: u.User}
	return addr.String(), index, nil
}
