package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/vnnews-radar/backend/internal/fetcher"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

func TestFetchReturnsBody(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("<rss></rss>"))
	}))
	defer srv.Close()

	f := fetcher.New(srv.Client(), time.Second, 0)
	body, err := f.Fetch(context.Background(), models.FeedSource{URL: srv.URL + "/rss/xe.rss"})
	require.NoError(t, err)
	require.Equal(t, "<rss></rss>", string(body))
	require.Contains(t, gotUA, "Mozilla")
	require.True(t, strings.HasPrefix(gotLang, "vi-VN"))
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	src := models.FeedSource{URL: srv.URL + "/rss/the-gioi.rss"}
	_, err := fetcher.New(srv.Client(), time.Second, 0).Fetch(context.Background(), src)
	require.Error(t, err)

	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, src.URL, fetchErr.Source)

	var statusErr *fetcher.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := fetcher.New(srv.Client(), 20*time.Millisecond, 0).Fetch(context.Background(), models.FeedSource{URL: srv.URL})
	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetchBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := fetcher.New(srv.Client(), time.Second, 16).Fetch(context.Background(), models.FeedSource{URL: srv.URL})
	require.Error(t, err)
}

func TestFetchBadURL(t *testing.T) {
	_, err := fetcher.New(nil, time.Second, 0).Fetch(context.Background(), models.FeedSource{URL: "://bad"})
	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
}
