package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/vnnews-radar/backend/internal/config"
	"github.com/DeafMist/vnnews-radar/backend/internal/logger"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/store/memstore"
)

func ts(hour int) *time.Time {
	t := time.Date(2024, 10, 15, hour, 0, 0, 0, time.UTC)
	return &t
}

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	for _, a := range []models.Article{
		{GUID: "1", Link: "https://vnexpress.net/1", Title: "Giá vàng tăng", ArrangedCategory: "kinh-te", PublishedTime: ts(8)},
		{GUID: "2", Link: "https://vnexpress.net/2", Title: "Bão số 3", Description: "Gió mạnh, GIÁ rét", ArrangedCategory: "thoi-su", PublishedTime: ts(10)},
		{GUID: "3", Link: "https://vnexpress.net/3", Title: "Xe điện", ArrangedCategory: "xe", PublishedTime: ts(9)},
		{GUID: "4", Title: "Tin lạ", ArrangedCategory: models.UnknownCategory},
	} {
		require.NoError(t, st.Insert(ctx, a))
	}

	srv := &server{
		log:   logger.Discard(),
		cfg:   &config.API{DefaultPage: 2, MaxPage: 3},
		store: st,
	}
	hs := httptest.NewServer(srv.routes())
	t.Cleanup(hs.Close)
	return hs, st
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func guids(articles []models.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.GUID)
	}
	return out
}

func TestHealth(t *testing.T) {
	hs, st := newTestServer(t)

	require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/health", nil))

	st.SetErr(errors.New("down"))
	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, hs.URL+"/health", nil))
}

func TestCategoriesExcludeUnknown(t *testing.T) {
	hs, _ := newTestServer(t)

	var cats []string
	require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/categories", &cats))
	require.Equal(t, []string{"kinh-te", "thoi-su", "xe"}, cats)
}

func TestNewsByCategory(t *testing.T) {
	hs, _ := newTestServer(t)

	var articles []models.Article
	require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/news/xe", &articles))
	require.Equal(t, []string{"3"}, guids(articles))

	articles = nil
	require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/news/khong-co", &articles))
	require.NotNil(t, articles)
	require.Empty(t, articles)
}

func TestNewsListsNewestFirstWithPaging(t *testing.T) {
	hs, _ := newTestServer(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"2", "3"}},
		{"?limit=3", []string{"2", "3", "1"}},
		{"?limit=50", []string{"2", "3", "1"}},
		{"?offset=2&limit=3", []string{"1", "4"}},
		{"?limit=abc", []string{"2", "3"}},
	}
	for _, tt := range tests {
		var articles []models.Article
		require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/news"+tt.query, &articles))
		require.Equal(t, tt.want, guids(articles), tt.query)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	hs, _ := newTestServer(t)

	var articles []models.Article
	require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/news?q=gi%C3%A1", &articles))
	require.Equal(t, []string{"2", "1"}, guids(articles))
}

func TestKeywords(t *testing.T) {
	hs, st := newTestServer(t)

	require.Equal(t, http.StatusNotFound, getJSON(t, hs.URL+"/keywords", nil))

	require.NoError(t, st.SaveKeywords(context.Background(), []models.KeywordSet{
		{Timestamp: *ts(12), Keywords: []models.Keyword{{Keyword: "giá vàng", Count: 3}}},
		{Category: "xe", Timestamp: *ts(12), Keywords: []models.Keyword{{Keyword: "xe điện", Count: 1.5}}},
	}))

	var overall models.KeywordSet
	require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/keywords", &overall))
	require.Equal(t, "giá vàng", overall.Keywords[0].Keyword)

	var xe models.KeywordSet
	require.Equal(t, http.StatusOK, getJSON(t, hs.URL+"/keywords/xe", &xe))
	require.Equal(t, "xe", xe.Category)
	require.Equal(t, 1.5, xe.Keywords[0].Count)

	require.Equal(t, http.StatusNotFound, getJSON(t, hs.URL+"/keywords/the-thao", nil))
}

func TestStoreFailureIs500(t *testing.T) {
	hs, st := newTestServer(t)
	st.SetErr(errors.New("boom"))

	var body errorResponse
	require.Equal(t, http.StatusInternalServerError, getJSON(t, hs.URL+"/news", &body))
	require.Equal(t, "boom", body.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	hs, _ := newTestServer(t)
	getJSON(t, hs.URL+"/categories", nil)

	resp, err := http.Get(hs.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 50, clampInt("", 50, 500))
	require.Equal(t, 50, clampInt("-3", 50, 500))
	require.Equal(t, 500, clampInt("9000", 50, 500))
	require.Equal(t, 7, clampInt("7", 50, 500))
}
