package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/lo"

	"github.com/DeafMist/vnnews-radar/backend/internal/config"
	"github.com/DeafMist/vnnews-radar/backend/internal/metrics"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/registry"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

const maxOffset = 10_000

type readStore interface {
	store.ArticleStore
	store.KeywordStore
	Ping(ctx context.Context) error
}

type server struct {
	log   *slog.Logger
	cfg   *config.API
	store readStore
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/categories", s.handleCategories)
	r.Get("/news", s.handleNews)
	r.Get("/news/{category}", s.handleNewsByCategory)
	r.Get("/keywords", s.handleKeywords)
	r.Get("/keywords/{category}", s.handleKeywords)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequest(route, strconv.Itoa(status))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	categories, err := s.store.DistinctCategories(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Filter(categories, func(c string, _ int) bool {
		return registry.IsCategory(c)
	}))
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page := s.page(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		articles []models.Article
		err      error
	)
	if query == "" {
		articles, err = s.store.ListAll(ctx, page)
	} else {
		articles, err = s.store.Search(ctx, query, page)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(articles))
}

func (s *server) handleNewsByCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	category := strings.TrimSpace(chi.URLParam(r, "category"))
	articles, err := s.store.ListByCategory(ctx, category, s.page(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(articles))
}

func (s *server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	category := strings.TrimSpace(chi.URLParam(r, "category"))
	set, err := s.store.LatestKeywords(ctx, category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if set == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no keywords computed yet"})
		return
	}

	writeJSON(w, http.StatusOK, set)
}

func (s *server) page(r *http.Request) store.Page {
	q := r.URL.Query()
	return store.Page{
		Limit:  clampInt(q.Get("limit"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Offset: clampInt(q.Get("offset"), 0, maxOffset),
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("err", err),
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func nonNil(articles []models.Article) []models.Article {
	if articles == nil {
		return []models.Article{}
	}
	return articles
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
