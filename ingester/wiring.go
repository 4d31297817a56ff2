package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/vnnews-radar/backend/internal/config"
	"github.com/DeafMist/vnnews-radar/backend/internal/dedupe"
	"github.com/DeafMist/vnnews-radar/backend/internal/events"
	"github.com/DeafMist/vnnews-radar/backend/internal/feedparser"
	"github.com/DeafMist/vnnews-radar/backend/internal/fetcher"
	"github.com/DeafMist/vnnews-radar/backend/internal/ingest"
	"github.com/DeafMist/vnnews-radar/backend/internal/metrics"
	"github.com/DeafMist/vnnews-radar/backend/internal/normalize"
	"github.com/DeafMist/vnnews-radar/backend/internal/registry"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func newPipeline(cfg *config.Ingester, reg *registry.Registry, st store.ArticleStore, publisher *events.Publisher, log *slog.Logger) *ingest.Pipeline {
	var gateOpts []store.GateOption
	if cfg.DedupeCapacity > 0 {
		gateOpts = append(gateOpts, store.WithSeenCache(dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)))
	}

	deps := ingest.Deps{
		Sources:     reg,
		Fetcher:     fetcher.New(nil, cfg.FetchTimeout, cfg.FetchMaxBytes),
		Parser:      feedparser.New(),
		Normalizer:  normalize.New(reg),
		Gate:        store.NewGate(st, gateOpts...),
		Logger:      log,
		Concurrency: cfg.Concurrency,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	return ingest.NewPipeline(deps)
}

// cycleState keeps the report of the last finished cycle for /status.
type cycleState struct {
	mu   sync.RWMutex
	last *ingest.CycleReport
}

func (s *cycleState) set(r ingest.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

func (s *cycleState) get() *ingest.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

type sourceStatus struct {
	ingest.SourceReport
	Error string `json:"error,omitempty"`
}

type statusResponse struct {
	CycleID  string         `json:"cycleId"`
	Started  time.Time      `json:"started"`
	Duration string         `json:"duration"`
	Inserted int            `json:"inserted"`
	Sources  []sourceStatus `json:"sources"`
}

func statusRoutes(p pinger, state *cycleState) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		last := state.get()
		if last == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle finished yet"})
			return
		}
		resp := statusResponse{
			CycleID:  last.ID,
			Started:  last.Started,
			Duration: last.Duration.String(),
			Inserted: last.Inserted(),
		}
		for _, s := range last.Sources {
			st := sourceStatus{SourceReport: s}
			if s.Err != nil {
				st.Error = s.Err.Error()
			}
			resp.Sources = append(resp.Sources, st)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
