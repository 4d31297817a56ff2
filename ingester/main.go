package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/DeafMist/vnnews-radar/backend/internal/backend"
	"github.com/DeafMist/vnnews-radar/backend/internal/config"
	"github.com/DeafMist/vnnews-radar/backend/internal/events"
	"github.com/DeafMist/vnnews-radar/backend/internal/ingest"
	"github.com/DeafMist/vnnews-radar/backend/internal/logger"
	"github.com/DeafMist/vnnews-radar/backend/internal/registry"
)

func main() {
	log := logger.New("ingester")
	cfg, err := config.LoadIngester()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	reg, err := registry.Load(cfg.SourcesFile)
	if err != nil {
		log.Error("load feed registry", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := backend.Open(ctx, cfg.StoreURI, backend.Options{
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
		ConnectRetries:  uint64(cfg.ConnectRetries),
	}, log)
	if err != nil {
		log.Error("open store", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(closeCtx)
	}()

	var publisher *events.Publisher
	if cfg.EventsEnabled() {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		log.Info("article events enabled", slog.String("topic", cfg.KafkaTopic))
	}

	state := &cycleState{}
	pipeline := newPipeline(cfg, reg, st, publisher, log)

	httpServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           statusRoutes(st, state),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("status server starting", slog.String("addr", cfg.MetricsAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server stopped", slog.Any("err", err))
		}
	}()

	log.Info("ingester running",
		slog.Int("sources", len(reg.ListSources())),
		slog.Duration("interval", cfg.Interval),
		slog.Int("concurrency", cfg.Concurrency),
	)
	ingest.NewScheduler(cfg.Interval, func(ctx context.Context) {
		state.set(pipeline.RunCycle(ctx))
	}, log).Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("status server shutdown", slog.Any("err", err))
	}
}
