package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/vnnews-radar/backend/internal/backend"
	"github.com/DeafMist/vnnews-radar/backend/internal/config"
	"github.com/DeafMist/vnnews-radar/backend/internal/ingest"
	"github.com/DeafMist/vnnews-radar/backend/internal/logger"
	"github.com/DeafMist/vnnews-radar/backend/internal/trends"
)

func main() {
	log := logger.New("trends")
	cfg, err := config.LoadTrends()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
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
		if ctx.Err() != nil {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("failed to connect to store after retries", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(closeCtx)
	}()

	job := trends.NewJob(st, options(cfg), log)

	log.Info("trends job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("history", cfg.History),
		slog.Duration("recent_window", cfg.RecentWindow),
	)

	ingest.NewScheduler(cfg.Interval, func(ctx context.Context) { runOnce(ctx, log, job) }, log).Run(ctx)
}

func options(cfg *config.Trends) trends.Options {
	return trends.Options{
		History:        cfg.History,
		RecentWindow:   cfg.RecentWindow,
		MinLen:         cfg.MinLen,
		TopOverall:     cfg.TopOverall,
		TopPerCategory: cfg.TopPerCategory,
	}
}

func runOnce(ctx context.Context, log *slog.Logger, job *trends.Job) {
	subCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := job.RunOnce(subCtx); err != nil {
		log.Warn("trends run failed (will retry on next interval)", slog.Any("err", err))
	}
}
