package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/vnnews-radar/backend/internal/backend"
	"github.com/DeafMist/vnnews-radar/backend/internal/config"
	"github.com/DeafMist/vnnews-radar/backend/internal/dedupe"
	"github.com/DeafMist/vnnews-radar/backend/internal/logger"
	"github.com/DeafMist/vnnews-radar/backend/internal/store"
)

func main() {
	log := logger.New("indexer")
	cfg, err := config.LoadIndexer()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	replica, err := backend.Open(ctx, cfg.ReplicaStoreURI, backend.Options{
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
		ConnectRetries:  uint64(cfg.ConnectRetries),
	}, log)
	if err != nil {
		log.Error("open replica store", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = replica.Close(closeCtx)
	}()

	gate := store.NewGate(replica, store.WithSeenCache(dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.DLQTopic(),
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("indexer started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.DLQTopic()),
		slog.String("replica", cfg.ReplicaStoreURI),
	)

	newConsumer(log, reader, dlqWriter, gate).run(ctx)
}
