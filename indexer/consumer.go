package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/vnnews-radar/backend/internal/events"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

type replicaGate interface {
	UpsertIfNew(ctx context.Context, a models.Article) (bool, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type consumer struct {
	log    *slog.Logger
	reader messageReader
	dlq    messageWriter
	gate   replicaGate
	// dlqBackoff builds the retry policy for one DLQ write.
	dlqBackoff func() backoff.BackOff
	now        func() time.Time
}

func newConsumer(log *slog.Logger, reader messageReader, dlq messageWriter, gate replicaGate) *consumer {
	return &consumer{
		log:    log,
		reader: reader,
		dlq:    dlq,
		gate:   gate,
		dlqBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 16 * time.Second
			return backoff.WithMaxRetries(b, 4)
		},
		now: time.Now,
	}
}

// run consumes until ctx is canceled. A message is committed once it is in
// the replica or in the DLQ; otherwise it is left for redelivery.
func (c *consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("context canceled, stopping")
				return
			}
			c.log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, c.log, c.gate, msg); err != nil {
			c.log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if dlqErr := c.sendToDLQ(ctx, dlqMessage(msg, err, c.now())); dlqErr != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Error("DLQ write exhausted retries, message left uncommitted",
					slog.Any("err", dlqErr),
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit message", slog.Any("err", err))
		}
	}
}

func (c *consumer) sendToDLQ(ctx context.Context, msg kafka.Message) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := c.dlq.WriteMessages(ctx, msg)
		if err != nil {
			c.log.Warn("DLQ write failed, retrying", slog.Any("err", err), slog.Int("attempt", attempt))
		}
		return err
	}, backoff.WithContext(c.dlqBackoff(), ctx))
}

// processMessage stores the article carried by msg in the replica. Events
// for articles the replica already holds succeed without a write.
func processMessage(ctx context.Context, log *slog.Logger, g replicaGate, msg kafka.Message) error {
	a, err := events.Decode(msg)
	if err != nil {
		return err
	}

	inserted, err := g.UpsertIfNew(ctx, a)
	if err != nil {
		return fmt.Errorf("replicate %s: %w", a.GUID, err)
	}
	if !inserted {
		log.Debug("duplicate article", slog.String("guid", a.GUID))
		return nil
	}

	log.Info("replicated article",
		slog.String("guid", a.GUID),
		slog.String("cycle_id", events.Header(msg, events.HeaderCycleID)),
		slog.String("title", a.Title),
	)
	return nil
}

func dlqMessage(msg kafka.Message, cause error, now time.Time) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(now.UTC().Format(time.RFC3339))},
	)
	return kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
}
