package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

// Header keys set on every article event.
const (
	HeaderEventID = "event_id"
	HeaderCycleID = "cycle_id"
	HeaderSource  = "source"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes ArticleEvents to Kafka, keyed by guid so every event for
// one article lands on the same partition.
type Publisher struct {
	w messageWriter
}

// NewPublisher builds a Publisher for topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	})}
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w messageWriter) *Publisher {
	return &Publisher{w: w}
}

// Publish writes one event for a newly stored article.
func (p *Publisher) Publish(ctx context.Context, cycleID string, a models.Article) error {
	msg, err := Encode(cycleID, a)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write article event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// Encode builds the Kafka message for a.
func Encode(cycleID string, a models.Article) (kafka.Message, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal article: %w", err)
	}
	return kafka.Message{
		Key:   []byte(a.GUID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(uuid.NewString())},
			{Key: HeaderCycleID, Value: []byte(cycleID)},
			{Key: HeaderSource, Value: []byte(a.SourceURL)},
		},
	}, nil
}

// Decode reads an article event. Events without a guid are rejected.
func Decode(msg kafka.Message) (models.Article, error) {
	var a models.Article
	if err := json.Unmarshal(msg.Value, &a); err != nil {
		return models.Article{}, fmt.Errorf("unmarshal article: %w", err)
	}
	if strings.TrimSpace(a.GUID) == "" {
		return models.Article{}, errors.New("article event without guid")
	}
	return a, nil
}

// Header returns the value of the first header named key.
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
