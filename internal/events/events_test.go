package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/vnnews-radar/backend/internal/events"
	"github.com/DeafMist/vnnews-radar/backend/internal/models"
)

type stubWriter struct {
	msgs []kafka.Message
	err  error
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *stubWriter) Close() error { return nil }

func TestPublishEncodesArticle(t *testing.T) {
	w := &stubWriter{}
	pub := events.NewPublisherWithWriter(w)

	a := models.Article{
		SourceURL:        "https://vnexpress.net/rss/xe.rss",
		GUID:             "https://vnexpress.net/xe-1.html",
		Title:            "Xe điện",
		ArrangedCategory: "xe",
		DownloadedAt:     time.Date(2024, 10, 15, 1, 2, 3, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(context.Background(), "cycle-1", a))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, a.GUID, string(msg.Key))
	require.Equal(t, "cycle-1", events.Header(msg, events.HeaderCycleID))
	require.Equal(t, a.SourceURL, events.Header(msg, events.HeaderSource))
	require.NotEmpty(t, events.Header(msg, events.HeaderEventID))

	decoded, err := events.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, a, decoded)
}

func TestPublishPropagatesWriterError(t *testing.T) {
	pub := events.NewPublisherWithWriter(&stubWriter{err: errors.New("broker down")})
	err := pub.Publish(context.Background(), "c", models.Article{GUID: "g"})
	require.Error(t, err)
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	_, err := events.Decode(kafka.Message{Value: []byte("not json")})
	require.Error(t, err)

	_, err = events.Decode(kafka.Message{Value: []byte(`{"title":"no guid"}`)})
	require.Error(t, err)

	require.Empty(t, events.Header(kafka.Message{}, events.HeaderCycleID))
}
