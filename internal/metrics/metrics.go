package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vnnews"

var (
	feedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_fetches_total",
		Help:      "Feed fetch attempts by result (ok, fetch_error, parse_error)",
	}, []string{"result"})

	entries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_entries_total",
		Help:      "Feed entries by outcome (inserted, duplicate, invalid, store_error)",
	}, []string{"outcome"})

	articlesInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_inserted_total",
		Help:      "Articles stored by arranged category",
	}, []string{"category"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_cycle_duration_seconds",
		Help:      "Duration of full ingestion cycles",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	lastCycle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingest_last_cycle_timestamp_seconds",
		Help:      "Unix time of the last completed ingestion cycle",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Article events written to the broker by result",
	}, []string{"result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by route and status code",
	}, []string{"route", "code"})
)

// FeedFetched counts one fetch+parse attempt.
func FeedFetched(result string) { feedFetches.WithLabelValues(result).Inc() }

// EntryProcessed counts one entry outcome.
func EntryProcessed(outcome string) { entries.WithLabelValues(outcome).Inc() }

// ArticleInserted counts a newly stored article.
func ArticleInserted(category string) { articlesInserted.WithLabelValues(category).Inc() }

// CycleCompleted records a finished ingestion cycle.
func CycleCompleted(d time.Duration, at time.Time) {
	cycleDuration.Observe(d.Seconds())
	lastCycle.Set(float64(at.Unix()))
}

// EventPublished counts an article event write.
func EventPublished(ok bool) {
	if ok {
		eventsPublished.WithLabelValues("ok").Inc()
		return
	}
	eventsPublished.WithLabelValues("error").Inc()
}

// HTTPRequest counts one served request.
func HTTPRequest(route, code string) { httpRequests.WithLabelValues(route, code).Inc() }

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
